// Package session tracks each user's in-flight exam part: which question
// is open, its deadline, and the answers collected so far.
package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// Registry owns every user's session and timer. Work for one user is
// serialized through that user's slot; different users never contend
// beyond the short map lookup. A slot lives only while it holds a session,
// an armed timer or a handle, so the map stays as small as the set of
// users mid-exam.
type Registry struct {
	clock Clock

	mu     sync.Mutex
	slots  map[int64]*slot
	active atomic.Int64

	// gen numbers timer arms registry-wide, so a callback outliving its
	// slot never matches the generation of a slot created later.
	gen atomic.Uint64
}

type slot struct {
	mu    sync.Mutex
	sess  *Session
	gen   uint64
	timer Stopper

	// refs counts handles held or waited for; guarded by Registry.mu.
	refs int
}

// NewRegistry creates an empty registry driven by clock.
func NewRegistry(clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock()
	}
	return &Registry{
		clock: clock,
		slots: make(map[int64]*slot),
	}
}

// Clock returns the registry's clock.
func (r *Registry) Clock() Clock {
	return r.clock
}

// Active returns the number of live sessions.
func (r *Registry) Active() int {
	return int(r.active.Load())
}

func (r *Registry) slotFor(userID int64) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[userID]
	if !ok {
		s = &slot{}
		r.slots[userID] = s
	}
	s.refs++
	return s
}

// unref drops a handle's reference and forgets the slot once nothing
// holds it and it has neither session nor timer.
func (r *Registry) unref(userID int64, s *slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.refs--
	if s.refs == 0 && s.sess == nil && s.timer == nil {
		delete(r.slots, userID)
	}
}

func (r *Registry) slotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Acquire locks userID's slot and returns a handle to it. The handle must
// be released; it is not safe to keep it afterwards.
func (r *Registry) Acquire(userID int64) *Handle {
	s := r.slotFor(userID)
	s.mu.Lock()
	return &Handle{reg: r, slot: s, userID: userID}
}

// Shutdown stops every pending timer. Sessions stay in place.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.slots))
	for id := range r.slots {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		h := r.Acquire(id)
		h.Disarm()
		h.Release()
	}
}

// Handle is exclusive access to one user's slot.
type Handle struct {
	reg    *Registry
	slot   *slot
	userID int64
}

// UserID returns the user the handle belongs to.
func (h *Handle) UserID() int64 {
	return h.userID
}

// Now reads the registry clock.
func (h *Handle) Now() time.Time {
	return h.reg.clock.Now()
}

// Release unlocks the slot.
func (h *Handle) Release() {
	h.slot.mu.Unlock()
	h.reg.unref(h.userID, h.slot)
}

// Session returns the user's session, or nil when the user is idle.
func (h *Handle) Session() *Session {
	return h.slot.sess
}

// Begin replaces any existing session with a fresh one for taskID.
// Pending timers of the old session are invalidated.
func (h *Handle) Begin(taskID int) *Session {
	h.Disarm()
	if h.slot.sess == nil {
		h.reg.active.Add(1)
	}
	h.slot.sess = &Session{
		UserID:    h.userID,
		TaskID:    taskID,
		Phase:     PhaseTaskSelected,
		StartedAt: h.Now(),
	}
	return h.slot.sess
}

// Retire discards the session and its timer.
func (h *Handle) Retire() {
	h.Disarm()
	if h.slot.sess != nil {
		h.reg.active.Add(-1)
		h.slot.sess = nil
	}
}

// Arm schedules fn to run after d with the slot locked. Arming again, or
// calling Disarm, Begin or Retire, invalidates the earlier callback: if it
// still fires it finds its generation stale and does nothing.
func (h *Handle) Arm(d time.Duration, fn func(*Handle)) {
	h.Disarm()
	gen := h.slot.gen
	reg, userID := h.reg, h.userID
	h.slot.timer = reg.clock.AfterFunc(d, func() {
		fired := reg.Acquire(userID)
		defer fired.Release()
		if fired.slot.gen != gen {
			return
		}
		fired.slot.timer = nil
		fn(fired)
	})
}

// Disarm cancels the pending callback, if any.
func (h *Handle) Disarm() {
	h.slot.gen = h.reg.gen.Add(1)
	if h.slot.timer != nil {
		h.slot.timer.Stop()
		h.slot.timer = nil
	}
}

// Armed reports whether a callback is pending.
func (h *Handle) Armed() bool {
	return h.slot.timer != nil
}
