package session

import (
	"time"

	"github.com/google/uuid"
)

// Phase represents where a session is in the exam flow.
type Phase int

const (
	PhaseTaskSelected Phase = iota + 1 // Task chosen, waiting for a part
	PhasePreparing                     // Prep timer running
	PhaseAsking                        // A question is open for answers
	PhaseEvaluating                    // All questions done, evaluation in flight
)

func (p Phase) String() string {
	switch p {
	case PhaseTaskSelected:
		return "task_selected"
	case PhasePreparing:
		return "preparing"
	case PhaseAsking:
		return "asking"
	case PhaseEvaluating:
		return "evaluating"
	default:
		return "idle"
	}
}

// Answer is one transcribed response collected during a part.
type Answer struct {
	QuestionIndex int
	Text          string

	// Transcribed is false when the gateway failed and Text is a placeholder.
	Transcribed bool

	RecordedAt time.Time
}

// Session tracks one user's progress through a single part.
type Session struct {
	// ID identifies one part traversal; it changes on every StartPart.
	ID string

	UserID        int64
	TaskID        int
	PartIndex     int
	QuestionIndex int
	QuestionCount int
	Phase         Phase

	// Deadline is the instant after which a pending submission is late.
	// Zero means no deadline is active.
	Deadline time.Time

	Answers   []Answer
	StartedAt time.Time
}

// StartPart resets the session for a new traversal of partIndex.
func (s *Session) StartPart(partIndex, questionCount int, now, deadline time.Time) {
	s.ID = uuid.NewString()
	s.PartIndex = partIndex
	s.QuestionIndex = 0
	s.QuestionCount = questionCount
	s.Answers = nil
	s.Phase = PhasePreparing
	s.StartedAt = now
	s.Deadline = deadline
}

// HasDeadline reports whether a submission window is open.
func (s *Session) HasDeadline() bool {
	return !s.Deadline.IsZero()
}

// Expired reports whether now is past the active deadline.
func (s *Session) Expired(now time.Time) bool {
	return s.HasDeadline() && now.After(s.Deadline)
}

// ClearDeadline closes the submission window.
func (s *Session) ClearDeadline() {
	s.Deadline = time.Time{}
}

// Remaining reports whether questions are left to ask.
func (s *Session) Remaining() bool {
	return s.QuestionIndex < s.QuestionCount
}

// Record stores an answer for the current question and moves to the next.
// It returns false if the part has no question left.
func (s *Session) Record(text string, transcribed bool, at time.Time) bool {
	if !s.Remaining() {
		return false
	}
	s.Answers = append(s.Answers, Answer{
		QuestionIndex: s.QuestionIndex,
		Text:          text,
		Transcribed:   transcribed,
		RecordedAt:    at,
	})
	s.QuestionIndex++
	s.ClearDeadline()
	return true
}

// Skip moves to the next question without recording an answer.
func (s *Session) Skip() bool {
	if !s.Remaining() {
		return false
	}
	s.QuestionIndex++
	s.ClearDeadline()
	return true
}
