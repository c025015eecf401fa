package transport

import (
	"context"
	"strings"
	"sync"
)

// Recorder is an in-memory Messenger that keeps every sent message.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Messages returns the messages sent to userID, oldest first.
func (r *Recorder) Messages(userID int64) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.sent {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

// Texts returns the text of every message sent to userID.
func (r *Recorder) Texts(userID int64) []string {
	var out []string
	for _, m := range r.Messages(userID) {
		out = append(out, m.Text)
	}
	return out
}

// Last returns the latest message sent to userID.
func (r *Recorder) Last(userID int64) (Message, bool) {
	msgs := r.Messages(userID)
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// Count returns how many messages to userID contain substr.
func (r *Recorder) Count(userID int64, substr string) int {
	n := 0
	for _, t := range r.Texts(userID) {
		if strings.Contains(t, substr) {
			n++
		}
	}
	return n
}

// Reset forgets all recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// Actions flattens the button actions of msg.
func Actions(msg Message) []string {
	var out []string
	for _, row := range msg.Buttons {
		for _, b := range row {
			if b.Action != "" {
				out = append(out, b.Action)
			}
		}
	}
	return out
}
