package transcribe

import (
	"context"
	"sync"
)

// MockResult is a canned transcription outcome.
type MockResult struct {
	Text string
	Err  error
}

// Mock returns canned results in FIFO order and records clip names.
type Mock struct {
	mu      sync.Mutex
	results []MockResult
	Clips   []string

	// Fallback is returned once the queue is empty. An empty Fallback
	// yields ErrEmptyTranscript.
	Fallback string
}

// NewMock creates a Mock with the given results queued.
func NewMock(results ...MockResult) *Mock {
	return &Mock{results: results}
}

// Add queues another result.
func (m *Mock) Add(r MockResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
}

func (m *Mock) Transcribe(_ context.Context, clip Clip) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Clips = append(m.Clips, clip.Name())

	if len(m.results) == 0 {
		if m.Fallback == "" {
			return "", ErrEmptyTranscript
		}
		return m.Fallback, nil
	}
	r := m.results[0]
	m.results = m.results[1:]
	return r.Text, r.Err
}

// Calls returns how many clips were transcribed.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Clips)
}
