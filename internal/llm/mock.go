package llm

import (
	"context"
	"sync"
)

// MockResponse is a canned answer for the MockProvider. A non-nil Err is
// returned instead of Text.
type MockResponse struct {
	Text  string
	Usage Usage
	Err   error
}

// MockText is a canned plain-text response.
func MockText(text string) MockResponse {
	return MockResponse{Text: text}
}

// MockProvider is a deterministic Provider for tests and offline runs.
// Queued responses are served in FIFO order and every request is recorded.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request

	// Fallback, when set, answers requests once the queue is empty.
	Fallback func(Request) MockResponse
}

func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Generate returns the next canned response. With an empty queue it uses
// Fallback, or returns ErrProviderUnavailable when none is set.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	var resp MockResponse
	switch {
	case len(m.responses) > 0:
		resp = m.responses[0]
		m.responses = m.responses[1:]
	case m.Fallback != nil:
		resp = m.Fallback(req)
	default:
		return nil, &ErrProviderUnavailable{}
	}

	if resp.Err != nil {
		return nil, resp.Err
	}
	return textResponse(resp.Text, resp.Usage, "mock", StopEnd)
}

func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
