package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrRateLimit indicates the provider rejected the call with HTTP 429.
type ErrRateLimit struct {
	Err error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the provider answered without usable text.
type ErrInvalidResponse struct {
	Err error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down, unreachable or
// did not answer in time.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status from a provider SDK error onto the
// package's error kinds. Anything that is not a rate limit is treated as
// the provider being unavailable.
func classifyStatus(status int, err error) error {
	if status == http.StatusTooManyRequests {
		return &ErrRateLimit{Err: err}
	}
	return &ErrProviderUnavailable{Err: err}
}

var errEmptyReply = errors.New("empty reply")

// textResponse builds a Response from a provider's reply, rejecting
// replies that carry no text.
func textResponse(text string, usage Usage, model, stop string) (*Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ErrInvalidResponse{Err: errEmptyReply}
	}
	return &Response{Text: text, Usage: usage, Model: model, StopReason: stop}, nil
}
