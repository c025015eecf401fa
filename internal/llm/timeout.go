package llm

import (
	"context"
	"errors"
	"time"
)

// timeoutProvider bounds every Generate call with a deadline.
type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout wraps p so each request is cancelled after d. A non-positive
// d returns p unchanged.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{inner: p, timeout: d}
}

func (t *timeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.inner.Generate(ctx, req)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var unavailable *ErrProviderUnavailable
		if !errors.As(err, &unavailable) {
			err = &ErrProviderUnavailable{Err: err}
		}
	}
	return resp, err
}

func (t *timeoutProvider) ModelID() string {
	return t.inner.ModelID()
}
