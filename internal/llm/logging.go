package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abhisek/speakbot/internal/store"
)

type purposeKey struct{}

// WithPurpose tags ctx with what an LLM call is for, e.g. "evaluation".
// The tag is stored on the request event.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the tag set by WithPurpose, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if p, ok := ctx.Value(purposeKey{}).(string); ok && p != "" {
		return p
	}
	return "unknown"
}

// LoggingProvider records every request as an llm_request event and logs
// a line per call.
type LoggingProvider struct {
	inner     Provider
	provider  string
	eventRepo store.EventRepo
	logger    *slog.Logger
}

// WithLogging wraps p. name is the configured provider name stored on each
// event. A nil repo only logs.
func WithLogging(p Provider, name string, repo store.EventRepo, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingProvider{
		inner:     p,
		provider:  name,
		eventRepo: repo,
		logger:    logger.With("component", "llm", "provider", name),
	}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)
	latencyMs := time.Since(start).Milliseconds()

	data := store.LLMRequestEventData{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		LatencyMs:   latencyMs,
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			data.Model = resp.Model
		}
		data.ResponseBody = resp.Text
	}

	switch {
	case err != nil:
		data.ErrorMessage = err.Error()
		l.logger.Warn("llm request failed", "purpose", purpose, "latency_ms", latencyMs, "error", err)
	case resp.Truncated():
		l.logger.Warn("llm reply truncated", "purpose", purpose, "model", data.Model,
			"output_tokens", data.OutputTokens, "max_tokens", req.MaxTokens)
	default:
		l.logger.Debug("llm request", "purpose", purpose, "model", data.Model,
			"input_tokens", data.InputTokens, "output_tokens", data.OutputTokens, "latency_ms", latencyMs)
	}

	// The caller's context may already be cancelled; the event is still kept.
	if l.eventRepo != nil {
		if logErr := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
			l.logger.Error("failed to log LLM request event", "error", logErr)
		}
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest renders the prompt as role-tagged blocks.
func serializeRequest(req Request) string {
	var b strings.Builder
	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}
