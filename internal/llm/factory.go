package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/speakbot/internal/store"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with timeout and logging middleware.
// Requests are never retried.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, logger *slog.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		m := NewMockProvider()
		m.Fallback = func(Request) MockResponse {
			return MockText("Mock evaluation: the answers were received. Configure a real provider for CEFR feedback.")
		}
		base = m
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// caller → timeout → logging → base
	logged := WithLogging(base, cfg.Provider, eventRepo, logger)
	return WithTimeout(logged, cfg.Timeout), nil
}
