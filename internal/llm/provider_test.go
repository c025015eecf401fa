package llm

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestMockProvider_ServesQueueInOrder(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Text: "Level B1. Fluent but limited range.", Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockText("Level B2."),
	)

	resp1, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "first"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp1.Text != "Level B1. Fluent but limited range." {
		t.Fatalf("first reply = %q", resp1.Text)
	}
	if resp1.Usage.InputTokens != 10 {
		t.Fatalf("expected 10 input tokens, got %d", resp1.Usage.InputTokens)
	}
	if resp1.StopReason != StopEnd || resp1.Truncated() {
		t.Fatalf("stop reason = %q", resp1.StopReason)
	}

	resp2, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "second"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp2.Text != "Level B2." {
		t.Fatalf("second reply = %q", resp2.Text)
	}
}

func TestMockProvider_BlankTextIsInvalid(t *testing.T) {
	mock := NewMockProvider(MockText("  \n "))
	_, err := mock.Generate(context.Background(), Request{})
	var invalid *ErrInvalidResponse
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidResponse, got: %v", err)
	}
}

func TestMockProvider_EmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	_, err := mock.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error from empty queue")
	}
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T", err)
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider(
		MockText("ok"),
	)

	req := Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}
	_, _ = mock.Generate(context.Background(), req)

	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
	if mock.Calls[0].System != "sys" {
		t.Fatalf("expected system 'sys', got %q", mock.Calls[0].System)
	}
}

func TestMockProvider_ReturnsConfiguredError(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrRateLimit{Err: errors.New("429")}},
	)

	_, err := mock.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error")
	}
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T", err)
	}
}

func TestMockProvider_ModelID(t *testing.T) {
	mock := NewMockProvider()
	if mock.ModelID() != "mock" {
		t.Fatalf("expected 'mock', got %q", mock.ModelID())
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}

	ctx = WithPurpose(ctx, "evaluation")
	if p := PurposeFrom(ctx); p != "evaluation" {
		t.Fatalf("expected 'evaluation', got %q", p)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "anthropic without key",
			cfg:     Config{Provider: "anthropic"},
			wantErr: true,
		},
		{
			name:    "anthropic with key",
			cfg:     Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}},
			wantErr: false,
		},
		{
			name:    "openai without key",
			cfg:     Config{Provider: "openai"},
			wantErr: true,
		},
		{
			name:    "openai with key",
			cfg:     Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-test"}},
			wantErr: false,
		},
		{
			name:    "openrouter without key",
			cfg:     Config{Provider: "openrouter"},
			wantErr: true,
		},
		{
			name:    "gemini with key",
			cfg:     Config{Provider: "gemini", Gemini: GeminiConfig{APIKey: "g-test"}},
			wantErr: false,
		},
		{
			name:    "negative timeout",
			cfg:     Config{Provider: "mock", Timeout: -1},
			wantErr: true,
		},
		{
			name:    "mock needs no key",
			cfg:     Config{Provider: "mock"},
			wantErr: false,
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMockProvider_Fallback(t *testing.T) {
	mock := NewMockProvider(MockText("queued"))
	mock.Fallback = func(req Request) MockResponse {
		return MockText("fallback for " + req.Messages[0].Content)
	}

	req := Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}
	first, err := mock.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := mock.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Text != "queued" || second.Text != "fallback for x" {
		t.Fatalf("got %q then %q", first.Text, second.Text)
	}
}

func TestTextResponse(t *testing.T) {
	resp, err := textResponse("  Level A2.\n", Usage{OutputTokens: 3}, "gpt-4o-mini", StopMaxTokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Level A2." {
		t.Fatalf("text = %q", resp.Text)
	}
	if !resp.Truncated() {
		t.Fatal("expected truncated reply")
	}

	_, err = textResponse("", Usage{}, "gpt-4o-mini", StopEnd)
	if !errors.Is(err, errEmptyReply) {
		t.Fatalf("expected empty reply error, got %v", err)
	}
}

func TestClassifyStatus(t *testing.T) {
	cause := errors.New("upstream")

	var rl *ErrRateLimit
	if err := classifyStatus(429, cause); !errors.As(err, &rl) || !errors.Is(err, cause) {
		t.Fatalf("429 mapped to %T", err)
	}
	var unavail *ErrProviderUnavailable
	for _, status := range []int{0, 401, 500, 503} {
		if err := classifyStatus(status, cause); !errors.As(err, &unavail) {
			t.Fatalf("%d mapped to %T", status, err)
		}
	}
}

func TestLookupCost(t *testing.T) {
	tests := []struct {
		model string
		want  float64 // cost of 1M input + 1M output tokens
		known bool
	}{
		{"gpt-4o-mini", 0.75, true},
		{"openai/gpt-4o-mini", 0.75, true},
		{"gpt-4o-mini-2024-07-18", 0.75, true},
		{"gpt-4o-2024-08-06", 12.5, true},
		{"claude-haiku-4-5-20251001", 6, true},
		{"meta-llama/llama-3.3-70b-instruct", 0.53, true},
		{"google/gemini-2.0-flash-001", 0.5, true},
		{"mock", 0, false},
		{"some-vendor/unknown", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			c := LookupCost(tt.model)
			if !tt.known {
				if c != nil {
					t.Fatalf("expected unknown, got %+v", *c)
				}
				return
			}
			if c == nil {
				t.Fatal("expected a price")
			}
			if got := c.Cost(1_000_000, 1_000_000); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("cost = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscoverConfig(t *testing.T) {
	for _, k := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}

	base := DefaultConfig()
	if _, ok := DiscoverConfig(base); ok {
		t.Fatal("expected no provider without keys")
	}

	t.Setenv("ANTHROPIC_API_KEY", "a-key")
	t.Setenv("GEMINI_API_KEY", "g-key")
	cfg, ok := DiscoverConfig(base)
	if !ok {
		t.Fatal("expected a provider")
	}
	if cfg.Provider != "gemini" || cfg.Gemini.APIKey != "g-key" {
		t.Fatalf("got provider %q key %q", cfg.Provider, cfg.Gemini.APIKey)
	}
	if cfg.Timeout != base.Timeout {
		t.Fatalf("timeout = %v, want %v", cfg.Timeout, base.Timeout)
	}
}
