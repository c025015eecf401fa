package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-2.0-flash"},
		{"gemini-pro", "gemini-2.5-pro"},
		{"gemini-2.5-flash", "gemini-2.5-flash"},
	}
	for _, tt := range tests {
		got := resolveModel(tt.input, geminiModels)
		if got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func geminiServer(t *testing.T, status int, body string, check func(req []byte)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if check != nil {
			req, _ := io.ReadAll(r.Body)
			check(req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiGenerate(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "Level B1. Good pacing."}]}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 40, "candidatesTokenCount": 6, "totalTokenCount": 46},
		"modelVersion": "gemini-2.0-flash"
	}`, func(req []byte) {
		var body map[string]any
		if err := json.Unmarshal(req, &body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		assert.Contains(t, body, "contents")
		assert.Contains(t, string(req), "You are a speaking examiner.")
	})

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "g-test", Model: "gemini-flash", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{
		System:    "You are a speaking examiner.",
		Messages:  []Message{{Role: RoleUser, Content: "Transcript: I like travelling."}},
		MaxTokens: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, "Level B1. Good pacing.", resp.Text)
	assert.Equal(t, 40, resp.Usage.InputTokens)
	assert.Equal(t, 46, resp.Usage.TotalTokens)
	assert.False(t, resp.Truncated())
}

func TestGeminiTruncatedReply(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "Level B1. The"}]}, "finishReason": "MAX_TOKENS"}]
	}`, nil)

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "g-test", Model: "gemini-flash", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.True(t, resp.Truncated())
	assert.Equal(t, "gemini-2.0-flash", resp.Model)
}

func TestGeminiRateLimit(t *testing.T) {
	srv := geminiServer(t, http.StatusTooManyRequests,
		`{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`, nil)

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "g-test", Model: "gemini-flash", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	var rl *ErrRateLimit
	assert.True(t, errors.As(err, &rl), "got %v", err)
}

func TestGeminiRequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}
