package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openRouterServer answers chat completions and records the attribution
// headers and model of the last request.
type openRouterServer struct {
	*httptest.Server
	mu                          sync.Mutex
	title, referer, auth, model string
}

func (s *openRouterServer) seen() (title, referer, auth, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title, s.referer, s.auth, s.model
}

func newOpenRouterServer(t *testing.T) *openRouterServer {
	t.Helper()
	s := &openRouterServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.title = r.Header.Get("X-Title")
		s.referer = r.Header.Get("HTTP-Referer")
		s.auth = r.Header.Get("Authorization")
		s.model = body.Model
		s.mu.Unlock()

		reply := chatCompletion("Estimated level: A2.", "stop")
		reply["model"] = body.Model
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(s.Close)
	return s
}

func TestOpenRouterSendsAttributionHeaders(t *testing.T) {
	srv := newOpenRouterServer(t)

	p, err := NewOpenRouterProvider(OpenRouterConfig{
		APIKey:  "sk-or-test",
		Model:   "meta-llama/llama-3.3-70b-instruct",
		BaseURL: srv.URL,
		AppName: "speakbot",
		SiteURL: "https://t.me/speakbot",
	})
	require.NoError(t, err)
	assert.Equal(t, "meta-llama/llama-3.3-70b-instruct", p.ModelID())

	resp, err := p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "Estimated level: A2.", resp.Text)

	title, referer, auth, model := srv.seen()
	assert.Equal(t, "speakbot", title)
	assert.Equal(t, "https://t.me/speakbot", referer)
	assert.Equal(t, "Bearer sk-or-test", auth)
	assert.Equal(t, "meta-llama/llama-3.3-70b-instruct", model)
}

func TestOpenRouterWithoutAttribution(t *testing.T) {
	srv := newOpenRouterServer(t)

	p, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "sk-or-test", Model: "openai/gpt-4o-mini", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	title, referer, _, _ := srv.seen()
	assert.Empty(t, title)
	assert.Empty(t, referer)
}

func TestOpenRouterRequiresKey(t *testing.T) {
	_, err := NewOpenRouterProvider(OpenRouterConfig{Model: "openai/gpt-4o-mini"})
	assert.Error(t, err)
}

func TestNewProviderOpenRouter(t *testing.T) {
	srv := newOpenRouterServer(t)
	repo := &recordingRepo{}

	cfg := DefaultConfig()
	cfg.Provider = "openrouter"
	cfg.OpenRouter.APIKey = "sk-or-test"
	cfg.OpenRouter.BaseURL = srv.URL

	p, err := NewProvider(context.Background(), cfg, repo, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", p.ModelID())

	ctx := WithPurpose(context.Background(), "evaluation")
	resp, err := p.Generate(ctx, Request{Messages: []Message{{Role: RoleUser, Content: "answers"}}})
	require.NoError(t, err)
	assert.Equal(t, "Estimated level: A2.", resp.Text)
	title, _, _, _ := srv.seen()
	assert.Equal(t, "speakbot", title)

	require.Len(t, repo.events, 1)
	assert.Equal(t, "openrouter", repo.events[0].Provider)
	assert.Equal(t, "openai/gpt-4o-mini", repo.events[0].Model)
	assert.Equal(t, "evaluation", repo.events[0].Purpose)
	assert.NotNil(t, LookupCost(repo.events[0].Model))
}
