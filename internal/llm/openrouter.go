package llm

import (
	"fmt"
	"net/http"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider talks to OpenRouter's OpenAI-compatible endpoint. Model
// IDs are passed through as given, e.g. "openai/gpt-4o-mini".
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
// AppName and SiteURL are sent as the X-Title and HTTP-Referer headers
// OpenRouter uses to attribute traffic.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}

	headers := http.Header{}
	if cfg.AppName != "" {
		headers.Set("X-Title", cfg.AppName)
	}
	if cfg.SiteURL != "" {
		headers.Set("HTTP-Referer", cfg.SiteURL)
	}

	var client *http.Client
	if len(headers) > 0 {
		client = &http.Client{Transport: &headerTransport{base: http.DefaultTransport, headers: headers}}
	}

	return &OpenRouterProvider{
		OpenAIProvider: newChatProvider(cfg.APIKey, baseURL, cfg.Model, client),
	}, nil
}

// headerTransport adds fixed headers to every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header[k] = v
	}
	return t.base.RoundTrip(req)
}
