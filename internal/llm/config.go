package llm

import (
	"fmt"
	"os"
	"time"
)

// Config holds all LLM provider configuration. Field tags map it onto the
// "llm" section of the bot configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "anthropic", "openai", "gemini", "openrouter", "mock"
	Provider string `koanf:"provider"`

	Anthropic  AnthropicConfig  `koanf:"anthropic"`
	OpenAI     OpenAIConfig     `koanf:"openai"`
	Gemini     GeminiConfig     `koanf:"gemini"`
	OpenRouter OpenRouterConfig `koanf:"openrouter"`

	// Timeout bounds a single LLM request. Zero disables the bound.
	Timeout time.Duration `koanf:"timeout"`
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"` // Default: "claude-haiku"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`    // Default: "gpt-4o-mini"
	BaseURL string `koanf:"base_url"` // Optional. Override for compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`    // Default: "gemini-flash"
	BaseURL string `koanf:"base_url"` // Optional.
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`    // Default: "openai/gpt-4o-mini"
	BaseURL string `koanf:"base_url"` // Default: "https://openrouter.ai/api/v1"

	// AppName and SiteURL identify the bot on OpenRouter's dashboards.
	AppName string `koanf:"app_name"`
	SiteURL string `koanf:"site_url"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		OpenRouter: OpenRouterConfig{
			Model:   "openai/gpt-4o-mini",
			AppName: "speakbot",
		},
		Timeout: 60 * time.Second,
	}
}

// HasKey reports whether the selected provider has an API key configured.
func (c Config) HasKey() bool {
	switch c.Provider {
	case "anthropic":
		return c.Anthropic.APIKey != ""
	case "openai":
		return c.OpenAI.APIKey != ""
	case "gemini":
		return c.Gemini.APIKey != ""
	case "openrouter":
		return c.OpenRouter.APIKey != ""
	}
	return false
}

// DiscoverConfig checks standard API key env vars in priority order
// (OpenAI → Gemini → Anthropic → OpenRouter) and returns base with the
// first provider whose key is found selected. Returns (base, false) if
// none found.
func DiscoverConfig(base Config) (Config, bool) {
	cfg := base

	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Provider = "openai"
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		cfg.Provider = "gemini"
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = "anthropic"
		cfg.Anthropic.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		cfg.Provider = "openrouter"
		cfg.OpenRouter.APIKey = k
		return cfg, true
	}

	return base, false
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case "anthropic", "openai", "gemini", "openrouter":
		if !c.HasKey() {
			return fmt.Errorf("llm.%s.api_key is required for the %s provider", c.Provider, c.Provider)
		}
	case "mock":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	return nil
}
