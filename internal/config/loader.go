package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/abhisek/speakbot/internal/llm"
)

const envPrefix = "SPEAKBOT_"

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. YAML file at path, or at SPEAKBOT_CONFIG when path is empty
//  3. env (prefix SPEAKBOT_, "__" separates sections)
//  4. well-known fallbacks for unset values: TELEGRAM_TOKEN, ADMIN_ID and
//     the provider API key variables
func Load(path string) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// SPEAKBOT_LLM__OPENAI__API_KEY -> llm.openai.api_key
	// SPEAKBOT_DB -> db
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: read env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := applyFallbacks(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyFallbacks(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	}

	if cfg.Exam.AdminID == 0 {
		if raw := os.Getenv("ADMIN_ID"); raw != "" {
			id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return fmt.Errorf("%w: ADMIN_ID %q is not a user id", ErrInvalidConfig, raw)
			}
			cfg.Exam.AdminID = id
		}
	}

	if cfg.LLM.Provider != "mock" && !cfg.LLM.HasKey() {
		if discovered, ok := llm.DiscoverConfig(cfg.LLM); ok {
			cfg.LLM = discovered
		}
	}

	// Whisper shares the OpenAI account.
	if cfg.Transcription.Provider == "whisper" && cfg.Transcription.APIKey == "" {
		cfg.Transcription.APIKey = cfg.LLM.OpenAI.APIKey
		if cfg.Transcription.APIKey == "" {
			cfg.Transcription.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	return nil
}
