package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/abhisek/speakbot/internal/evaluation"
	"github.com/abhisek/speakbot/internal/exam"
	"github.com/abhisek/speakbot/internal/llm"
	"github.com/abhisek/speakbot/internal/transcribe"
	"github.com/abhisek/speakbot/internal/transport"
)

// Config holds runtime configuration for the bot.
type Config struct {
	// DB is the SQLite database path. Empty uses the default data dir.
	DB string `koanf:"db"`

	// Script is an exam script YAML file. Empty uses the built-in script.
	Script string `koanf:"script"`

	Exam          exam.Config              `koanf:"exam"`
	Telegram      transport.TelegramConfig `koanf:"telegram"`
	LLM           llm.Config               `koanf:"llm"`
	Transcription transcribe.Config        `koanf:"transcription"`
	Evaluation    evaluation.Config        `koanf:"evaluation"`
	Log           LogConfig                `koanf:"log"`
	Metrics       MetricsConfig            `koanf:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the server.
	Addr string `koanf:"addr"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		Telegram:      transport.DefaultTelegramConfig(),
		LLM:           llm.DefaultConfig(),
		Transcription: transcribe.DefaultConfig(),
		Evaluation:    evaluation.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// SlogLevel parses the configured log level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Level)
	}
	return lvl, nil
}

// Validate checks settings every command depends on.
func (c *Config) Validate() error {
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q must be text or json", ErrInvalidConfig, c.Log.Format)
	}
	if c.Exam.AdminID < 0 {
		return fmt.Errorf("%w: exam.admin_id must not be negative", ErrInvalidConfig)
	}
	if c.Evaluation.MaxTokens <= 0 {
		return fmt.Errorf("%w: evaluation.max_tokens must be positive", ErrInvalidConfig)
	}
	return nil
}

// ValidateServe checks everything the running bot needs on top of
// Validate: a bot token and usable speech and LLM services.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram.token is required (or set TELEGRAM_TOKEN)", ErrInvalidConfig)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
