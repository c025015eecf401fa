// Package transcribe turns recorded voice answers into text.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrEmptyTranscript is returned when the service produced no text.
	ErrEmptyTranscript = errors.New("transcription is empty")

	// ErrDisabled is returned by Noop.
	ErrDisabled = errors.New("transcription is disabled")
)

// Clip is a reference to one recorded audio answer.
type Clip interface {
	// Name is a file name hint including the extension, e.g. "answer.ogg".
	Name() string

	// Open returns the audio bytes. Callers close the reader.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Transcriber converts a clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip Clip) (string, error)
}

// BytesClip is an in-memory Clip.
type BytesClip struct {
	FileName string
	Data     []byte
}

func (c BytesClip) Name() string { return c.FileName }

func (c BytesClip) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(c.Data)), nil
}

// Config selects and configures a Transcriber.
type Config struct {
	// Provider is "whisper", "mock" or "noop".
	Provider string        `koanf:"provider"`
	APIKey   string        `koanf:"api_key"`
	Model    string        `koanf:"model"`
	BaseURL  string        `koanf:"base_url"`
	Language string        `koanf:"language"`
	Timeout  time.Duration `koanf:"timeout"`
}

// DefaultConfig returns the Whisper defaults.
func DefaultConfig() Config {
	return Config{
		Provider: "whisper",
		Model:    "whisper-1",
		Language: "en",
		Timeout:  60 * time.Second,
	}
}

// Validate checks that the selected provider is usable.
func (c Config) Validate() error {
	switch c.Provider {
	case "whisper":
		if c.APIKey == "" {
			return fmt.Errorf("transcription.api_key is required for the whisper provider")
		}
	case "mock", "noop":
	default:
		return fmt.Errorf("unknown transcription provider: %q", c.Provider)
	}
	return nil
}

// New builds the Transcriber selected by cfg.
func New(cfg Config) (Transcriber, error) {
	switch cfg.Provider {
	case "whisper":
		return NewWhisper(cfg)
	case "mock":
		m := NewMock()
		m.Fallback = "mock transcript"
		return m, nil
	case "noop":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown transcription provider: %q", cfg.Provider)
	}
}

// Noop rejects every clip. Used when no speech service is configured.
type Noop struct{}

func (Noop) Transcribe(context.Context, Clip) (string, error) {
	return "", ErrDisabled
}
