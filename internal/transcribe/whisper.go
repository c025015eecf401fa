package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Whisper transcribes clips with the OpenAI audio transcription API.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
	timeout  time.Duration
}

// NewWhisper creates a Whisper client from cfg.
func NewWhisper(cfg Config) (*Whisper, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("whisper API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &Whisper{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		language: cfg.Language,
		timeout:  cfg.Timeout,
	}, nil
}

func (w *Whisper) Transcribe(ctx context.Context, clip Clip) (string, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	audio, err := clip.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open clip: %w", err)
	}
	defer audio.Close()

	name := clip.Name()
	if name == "" {
		name = "answer.ogg"
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: name,
		Reader:   audio,
		Language: w.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
