// Package evaluation grades a part's transcribed answers with an LLM and
// returns a free-text CEFR report.
package evaluation

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/speakbot/internal/llm"
)

// Purpose labels evaluation requests in the LLM event log.
const Purpose = "evaluation"

// truncatedNote is appended to a report cut off at MaxTokens.
const truncatedNote = "\n\n(The report was cut short.)"

var (
	// ErrNoAnswers is returned when a request carries no answers.
	ErrNoAnswers = errors.New("no answers to evaluate")

	// ErrEmptyReport is returned when the model produced no text.
	ErrEmptyReport = errors.New("evaluation report is empty")
)

// Config holds evaluation generation settings.
type Config struct {
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

// DefaultConfig returns sensible defaults for evaluation.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}

// Pair is one question with the candidate's answer to it.
type Pair struct {
	QuestionIndex int
	Question      string
	Answer        string
}

// Request describes one evaluated part.
type Request struct {
	TaskTitle string
	PartName  string
	Criteria  string
	MaxScore  int
	Pairs     []Pair
}

// Report is the model's assessment. Text is opaque to the bot.
type Report struct {
	Text  string
	Model string
}

// Service evaluates answers through an llm.Provider. Each call is a single
// request; failures are returned to the caller unretried.
type Service struct {
	provider llm.Provider
	cfg      Config
}

// NewService creates an evaluation service.
func NewService(provider llm.Provider, cfg Config) *Service {
	return &Service{provider: provider, cfg: cfg}
}

// Evaluate asks the model for a report on req.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Report, error) {
	if len(req.Pairs) == 0 {
		return nil, ErrNoAnswers
	}

	ctx = llm.WithPurpose(ctx, Purpose)

	resp, err := s.provider.Generate(ctx, llm.Request{
		System: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserMessage(req)},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	var invalid *llm.ErrInvalidResponse
	if errors.As(err, &invalid) {
		return nil, fmt.Errorf("%w: %v", ErrEmptyReport, err)
	}
	if err != nil {
		return nil, fmt.Errorf("evaluation: %w", err)
	}

	text := resp.Text
	if resp.Truncated() {
		text += truncatedNote
	}

	model := resp.Model
	if model == "" {
		model = s.provider.ModelID()
	}
	return &Report{Text: text, Model: model}, nil
}
