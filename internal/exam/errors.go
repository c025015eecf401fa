package exam

import (
	"errors"
	"fmt"
)

var (
	ErrAccessDenied        = errors.New("access denied")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrEvaluationFailed    = errors.New("evaluation failed")
	ErrDeadlineExpired     = errors.New("answer deadline expired")
	ErrInvalidAdminInput   = errors.New("invalid admin input")
	ErrNotAdmin            = errors.New("admin privileges required")
	ErrUnknownTask         = errors.New("unknown task")
	ErrUnknownPart         = errors.New("unknown part")
	ErrNoSession           = errors.New("no active session")
)

const genericNotice = "An error occurred. Please try again."

// UserNotice maps err onto the text shown to the user. Errors outside the
// exam taxonomy get a generic notice.
func UserNotice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccessDenied):
		return "You need admin approval to access this task."
	case errors.Is(err, ErrNotAdmin):
		return "You don't have admin privileges."
	case errors.Is(err, ErrInvalidAdminInput):
		return "Invalid user ID. Please enter a number."
	case errors.Is(err, ErrUnknownTask):
		return "That task does not exist. Use /start to see the available tasks."
	case errors.Is(err, ErrUnknownPart):
		return "That part does not exist. Please pick one from the menu."
	case errors.Is(err, ErrNoSession):
		return "Please select a task first. Use /start to see the available tasks."
	case errors.Is(err, ErrDeadlineExpired):
		return "Time's up! Moving to next question."
	case errors.Is(err, ErrTranscriptionFailed):
		return "We could not transcribe your answer. It was saved as unreadable."
	case errors.Is(err, ErrEvaluationFailed):
		return "Error generating evaluation. Please try again."
	default:
		return genericNotice
	}
}

// AnswerOutcome classifies what happened to a submitted or missed answer.
type AnswerOutcome int

const (
	OutcomeIgnored AnswerOutcome = iota // no question was open
	OutcomeRecorded
	OutcomeTranscriptionFailed // recorded with a placeholder text
	OutcomeLate                // discarded, deadline already passed
	OutcomeTimedOut            // the answer timer fired first
)

func (o AnswerOutcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeTranscriptionFailed:
		return "transcription_failed"
	case OutcomeLate:
		return "late"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "ignored"
	}
}

// Err returns the sentinel describing a degraded outcome, or nil.
func (o AnswerOutcome) Err() error {
	switch o {
	case OutcomeTranscriptionFailed:
		return ErrTranscriptionFailed
	case OutcomeLate, OutcomeTimedOut:
		return ErrDeadlineExpired
	default:
		return nil
	}
}

func invalidTarget(raw string) error {
	return fmt.Errorf("%w: %q is not a user id", ErrInvalidAdminInput, raw)
}
