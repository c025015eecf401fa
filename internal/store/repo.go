package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// ScoreKey identifies one evaluated part of one task.
type ScoreKey struct {
	TaskID    int
	PartIndex int
}

// Score is the latest evaluation report stored for a ScoreKey.
type Score struct {
	Report     string
	RecordedAt time.Time
}

// Profile is the persisted record of a bot user.
type Profile struct {
	UserID      int64
	DisplayName string
	HasAccess   bool
	CreatedAt   time.Time

	// Scores is nil for profiles returned by List.
	Scores map[ScoreKey]Score
}

// ProfileRepo persists user profiles, access grants and evaluation reports.
type ProfileRepo interface {
	// FetchOrCreate returns the profile for userID, creating it with the
	// given name and access flag when none exists. An existing profile is
	// returned unchanged.
	FetchOrCreate(ctx context.Context, userID int64, displayName string, hasAccess bool) (*Profile, error)

	// Get returns the profile for userID, or nil if none exists.
	Get(ctx context.Context, userID int64) (*Profile, error)

	// SetAccess grants or revokes restricted-task access. A missing profile
	// is created.
	SetAccess(ctx context.Context, userID int64, granted bool) error

	// RecordScore stores report under key, overwriting any earlier report
	// for the same key. A missing profile is created.
	RecordScore(ctx context.Context, userID int64, key ScoreKey, report string, at time.Time) error

	// List returns profiles ordered by creation time, oldest first.
	List(ctx context.Context, limit int) ([]Profile, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a stored LLM request event.
type LLMEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStats aggregates LLM calls for one purpose.
type LLMUsageStats struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int
}

// LLMModelUsage aggregates token usage for one model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// Exam event actions.
const (
	ActionTaskSelected = "task_selected"
	ActionPartStarted  = "part_started"
	ActionAsked        = "asked"
	ActionAnswered     = "answered"
	ActionLate         = "late"
	ActionTimedOut     = "timed_out"
	ActionEvaluated    = "evaluated"
	ActionEvalFailed   = "evaluation_failed"
	ActionAccessDenied = "access_denied"
	ActionGranted      = "access_granted"
)

// ExamEventData captures one step of an exam session.
type ExamEventData struct {
	SessionID     string
	UserID        int64
	TaskID        int
	PartIndex     int
	QuestionIndex int // -1 when the event is not tied to a question
	Action        string
	Detail        string
}

// ExamEventRecord is a stored exam event.
type ExamEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	ExamEventData
}

// EventRepo provides append and query access to domain events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns LLM events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)

	// GetLLMEvent returns one LLM event by ID, or nil if none exists.
	GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error)

	// LLMUsageByPurpose aggregates calls and tokens per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)

	// LLMUsageByModel aggregates calls and tokens per model.
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)

	// AppendExamEvent records one exam step.
	AppendExamEvent(ctx context.Context, data ExamEventData) error

	// QueryExamEvents returns exam events for userID, newest first.
	// A zero userID matches every user.
	QueryExamEvents(ctx context.Context, userID int64, opts QueryOpts) ([]ExamEventRecord, error)
}
