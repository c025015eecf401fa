// Package exam runs the speaking-exam flow: task and part selection, the
// preparation period, timed questions, answer collection and evaluation.
// It also owns access control for restricted tasks and the admin grant.
package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/speakbot/internal/evaluation"
	"github.com/abhisek/speakbot/internal/script"
	"github.com/abhisek/speakbot/internal/session"
	"github.com/abhisek/speakbot/internal/store"
	"github.com/abhisek/speakbot/internal/transcribe"
	"github.com/abhisek/speakbot/internal/transport"
)

// Evaluator scores the answers of one part.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluation.Request) (*evaluation.Report, error)
}

// Metrics receives flow counters. A nil Metrics in Deps disables them.
type Metrics interface {
	TaskSelected(taskID int)
	PartStarted(taskID, partIndex int)
	Answer(outcome AnswerOutcome)
	Evaluation(success bool, elapsed time.Duration)
	AccessDenied()
	AccessGranted()
	ActiveSessions(n int)
}

type nopMetrics struct{}

func (nopMetrics) TaskSelected(int) {}
func (nopMetrics) PartStarted(int, int) {}
func (nopMetrics) Answer(AnswerOutcome) {}
func (nopMetrics) Evaluation(bool, time.Duration) {}
func (nopMetrics) AccessDenied() {}
func (nopMetrics) AccessGranted() {}
func (nopMetrics) ActiveSessions(int) {}

// Config holds the controller's identity settings.
type Config struct {
	// AdminID is the single always-privileged user. Zero disables admin.
	AdminID int64 `koanf:"admin_id"`

	// WebAppURL adds an "Open Web App" button to the welcome message.
	WebAppURL string `koanf:"webapp_url"`
}

// Deps are the collaborators of a Controller. Events and Metrics are
// optional.
type Deps struct {
	Catalog     *script.Catalog
	Registry    *session.Registry
	Profiles    store.ProfileRepo
	Events      store.EventRepo
	Messenger   transport.Messenger
	Transcriber transcribe.Transcriber
	Evaluator   Evaluator
	Metrics     Metrics
	Logger      *slog.Logger
}

// Controller drives every user's exam flow. All per-user work runs under
// that user's registry slot, so operations for one user never interleave.
type Controller struct {
	cfg      Config
	catalog  *script.Catalog
	reg      *session.Registry
	profiles store.ProfileRepo
	events   store.EventRepo
	out      transport.Messenger
	stt      transcribe.Transcriber
	eval     Evaluator
	metrics  Metrics
	logger   *slog.Logger

	// ctx scopes timer-driven work, which has no request context.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Controller.
func New(cfg Config, deps Deps) (*Controller, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("exam: catalog is required")
	case deps.Registry == nil:
		return nil, errors.New("exam: session registry is required")
	case deps.Profiles == nil:
		return nil, errors.New("exam: profile repo is required")
	case deps.Messenger == nil:
		return nil, errors.New("exam: messenger is required")
	case deps.Transcriber == nil:
		return nil, errors.New("exam: transcriber is required")
	case deps.Evaluator == nil:
		return nil, errors.New("exam: evaluator is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:      cfg,
		catalog:  deps.Catalog,
		reg:      deps.Registry,
		profiles: deps.Profiles,
		events:   deps.Events,
		out:      deps.Messenger,
		stt:      deps.Transcriber,
		eval:     deps.Evaluator,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With("component", "exam"),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Close stops all pending timers and cancels timer-driven work.
func (c *Controller) Close() {
	c.reg.Shutdown()
	c.cancel()
}

// IsAdmin reports whether userID is the configured admin.
func (c *Controller) IsAdmin(userID int64) bool {
	return c.cfg.AdminID != 0 && userID == c.cfg.AdminID
}

// Start greets the user, creating their profile on first contact, and
// shows the task menu. Any part in progress is abandoned.
func (c *Controller) Start(ctx context.Context, userID int64, displayName string) error {
	if _, err := c.profiles.FetchOrCreate(ctx, userID, displayName, c.IsAdmin(userID)); err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	h := c.reg.Acquire(userID)
	if h.Session() != nil {
		h.Retire()
		c.metrics.ActiveSessions(c.reg.Active())
	}
	h.Release()

	c.send(ctx, welcomeMessage(userID, displayName, c.cfg.WebAppURL))
	c.showTasks(ctx, userID)
	return nil
}

// ShowTasks presents the task menu.
func (c *Controller) ShowTasks(ctx context.Context, userID int64) {
	c.showTasks(ctx, userID)
}

func (c *Controller) showTasks(ctx context.Context, userID int64) {
	c.send(ctx, taskMenu(userID, c.catalog.Tasks(), c.IsAdmin(userID)))
}

// SelectTask starts a session for taskID and presents its parts.
// Restricted tasks need an access grant; a denied selection leaves any
// existing session untouched.
func (c *Controller) SelectTask(ctx context.Context, userID int64, taskID int) error {
	task, ok := c.catalog.Task(taskID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTask, taskID)
	}

	if task.Restricted {
		allowed, err := c.hasAccess(ctx, userID)
		if err != nil {
			return err
		}
		if !allowed {
			c.metrics.AccessDenied()
			c.record(ctx, store.ExamEventData{
				UserID: userID, TaskID: taskID, QuestionIndex: -1,
				Action: store.ActionAccessDenied,
			})
			return fmt.Errorf("%w: task %d", ErrAccessDenied, taskID)
		}
	}

	h := c.reg.Acquire(userID)
	defer h.Release()

	sess := h.Begin(taskID)
	c.metrics.TaskSelected(taskID)
	c.metrics.ActiveSessions(c.reg.Active())
	c.record(ctx, c.event(sess, store.ActionTaskSelected, task.Title))

	c.send(ctx, partMenu(userID, task))
	return nil
}

func (c *Controller) hasAccess(ctx context.Context, userID int64) (bool, error) {
	if c.IsAdmin(userID) {
		return true, nil
	}
	p, err := c.profiles.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}
	return p != nil && p.HasAccess, nil
}

// StartPart begins partIndex of the selected task: it shows the
// preparation text and arms the preparation timer, after which the first
// question is asked.
func (c *Controller) StartPart(ctx context.Context, userID int64, partIndex int) error {
	h := c.reg.Acquire(userID)
	defer h.Release()

	sess := h.Session()
	if sess == nil {
		return ErrNoSession
	}
	part, ok := c.catalog.Part(sess.TaskID, partIndex)
	if !ok {
		return fmt.Errorf("%w: task %d part %d", ErrUnknownPart, sess.TaskID, partIndex)
	}

	now := h.Now()
	sess.StartPart(partIndex, part.QuestionCount(), now, now.Add(part.PrepTime()))
	h.Arm(part.PrepTime(), c.onPrepElapsed)

	c.metrics.PartStarted(sess.TaskID, partIndex)
	c.record(ctx, c.event(sess, store.ActionPartStarted, part.Name))
	c.logger.Debug("part started", "user", userID, "session", sess.ID,
		"task", sess.TaskID, "part", partIndex, "questions", part.QuestionCount())

	c.send(ctx, transport.Message{UserID: userID, Text: prepText(part)})
	return nil
}

func (c *Controller) onPrepElapsed(h *session.Handle) {
	if err := c.askCurrent(c.ctx, h); err != nil {
		c.logger.Warn("ask after preparation failed", "user", h.UserID(), "error", err)
	}
}

// AskCurrentQuestion asks the session's current question, or evaluates
// the part once every question has been asked.
func (c *Controller) AskCurrentQuestion(ctx context.Context, userID int64) error {
	h := c.reg.Acquire(userID)
	defer h.Release()
	return c.askCurrent(ctx, h)
}

func (c *Controller) askCurrent(ctx context.Context, h *session.Handle) error {
	sess := h.Session()
	if sess == nil || sess.Phase < session.PhasePreparing {
		return ErrNoSession
	}
	if sess.Phase == session.PhaseEvaluating {
		return nil
	}
	part, ok := c.catalog.Part(sess.TaskID, sess.PartIndex)
	if !ok {
		return fmt.Errorf("%w: task %d part %d", ErrUnknownPart, sess.TaskID, sess.PartIndex)
	}
	if !sess.Remaining() {
		return c.evaluate(ctx, h)
	}

	question, _ := part.Question(sess.QuestionIndex)
	window := part.QuestionWindow()

	sess.Phase = session.PhaseAsking
	sess.Deadline = h.Now().Add(window)
	h.Arm(window, c.onAnswerTimeout(sess.ID, sess.QuestionIndex))

	c.record(ctx, c.event(sess, store.ActionAsked, ""))
	c.send(ctx, transport.Message{
		UserID: sess.UserID,
		Text:   questionText(sess.QuestionIndex, sess.QuestionCount, question, window),
	})
	return nil
}

func (c *Controller) onAnswerTimeout(sessionID string, questionIndex int) func(*session.Handle) {
	return func(h *session.Handle) {
		sess := h.Session()
		if sess == nil || sess.ID != sessionID || sess.QuestionIndex != questionIndex ||
			sess.Phase != session.PhaseAsking {
			return
		}

		c.record(c.ctx, c.event(sess, store.ActionTimedOut, ""))
		sess.Skip()
		c.metrics.Answer(OutcomeTimedOut)
		c.send(c.ctx, transport.Message{UserID: sess.UserID, Text: timesUpText})

		if err := c.askCurrent(c.ctx, h); err != nil {
			c.logger.Warn("ask after timeout failed", "user", sess.UserID, "error", err)
		}
	}
}

// SubmitAnswer handles a voice answer to the open question. Submissions
// outside an open question are ignored. A late submission is discarded and
// the flow moves on; a failed transcription is recorded as a placeholder.
func (c *Controller) SubmitAnswer(ctx context.Context, userID int64, clip transcribe.Clip) (AnswerOutcome, error) {
	h := c.reg.Acquire(userID)
	defer h.Release()

	sess := h.Session()
	if sess == nil || sess.Phase != session.PhaseAsking || !sess.HasDeadline() {
		return OutcomeIgnored, nil
	}

	now := h.Now()
	if sess.Expired(now) {
		h.Disarm()
		c.record(ctx, c.event(sess, store.ActionLate, ""))
		sess.Skip()
		c.metrics.Answer(OutcomeLate)
		c.send(ctx, transport.Message{UserID: userID, Text: timesUpText})
		return OutcomeLate, c.askCurrent(ctx, h)
	}

	h.Disarm()

	outcome := OutcomeRecorded
	text, err := c.stt.Transcribe(ctx, clip)
	if err != nil {
		c.logger.Warn("transcription failed", "user", userID, "session", sess.ID,
			"question", sess.QuestionIndex, "error", err)
		outcome = OutcomeTranscriptionFailed
		text = placeholderAnswer
	}

	ev := c.event(sess, store.ActionAnswered, outcome.String())
	sess.Record(text, outcome == OutcomeRecorded, now)
	c.record(ctx, ev)
	c.metrics.Answer(outcome)

	return outcome, c.askCurrent(ctx, h)
}

// Evaluate scores the answers collected so far and ends the session.
func (c *Controller) Evaluate(ctx context.Context, userID int64) error {
	h := c.reg.Acquire(userID)
	defer h.Release()
	if h.Session() == nil {
		return ErrNoSession
	}
	return c.evaluate(ctx, h)
}

func (c *Controller) evaluate(ctx context.Context, h *session.Handle) error {
	sess := h.Session()
	userID := sess.UserID
	sess.Phase = session.PhaseEvaluating
	sess.ClearDeadline()
	h.Disarm()

	defer func() {
		h.Retire()
		c.metrics.ActiveSessions(c.reg.Active())
		c.showTasks(ctx, userID)
	}()

	if len(sess.Answers) == 0 {
		c.send(ctx, transport.Message{UserID: userID, Text: nothingToEvalText})
		return nil
	}

	task, _ := c.catalog.Task(sess.TaskID)
	part, ok := c.catalog.Part(sess.TaskID, sess.PartIndex)
	if task == nil || !ok {
		return fmt.Errorf("%w: task %d part %d", ErrUnknownPart, sess.TaskID, sess.PartIndex)
	}

	req := evaluation.Request{
		TaskTitle: task.Title,
		PartName:  part.Name,
		Criteria:  part.Criteria,
		MaxScore:  part.MaxScore,
	}
	for _, a := range sess.Answers {
		q, _ := part.Question(a.QuestionIndex)
		req.Pairs = append(req.Pairs, evaluation.Pair{
			QuestionIndex: a.QuestionIndex,
			Question:      q,
			Answer:        a.Text,
		})
	}

	c.send(ctx, transport.Message{UserID: userID, Text: evaluatingText})

	start := time.Now()
	report, err := c.eval.Evaluate(ctx, req)
	c.metrics.Evaluation(err == nil, time.Since(start))
	if err != nil {
		c.logger.Error("evaluation failed", "user", userID, "session", sess.ID, "error", err)
		c.record(ctx, c.event(sess, store.ActionEvalFailed, err.Error()))
		c.send(ctx, transport.Message{UserID: userID, Text: UserNotice(ErrEvaluationFailed)})
		return nil
	}

	key := store.ScoreKey{TaskID: sess.TaskID, PartIndex: sess.PartIndex}
	if err := c.profiles.RecordScore(ctx, userID, key, report.Text, h.Now()); err != nil {
		c.logger.Error("store report failed", "user", userID, "task", key.TaskID, "part", key.PartIndex, "error", err)
	}
	c.record(ctx, c.event(sess, store.ActionEvaluated, report.Model))
	c.send(ctx, transport.Message{UserID: userID, Text: reportText(report.Text)})
	return nil
}

// ShowResults lists the user's stored reports.
func (c *Controller) ShowResults(ctx context.Context, userID int64) error {
	p, err := c.profiles.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	c.send(ctx, transport.Message{
		UserID:  userID,
		Text:    resultsText(c.catalog, p),
		Buttons: [][]transport.Button{backButton()},
	})
	return nil
}

// ShowAdminPanel presents the admin actions.
func (c *Controller) ShowAdminPanel(ctx context.Context, userID int64) error {
	if !c.IsAdmin(userID) {
		return ErrNotAdmin
	}
	c.send(ctx, adminPanel(userID))
	return nil
}

// PromptGrant asks the admin for the user id to grant access to.
func (c *Controller) PromptGrant(ctx context.Context, userID int64) error {
	if !c.IsAdmin(userID) {
		return ErrNotAdmin
	}
	c.send(ctx, transport.Message{UserID: userID, Text: GrantPrompt, ForceReply: true})
	return nil
}

// GrantAccess gives the user named by rawTarget access to every task.
// The admin gets a confirmation and the target exactly one notification.
func (c *Controller) GrantAccess(ctx context.Context, adminID int64, rawTarget string) error {
	if !c.IsAdmin(adminID) {
		return ErrNotAdmin
	}
	target, err := ParseUserID(rawTarget)
	if err != nil {
		return err
	}
	if err := c.profiles.SetAccess(ctx, target, true); err != nil {
		return fmt.Errorf("grant access to %d: %w", target, err)
	}

	c.metrics.AccessGranted()
	c.record(ctx, store.ExamEventData{
		UserID: target, QuestionIndex: -1,
		Action: store.ActionGranted, Detail: fmt.Sprintf("by %d", adminID),
	})
	c.logger.Info("access granted", "admin", adminID, "user", target)

	c.send(ctx, transport.Message{UserID: adminID, Text: fmt.Sprintf("Access granted for user %d", target)})
	c.send(ctx, transport.Message{UserID: target, Text: "Admin has granted you access to all tasks!"})
	return nil
}

// ListUsers shows the admin every profile with its access flag.
func (c *Controller) ListUsers(ctx context.Context, adminID int64) error {
	if !c.IsAdmin(adminID) {
		return ErrNotAdmin
	}
	profiles, err := c.profiles.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	c.send(ctx, transport.Message{
		UserID:  adminID,
		Text:    usersText(profiles),
		Buttons: [][]transport.Button{backButton()},
	})
	return nil
}

func (c *Controller) send(ctx context.Context, msg transport.Message) {
	if err := c.out.Send(ctx, msg); err != nil {
		c.logger.Warn("send failed", "user", msg.UserID, "error", err)
	}
}

func (c *Controller) event(sess *session.Session, action, detail string) store.ExamEventData {
	return store.ExamEventData{
		SessionID:     sess.ID,
		UserID:        sess.UserID,
		TaskID:        sess.TaskID,
		PartIndex:     sess.PartIndex,
		QuestionIndex: sess.QuestionIndex,
		Action:        action,
		Detail:        detail,
	}
}

func (c *Controller) record(ctx context.Context, data store.ExamEventData) {
	if c.events == nil {
		return
	}
	if err := c.events.AppendExamEvent(context.WithoutCancel(ctx), data); err != nil {
		c.logger.Warn("record exam event failed", "action", data.Action, "error", err)
	}
}
