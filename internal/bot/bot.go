// Package bot routes incoming chat updates to the exam controller. Each
// update is handled in its own goroutine behind one error boundary that
// turns failures and panics into a user-visible notice.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/speakbot/internal/exam"
	"github.com/abhisek/speakbot/internal/transport"
)

const (
	helpText           = "Use /start to see the tasks, /results to see your evaluations."
	unknownCommandText = "Unknown command. " + helpText
)

// Metrics observes handled updates. It may be nil.
type Metrics interface {
	UpdateHandled(kind string, elapsed time.Duration, err error)
	Panic()
}

// Bot dispatches updates from a Source to an exam Controller.
type Bot struct {
	source  transport.Source
	out     transport.Messenger
	ctl     *exam.Controller
	metrics Metrics
	logger  *slog.Logger

	mu sync.Mutex
	// awaitingGrant holds admins whose next text message is a grant target.
	awaitingGrant map[int64]bool

	wg sync.WaitGroup
}

// New creates a Bot.
func New(source transport.Source, out transport.Messenger, ctl *exam.Controller, metrics Metrics, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		source:        source,
		out:           out,
		ctl:           ctl,
		metrics:       metrics,
		logger:        logger.With("component", "bot"),
		awaitingGrant: make(map[int64]bool),
	}
}

// Run consumes updates until ctx is done, then waits for in-flight
// handlers to finish.
func (b *Bot) Run(ctx context.Context) error {
	updates, err := b.source.Updates(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to updates: %w", err)
	}

	b.logger.Info("bot started")
	for u := range updates {
		b.wg.Add(1)
		go func(u transport.Update) {
			defer b.wg.Done()
			b.Handle(ctx, u)
		}(u)
	}
	b.wg.Wait()
	b.logger.Info("bot stopped")
	return nil
}

// Handle processes one update. It never panics and never returns an
// error; failures are logged and reported to the user.
func (b *Bot) Handle(ctx context.Context, u transport.Update) {
	start := time.Now()
	logger := b.logger.With("user", u.UserID, "kind", u.Kind.String())

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic", "panic", r, "stack", string(debug.Stack()))
			if b.metrics != nil {
				b.metrics.Panic()
			}
			b.notify(ctx, u.UserID, exam.UserNotice(fmt.Errorf("panic: %v", r)))
		}
	}()

	err := b.dispatch(ctx, u)

	if u.CallbackID != "" {
		if ackErr := b.source.Ack(ctx, u.CallbackID); ackErr != nil {
			logger.Debug("ack failed", "error", ackErr)
		}
	}
	if b.metrics != nil {
		b.metrics.UpdateHandled(u.Kind.String(), time.Since(start), err)
	}
	if err != nil {
		logger.Warn("update failed", "error", err)
		b.notify(ctx, u.UserID, exam.UserNotice(err))
	}
}

func (b *Bot) dispatch(ctx context.Context, u transport.Update) error {
	switch u.Kind {
	case transport.KindCommand:
		b.setAwaitingGrant(u.UserID, false)
		return b.command(ctx, u)
	case transport.KindAction:
		return b.action(ctx, u)
	case transport.KindVoice:
		outcome, err := b.ctl.SubmitAnswer(ctx, u.UserID, u.Clip)
		b.logger.Debug("answer submitted", "user", u.UserID, "outcome", outcome.String())
		return err
	case transport.KindText:
		if b.takeAwaitingGrant(u.UserID) {
			return b.ctl.GrantAccess(ctx, u.UserID, u.Text)
		}
		return nil
	default:
		return nil
	}
}

func (b *Bot) command(ctx context.Context, u transport.Update) error {
	switch u.Command {
	case "start":
		return b.ctl.Start(ctx, u.UserID, u.DisplayName)
	case "results":
		return b.ctl.ShowResults(ctx, u.UserID)
	case "grant":
		if strings.TrimSpace(u.Args) == "" {
			return b.promptGrant(ctx, u.UserID)
		}
		return b.ctl.GrantAccess(ctx, u.UserID, u.Args)
	case "users":
		return b.ctl.ListUsers(ctx, u.UserID)
	case "help":
		b.notify(ctx, u.UserID, helpText)
		return nil
	default:
		b.notify(ctx, u.UserID, unknownCommandText)
		return nil
	}
}

func (b *Bot) action(ctx context.Context, u transport.Update) error {
	if id, ok := exam.ParseTaskAction(u.Action); ok {
		return b.ctl.SelectTask(ctx, u.UserID, id)
	}
	if idx, ok := exam.ParsePartAction(u.Action); ok {
		return b.ctl.StartPart(ctx, u.UserID, idx)
	}

	switch u.Action {
	case exam.ActionBackToTasks:
		b.ctl.ShowTasks(ctx, u.UserID)
		return nil
	case exam.ActionMyResults:
		return b.ctl.ShowResults(ctx, u.UserID)
	case exam.ActionAdminPanel:
		return b.ctl.ShowAdminPanel(ctx, u.UserID)
	case exam.ActionGrantAccess:
		return b.promptGrant(ctx, u.UserID)
	case exam.ActionViewUsers:
		return b.ctl.ListUsers(ctx, u.UserID)
	default:
		b.logger.Debug("unknown action", "user", u.UserID, "action", u.Action)
		return nil
	}
}

func (b *Bot) promptGrant(ctx context.Context, userID int64) error {
	if err := b.ctl.PromptGrant(ctx, userID); err != nil {
		return err
	}
	b.setAwaitingGrant(userID, true)
	return nil
}

func (b *Bot) setAwaitingGrant(userID int64, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v {
		b.awaitingGrant[userID] = true
	} else {
		delete(b.awaitingGrant, userID)
	}
}

func (b *Bot) takeAwaitingGrant(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok := b.awaitingGrant[userID]
	delete(b.awaitingGrant, userID)
	return ok
}

func (b *Bot) notify(ctx context.Context, userID int64, text string) {
	if text == "" {
		return
	}
	if err := b.out.Send(ctx, transport.Message{UserID: userID, Text: text}); err != nil {
		b.logger.Warn("send notice failed", "user", userID, "error", err)
	}
}
