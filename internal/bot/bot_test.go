package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/speakbot/internal/evaluation"
	"github.com/abhisek/speakbot/internal/exam"
	"github.com/abhisek/speakbot/internal/llm"
	"github.com/abhisek/speakbot/internal/script"
	"github.com/abhisek/speakbot/internal/session"
	"github.com/abhisek/speakbot/internal/store"
	"github.com/abhisek/speakbot/internal/transcribe"
	"github.com/abhisek/speakbot/internal/transport"
)

const (
	adminID int64 = 1
	userID  int64 = 2
)

type chanSource struct {
	ch chan transport.Update

	mu   sync.Mutex
	acks []string
}

func (s *chanSource) Updates(context.Context) (<-chan transport.Update, error) {
	return s.ch, nil
}

func (s *chanSource) Ack(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks = append(s.acks, id)
	return nil
}

type recordingMetrics struct {
	mu      sync.Mutex
	handled map[string]int
	failed  int
	panics  int
}

func (m *recordingMetrics) UpdateHandled(kind string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handled == nil {
		m.handled = map[string]int{}
	}
	m.handled[kind]++
	if err != nil {
		m.failed++
	}
}

func (m *recordingMetrics) Panic() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

type fixture struct {
	bot     *Bot
	source  *chanSource
	out     *transport.Recorder
	clock   *session.FakeClock
	store   *store.Store
	metrics *recordingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.Open(fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	out := transport.NewRecorder()
	clock := session.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	stt := transcribe.NewMock()
	stt.Fallback = "an answer"
	provider := llm.NewMockProvider()
	provider.Fallback = func(llm.Request) llm.MockResponse { return llm.MockText("Score: 3/5") }

	ctl, err := exam.New(exam.Config{AdminID: adminID}, exam.Deps{
		Catalog:     script.Default(),
		Registry:    session.NewRegistry(clock),
		Profiles:    st.ProfileRepo(),
		Events:      st.EventRepo(),
		Messenger:   out,
		Transcriber: stt,
		Evaluator:   evaluation.NewService(provider, evaluation.DefaultConfig()),
		Logger:      logger,
	})
	require.NoError(t, err)
	t.Cleanup(ctl.Close)

	source := &chanSource{ch: make(chan transport.Update)}
	metrics := &recordingMetrics{}
	return &fixture{
		bot:     New(source, out, ctl, metrics, logger),
		source:  source,
		out:     out,
		clock:   clock,
		store:   st,
		metrics: metrics,
	}
}

func command(uid int64, cmd, args string) transport.Update {
	return transport.Update{UserID: uid, DisplayName: "User", Kind: transport.KindCommand, Command: cmd, Args: args}
}

func action(uid int64, a string) transport.Update {
	return transport.Update{UserID: uid, Kind: transport.KindAction, Action: a, CallbackID: "cb-" + a}
}

func text(uid int64, s string) transport.Update {
	return transport.Update{UserID: uid, Kind: transport.KindText, Text: s}
}

func TestStartCommand(t *testing.T) {
	f := newFixture(t)
	f.bot.Handle(t.Context(), command(userID, "start", ""))

	texts := f.out.Texts(userID)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Salom, User!")
	assert.Equal(t, "Select a task:", texts[1])
}

func TestActionAcksAndRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.bot.Handle(ctx, action(userID, "task_1"))
	f.bot.Handle(ctx, action(userID, "part_0"))

	assert.Equal(t, []string{"cb-task_1", "cb-part_0"}, f.source.acks)
	last, _ := f.out.Last(userID)
	assert.Contains(t, last.Text, "Preparation time: 5 seconds")
}

func TestFullPartThroughBot(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.bot.Handle(ctx, action(userID, "task_1"))
	f.bot.Handle(ctx, action(userID, "part_0"))
	f.clock.Advance(5 * time.Second)

	clip := &transcribe.BytesClip{FileName: "a.ogg", Data: []byte("x")}
	for range 3 {
		f.bot.Handle(ctx, transport.Update{UserID: userID, Kind: transport.KindVoice, Clip: clip})
	}

	assert.Equal(t, 1, f.out.Count(userID, "Evaluation Results:\n\nScore: 3/5"))

	f.bot.Handle(ctx, action(userID, exam.ActionMyResults))
	last, _ := f.out.Last(userID)
	assert.Contains(t, last.Text, "Score: 3/5")
}

func TestErrorBecomesNotice(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.bot.Handle(ctx, action(userID, "task_4"))
	assert.Equal(t, []string{exam.UserNotice(exam.ErrAccessDenied)}, f.out.Texts(userID))

	f.bot.Handle(ctx, action(userID, "part_0"))
	last, _ := f.out.Last(userID)
	assert.Equal(t, exam.UserNotice(exam.ErrNoSession), last.Text)

	assert.Equal(t, 2, f.metrics.failed)
}

func TestPanicIsRecovered(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.bot.Handle(ctx, action(userID, "task_1"))
	f.bot.Handle(ctx, action(userID, "part_0"))
	f.clock.Advance(5 * time.Second)

	// A voice update without a clip makes the transcriber panic.
	assert.NotPanics(t, func() {
		f.bot.Handle(ctx, transport.Update{UserID: userID, Kind: transport.KindVoice})
	})
	assert.Equal(t, 1, f.metrics.panics)
	last, _ := f.out.Last(userID)
	assert.Equal(t, "An error occurred. Please try again.", last.Text)

	// The slot was released during the panic.
	f.bot.Handle(ctx, action(userID, exam.ActionBackToTasks))
	last, _ = f.out.Last(userID)
	assert.Equal(t, "Select a task:", last.Text)
}

func TestGrantReplyFlow(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	// A plain text from the admin is ignored until a grant is requested.
	f.bot.Handle(ctx, text(adminID, "99"))
	assert.Empty(t, f.out.Texts(adminID))

	f.bot.Handle(ctx, action(adminID, exam.ActionGrantAccess))
	last, _ := f.out.Last(adminID)
	assert.True(t, last.ForceReply)

	f.bot.Handle(ctx, text(adminID, "99"))
	last, _ = f.out.Last(adminID)
	assert.Equal(t, "Access granted for user 99", last.Text)
	assert.Equal(t, []string{"Admin has granted you access to all tasks!"}, f.out.Texts(99))

	// The reply state is consumed.
	f.bot.Handle(ctx, text(adminID, "100"))
	assert.Empty(t, f.out.Texts(100))
}

func TestGrantReplyInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.bot.Handle(ctx, action(adminID, exam.ActionGrantAccess))
	f.bot.Handle(ctx, text(adminID, "not a number"))

	last, _ := f.out.Last(adminID)
	assert.Equal(t, exam.UserNotice(exam.ErrInvalidAdminInput), last.Text)

	profiles, err := f.store.ProfileRepo().List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestCommandCancelsGrantReply(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.bot.Handle(ctx, action(adminID, exam.ActionGrantAccess))
	f.bot.Handle(ctx, command(adminID, "help", ""))
	f.bot.Handle(ctx, text(adminID, "99"))

	assert.Empty(t, f.out.Texts(99))
}

func TestGrantCommandWithArgs(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.bot.Handle(ctx, command(adminID, "grant", "123"))
	assert.Equal(t, []string{"Access granted for user 123"}, f.out.Texts(adminID))

	f.bot.Handle(ctx, command(userID, "grant", "123"))
	assert.Equal(t, []string{exam.UserNotice(exam.ErrNotAdmin)}, f.out.Texts(userID))
}

func TestNonAdminCannotPromptGrant(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.bot.Handle(ctx, action(userID, exam.ActionGrantAccess))
	f.bot.Handle(ctx, text(userID, "5"))

	assert.Equal(t, []string{exam.UserNotice(exam.ErrNotAdmin)}, f.out.Texts(userID))
	assert.Empty(t, f.out.Texts(5))
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	f.bot.Handle(t.Context(), command(userID, "frobnicate", ""))
	assert.Equal(t, []string{unknownCommandText}, f.out.Texts(userID))
}

func TestRunDrainsUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	f.source.ch <- command(userID, "start", "")
	f.source.ch <- command(adminID, "users", "")
	close(f.source.ch)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the source closed")
	}

	assert.Len(t, f.out.Texts(userID), 2)
	_, ok := f.out.Last(adminID)
	assert.True(t, ok)
	assert.Equal(t, 2, f.metrics.handled["command"])
}
