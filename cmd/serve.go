package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abhisek/speakbot/internal/bot"
	"github.com/abhisek/speakbot/internal/evaluation"
	"github.com/abhisek/speakbot/internal/exam"
	"github.com/abhisek/speakbot/internal/llm"
	"github.com/abhisek/speakbot/internal/metrics"
	"github.com/abhisek/speakbot/internal/script"
	"github.com/abhisek/speakbot/internal/session"
	"github.com/abhisek/speakbot/internal/store"
	"github.com/abhisek/speakbot/internal/transcribe"
	"github.com/abhisek/speakbot/internal/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

// runServe opens the store, builds dependencies, and polls Telegram.
func runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	catalog, err := script.Load(cfg.Script)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, st.EventRepo(), logger)
	if err != nil {
		return fmt.Errorf("build LLM provider: %w", err)
	}
	stt, err := transcribe.New(cfg.Transcription)
	if err != nil {
		return fmt.Errorf("build transcriber: %w", err)
	}
	tg, err := transport.NewTelegram(ctx, cfg.Telegram, logger)
	if err != nil {
		return err
	}

	mm := metrics.NewManager(metrics.WithRuntimeCollectors())

	ctl, err := exam.New(cfg.Exam, exam.Deps{
		Catalog:     catalog,
		Registry:    session.NewRegistry(session.SystemClock()),
		Profiles:    st.ProfileRepo(),
		Events:      st.EventRepo(),
		Messenger:   tg,
		Transcriber: stt,
		Evaluator:   evaluation.NewService(provider, cfg.Evaluation),
		Metrics:     mm,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer ctl.Close()

	b := bot.New(tg, tg, ctl, mm, logger)

	logger.Info("starting bot",
		"bot", tg.BotName(),
		"db", dbPath,
		"tasks", len(catalog.Tasks()),
		"llm", cfg.LLM.Provider,
		"transcription", cfg.Transcription.Provider,
		"admin", cfg.Exam.AdminID != 0,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		// The metrics server has nothing to report once the bot is gone.
		defer cancel()
		return b.Run(gctx)
	})
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return mm.Serve(gctx, cfg.Metrics.Addr, logger)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
