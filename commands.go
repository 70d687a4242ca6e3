package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"risk-number-quiz/internal/config"
	"risk-number-quiz/internal/console"
	"risk-number-quiz/internal/flow"
	"risk-number-quiz/internal/logging"
	"risk-number-quiz/internal/metrics"
	"risk-number-quiz/internal/render"
	"risk-number-quiz/internal/scoring"
	"risk-number-quiz/internal/storage"
	"risk-number-quiz/internal/storage/sqlite"
	"risk-number-quiz/internal/submit"
	"risk-number-quiz/internal/telegram"
	"risk-number-quiz/internal/telemetry"
	"risk-number-quiz/internal/tui"
)

const (
	serviceName     = "risk-number-quiz"
	cleanupInterval = time.Hour
	shutdownTimeout = 5 * time.Second
)

// app собранные зависимости одной команды
type app struct {
	cfg           *config.AppConfig
	questionnaire *config.Questionnaire
	store         storage.Store
	logger        *zap.Logger
	metrics       *metrics.Metrics
	sequencer     *submit.Sequencer
	shutdown      func(context.Context) error
}

// setup читает конфигурацию и поднимает хранилище, логгер и трассировку.
// quiet отключает логи в stderr, когда терминал занят интерфейсом.
func setup(ctx context.Context, quiet bool) (*app, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadAppConfig()
	if err != nil {
		return nil, err
	}
	if questionnaireFile != "" {
		cfg.Questionnaire = questionnaireFile
	}

	q, err := config.Load(cfg.Questionnaire)
	if err != nil {
		return nil, fmt.Errorf("load questionnaire: %w", err)
	}

	logger := zap.NewNop()
	if !quiet || cfg.Log.File != "" {
		if logger, err = logging.New(cfg.Log); err != nil {
			return nil, err
		}
	}

	store, err := openStore(cfg.Store)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, serviceName)
	if err != nil {
		// Без трассировки анкета продолжает работать
		logger.Warn("telemetry disabled", zap.Error(err))
		shutdown = func(context.Context) error { return nil }
	}

	m := metrics.NewMetrics()
	a := &app{
		cfg:           cfg,
		questionnaire: q,
		store:         store,
		logger:        logger,
		metrics:       m,
		shutdown:      shutdown,
	}
	a.sequencer = submit.New(store,
		submit.WithLogger(logger.Named("submit")),
		submit.WithMetrics(m),
	)

	logger.Info("quiz configured",
		zap.String("questionnaire", q.Title),
		zap.Int("questions", q.GetTotalQuestions()),
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("store_path", cfg.Store.Path),
	)
	return a, nil
}

func openStore(cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.StoreDriverFile:
		return storage.OpenFileStore(cfg.Path)
	default:
		return sqlite.Open(cfg.Path)
	}
}

func (a *app) close() {
	snap := a.metrics.GetSnapshot()
	a.logger.Info("session totals",
		zap.Int64("quizzes_started", snap.QuizzesStarted),
		zap.Int64("profiles_submitted", snap.ProfilesSubmitted),
		zap.Int64("assessments_completed", snap.AssessmentsCompleted),
		zap.Int64("contacts_captured", snap.ContactsCaptured),
		zap.Int64("writes_total", snap.WritesTotal),
		zap.Int64("writes_failed", snap.WritesFailed()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *app) newMachine() *flow.Machine {
	a.metrics.IncrementQuizzesStarted()
	return flow.New(a.questionnaire, a.sequencer)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	return tui.Run(ctx, a.newMachine(), a.cfg.Store.WriteTimeout)
}

func runConsole(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	runner := console.New(a.newMachine(), cmd.InOrStdin(), cmd.OutOrStdout(), a.cfg.Store.WriteTimeout)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runTelegram(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.ValidateTelegram(); err != nil {
		return err
	}

	bot := telegram.New(a.cfg.Telegram.Token, a.cfg.Telegram.APIURL, a.logger.Named("telegram"))
	handler := telegram.NewHandler(bot, telegram.HandlerConfig{
		Questionnaire: a.questionnaire,
		Submitter:     a.sequencer,
		Store:         a.store,
		Metrics:       a.metrics,
		Logger:        a.logger.Named("handler"),
		WriteTimeout:  a.cfg.Store.WriteTimeout,
		RateLimit:     a.cfg.Telegram.RateLimit,
		SessionTTL:    a.cfg.Telegram.SessionTTL,
	})

	a.logger.Info("telegram bot started", zap.Int("rate_limit", a.cfg.Telegram.RateLimit))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.StartPolling(gctx, handler.HandleUpdate)
	})
	g.Go(func() error {
		return handler.RunSessionCleanup(gctx, cleanupInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("telegram bot stopped")
	return nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	lookupCtx, cancel := context.WithTimeout(ctx, a.cfg.Store.WriteTimeout)
	defer cancel()

	profileID := args[0]
	record, err := storage.FindAssessment(lookupCtx, a.store, profileID)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", profileID, err)
	}
	if record == nil {
		return fmt.Errorf("no completed assessment for profile %s", profileID)
	}

	assessment, err := scoring.New(a.questionnaire).Calculate(record.Answers)
	if err != nil {
		return fmt.Errorf("score stored answers: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Profile %s\n\n", profileID)
	fmt.Fprintln(out, render.Default().Assessment(assessment))
	return nil
}

func runQuestions(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	path := questionnaireFile
	if path == "" {
		path = os.Getenv("QUIZ_QUESTIONNAIRE")
	}
	q, err := config.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), render.Default().Questionnaire(q))
	return nil
}
