package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/snt-portal/snt-portal/internal/app"
	"github.com/snt-portal/snt-portal/internal/auth"
	jobmetrics "github.com/snt-portal/snt-portal/internal/jobs"
	"github.com/snt-portal/snt-portal/internal/notify"
	"github.com/snt-portal/snt-portal/internal/platform/cache"
	"github.com/snt-portal/snt-portal/internal/qa"
	"github.com/snt-portal/snt-portal/internal/shared"
	"github.com/snt-portal/snt-portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	directory := auth.NewDirectory()
	// The worker shares the session store with the web process, so the QA
	// engine can fall back to synthetic sessions when a login flow breaks.
	sessionManager := shared.NewSessionManager(redisClient, shared.SessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	qaEngine := qa.NewEngine(cfg.BaseURL, sessionManager, directory, auth.StaffPasswords{
		Admin:      cfg.StaffPassAdmin,
		Chairman:   cfg.StaffPassChairman,
		Secretary:  cfg.StaffPassSecretary,
		Accountant: cfg.StaffPassAccountant,
	}, logger)
	reportStore := qa.NewReportStore(redisClient)
	reportBuilder := qa.NewBuilder(qaEngine, reportStore, logger)

	notifyService := notify.NewService(notify.NewStore(redisClient), directory, logger)
	jobMetrics := jobmetrics.NewMetrics(nil)

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskTypeQAFullRun, Handler: jobs.NewQAFullRunHandler(reportBuilder, jobMetrics, logger)},
		{Type: jobs.TaskTypeOverdueNotify, Handler: jobs.NewOverdueNotifyHandler(notifyService, jobMetrics, logger)},
	}

	overdueTask := asynq.NewTask(jobs.TaskTypeOverdueNotify, nil)
	cron := []jobs.CronRegistration{
		// Monthly dues reminder; the notify dedupe makes reruns harmless.
		{Spec: "0 9 1 * *", Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}
	if cfg.QAEnabled() {
		// Empty payload: each nightly run persists under a fresh report id.
		nightlyRun := asynq.NewTask(jobs.TaskTypeQAFullRun, nil)
		cron = append(cron, jobs.CronRegistration{
			Spec: "45 3 * * *", Task: nightlyRun, Options: []asynq.Option{asynq.MaxRetry(1)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
