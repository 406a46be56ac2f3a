package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/snt-portal/snt-portal/internal/adminpanel"
	"github.com/snt-portal/snt-portal/internal/app"
	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/cabinet"
	"github.com/snt-portal/snt-portal/internal/guard"
	"github.com/snt-portal/snt-portal/internal/observability"
	"github.com/snt-portal/snt-portal/internal/office"
	"github.com/snt-portal/snt-portal/internal/platform/cache"
	"github.com/snt-portal/snt-portal/internal/platform/db"
	"github.com/snt-portal/snt-portal/internal/qa"
	"github.com/snt-portal/snt-portal/internal/shared"
	"github.com/snt-portal/snt-portal/internal/view"
	"github.com/snt-portal/snt-portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, shared.SessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	directory := auth.NewDirectory()
	registry := auth.NewPGSessionRegistry(dbpool)
	auditLogger := shared.NewAuditLogger(dbpool)

	authService, err := auth.NewService(directory, registry, auditLogger, logger, auth.StaffPasswords{
		Admin:      cfg.StaffPassAdmin,
		Chairman:   cfg.StaffPassChairman,
		Secretary:  cfg.StaffPassSecretary,
		Accountant: cfg.StaffPassAccountant,
	})
	if err != nil {
		logger.Error("init auth service", slog.Any("error", err))
		os.Exit(1)
	}
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	resolver := auth.NewResolver(directory, cfg.QAEnabled)
	routeGuard := guard.New(resolver, logger)

	metrics := observability.NewMetrics()
	routeGuard.SetDeniedHook(metrics.RecordDenied)

	cabinetHandler := cabinet.NewHandler(logger, templates, resolver, csrfManager)
	officeHandler := office.NewHandler(logger, templates, resolver, csrfManager)
	adminHandler := adminpanel.NewHandler(logger, templates, resolver, csrfManager)

	qaEngine := qa.NewEngine(cfg.BaseURL, sessionManager, directory, auth.StaffPasswords{
		Admin:      cfg.StaffPassAdmin,
		Chairman:   cfg.StaffPassChairman,
		Secretary:  cfg.StaffPassSecretary,
		Accountant: cfg.StaffPassAccountant,
	}, logger)
	reportStore := qa.NewReportStore(redisClient)
	reportBuilder := qa.NewBuilder(qaEngine, reportStore, logger)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	enqueueFullRun := func(reportID string) error {
		_, err := jobsClient.EnqueueQAFullRun(context.Background(), reportID)
		return err
	}
	qaHandler := qa.NewHandler(logger, routeGuard, qaEngine, reportBuilder, reportStore, enqueueFullRun, cfg.QAEnabled, cfg.QASecret)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Resolver:       resolver,
		Guard:          routeGuard,
		AuthHandler:    authHandler,
		CabinetHandler: cabinetHandler,
		OfficeHandler:  officeHandler,
		AdminHandler:   adminHandler,
		QAHandler:      qaHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
