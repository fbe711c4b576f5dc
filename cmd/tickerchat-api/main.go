package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tickerchat/tickerchat/internal/agent"
	"github.com/tickerchat/tickerchat/internal/api"
	"github.com/tickerchat/tickerchat/internal/auth"
	"github.com/tickerchat/tickerchat/internal/config"
	"github.com/tickerchat/tickerchat/internal/export"
	"github.com/tickerchat/tickerchat/internal/history"
	"github.com/tickerchat/tickerchat/internal/llm"
	"github.com/tickerchat/tickerchat/internal/observability"
	"github.com/tickerchat/tickerchat/internal/store"
)

func main() {
	cfg, err := config.LoadFromEnv("tickerchat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	dataStore := store.New(cfg.Store.Path)
	if !dataStore.Exists() {
		logger.Warn("store file not present yet, waiting for data", slog.String("path", cfg.Store.Path))
	}

	var model llm.Client
	if cfg.AI.APIKey != "" {
		model, err = llm.NewOpenAIClient(llm.Config{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize model client", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("model api key not configured, chat is disabled")
	}

	var auditRepo *history.Repository
	if cfg.History.DSN != "" {
		auditDB, err := history.Open(context.Background(), cfg.History)
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = auditDB.Close() }()

		auditRepo = history.NewRepository(auditDB)
		if err := auditRepo.Bootstrap(context.Background()); err != nil {
			logger.Error("failed to bootstrap history schema", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var exportStore *export.Store
	if cfg.Export.Enabled {
		exportStore, err = export.NewStore(context.Background(), cfg.Export)
		if err != nil {
			logger.Error("failed to initialize export store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	chatAgent := &agent.Agent{
		Store:    dataStore,
		Model:    model,
		Logger:   logger,
		RowLimit: cfg.Store.RowLimit,
	}
	if auditRepo != nil {
		chatAgent.Recorder = auditRepo
	}

	deps := api.Dependencies{
		Logger:            logger,
		Store:             dataStore,
		Agent:             chatAgent,
		RowLimit:          cfg.Store.RowLimit,
		DependencyTimeout: time.Second,
		Readiness: api.CombineReadinessChecks(
			api.CheckStoreFile(dataStore),
			api.CheckModelConfigured(cfg),
		),
	}
	if auditRepo != nil {
		deps.Audit = auditRepo
	}
	if exportStore != nil {
		deps.Export = exportStore
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
