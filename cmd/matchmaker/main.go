package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/Matchmaker/internal/api"
	"github.com/MikeSquared-Agency/Matchmaker/internal/config"
	"github.com/MikeSquared-Agency/Matchmaker/internal/currency"
	"github.com/MikeSquared-Agency/Matchmaker/internal/hermes"
	"github.com/MikeSquared-Agency/Matchmaker/internal/matchstore"
	"github.com/MikeSquared-Agency/Matchmaker/internal/pipeline"
	"github.com/MikeSquared-Agency/Matchmaker/internal/rescan"
	"github.com/MikeSquared-Agency/Matchmaker/internal/store"
)

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var db store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		db = pg
		logger.Info("connected to database")
	} else {
		db = store.NewMemoryStore()
		logger.Warn("no database configured, using in-memory store")
	}
	defer db.Close()

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Currency rates
	var rates currency.RateSource
	if cfg.Currency.URL != "" {
		rates = currency.NewHTTPClient(cfg.Currency.URL, cfg.Currency.Reference)
	} else {
		table, err := currency.ParseRates(cfg.Currency.Reference, cfg.Currency.Rates)
		if err != nil {
			logger.Error("invalid currency rates", "error", err)
			os.Exit(1)
		}
		rates = table
	}

	// Deal pipeline (optional)
	var deals pipeline.Client
	if cfg.Pipeline.URL != "" {
		deals = pipeline.NewHTTPClient(cfg.Pipeline.URL, cfg.Pipeline.Token)
	}

	ms := matchstore.New(db, hermesClient, deals, cfg.Matching.MinScore, logger)
	orch := rescan.New(db, ms, rates, hermesClient, rescan.Options{
		Workers:  cfg.Matching.Workers,
		Weights:  cfg.Matching.Weights,
		Interval: cfg.RescanInterval(),
	}, logger)
	orch.Start(ctx)
	defer orch.Stop()
	if err := orch.SetupSubscriptions(); err != nil {
		logger.Warn("failed to subscribe to rescan triggers", "error", err)
	}
	logger.Info("orchestrator started",
		"workers", cfg.Matching.Workers,
		"min_score", ms.MinScore(),
		"rescan_interval", cfg.RescanInterval(),
	)

	// API server
	router := api.NewRouter(orch, ms, cfg.Server.AdminToken, cfg.Server.RateLimit, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
