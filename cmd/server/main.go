package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/api"
	"github.com/david/fundscout/internal/browser"
	"github.com/david/fundscout/internal/config"
	"github.com/david/fundscout/internal/db"
	"github.com/david/fundscout/internal/discover"
	"github.com/david/fundscout/internal/feedback"
	"github.com/david/fundscout/internal/logger"
	"github.com/david/fundscout/internal/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zl, err := logger.New(cfg.Logging.JSON, cfg.Logging.Debug)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		zl.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, zl); err != nil {
		zl.Fatal("applying migrations", zap.Error(err))
	}

	store := db.NewStore(pool)

	// Scoring reasoner is text-only and cheap; vision goes to Gemini when a
	// key is configured, otherwise the agents run text extraction only.
	textClient := ai.NewOllamaClient(cfg.Reasoning.OllamaHost,
		cfg.Reasoning.OllamaEmbedModel, cfg.Reasoning.OllamaGenModel)

	var visionClient ai.Client = textClient
	if cfg.Reasoning.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(ctx, cfg.Reasoning.GeminiAPIKey, cfg.Reasoning.GeminiModel)
		if err != nil {
			zl.Fatal("building gemini client", zap.Error(err))
		}
		defer gemini.Close()
		visionClient = gemini
	} else {
		zl.Warn("no gemini api key configured, vision extraction disabled")
	}

	registry, err := discover.LoadRegistry("internal/discover/config/sources.yaml")
	if err != nil {
		zl.Fatal("loading source registry", zap.Error(err))
	}

	scorers := scoring.DefaultRegistry(textClient, ai.NewCostTracker(ai.DefaultRates), zl)

	pipeline := scoring.NewPipeline(scorers.Get(cfg.Scoring.CurrentVersion), zl)
	pipeline.MaxParallel = cfg.Scoring.MaxParallel

	newSession := func() browser.Session {
		return browser.NewChromeSession(cfg.Browser.Headless,
			time.Duration(cfg.Browser.NavTimeoutSec)*time.Second)
	}

	runner := discover.NewRunner(registry, newSession, visionClient, pipeline, store, zl)
	runner.Embedder = textClient
	runner.Opts = discover.Options{
		DaysBack:             cfg.Discovery.DaysBack,
		MaxRecordsPerSource:  cfg.Discovery.MaxRecordsPerSource,
		MaxConcurrentSources: cfg.Discovery.MaxConcurrentSources,
		SourceTimeout:        time.Duration(cfg.Browser.RunTimeoutSec) * time.Second,
	}

	loop := feedback.NewLoop(store, zl)

	srv := api.NewServer(store, runner, loop, api.Config{
		AdminSecret: cfg.Server.AdminSecret,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, zl)

	go func() {
		zl.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.Start(":" + cfg.Server.Port); err != nil {
			zl.Info("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}
