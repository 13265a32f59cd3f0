// Command discover runs discovery from the terminal, outside the server's
// job queue. Useful for cron and for trying a new source configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/browser"
	"github.com/david/fundscout/internal/config"
	"github.com/david/fundscout/internal/db"
	"github.com/david/fundscout/internal/discover"
	"github.com/david/fundscout/internal/logger"
	"github.com/david/fundscout/internal/models"
	"github.com/david/fundscout/internal/scoring"
)

func main() {
	sourceID := flag.String("source", "", "run a single source id (default: all active)")
	daysBack := flag.Int("days-back", 0, "override the discovery window in days")
	maxRecords := flag.Int("max-records", 0, "override max records per source")
	flag.Parse()

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
		log.Fatal(err)
	}
	defer pool.Close()
	store := db.NewStore(pool)

	textClient := ai.NewOllamaClient(cfg.Reasoning.OllamaHost,
		cfg.Reasoning.OllamaEmbedModel, cfg.Reasoning.OllamaGenModel)
	var reasoner ai.Client = textClient
	if cfg.Reasoning.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(ctx, cfg.Reasoning.GeminiAPIKey, cfg.Reasoning.GeminiModel)
		if err != nil {
			log.Fatal(err)
		}
		defer gemini.Close()
		reasoner = gemini
	}

	registry, err := discover.LoadRegistry("internal/discover/config/sources.yaml")
	if err != nil {
		log.Fatal(err)
	}

	scorers := scoring.DefaultRegistry(textClient, ai.NewCostTracker(ai.DefaultRates), zl)
	pipeline := scoring.NewPipeline(scorers.Get(cfg.Scoring.CurrentVersion), zl)
	pipeline.MaxParallel = cfg.Scoring.MaxParallel

	runner := discover.NewRunner(registry, func() browser.Session {
		return browser.NewChromeSession(cfg.Browser.Headless,
			time.Duration(cfg.Browser.NavTimeoutSec)*time.Second)
	}, reasoner, pipeline, store, zl)
	runner.Embedder = textClient
	runner.Opts = discover.Options{
		DaysBack:             pick(*daysBack, cfg.Discovery.DaysBack),
		MaxRecordsPerSource:  pick(*maxRecords, cfg.Discovery.MaxRecordsPerSource),
		MaxConcurrentSources: cfg.Discovery.MaxConcurrentSources,
		SourceTimeout:        time.Duration(cfg.Browser.RunTimeoutSec) * time.Second,
	}

	profile, err := store.ActiveProfile(ctx)
	if err != nil && err != db.ErrNotFound {
		log.Fatal(err)
	}

	var summaries []discover.RunSummary
	if *sourceID != "" {
		src := registry.Get(*sourceID)
		if src == nil {
			log.Fatalf("unknown source %q", *sourceID)
		}
		summaries = []discover.RunSummary{runner.RunSource(ctx, *src, profile)}
	} else {
		summaries = runner.RunAll(ctx, profile)
	}

	render(summaries, profile)
}

func render(summaries []discover.RunSummary, profile models.OrgProfile) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "State", "Found", "Filtered", "Scored", "Saved", "Errored", "Cost USD", "Duration"})
	for _, s := range summaries {
		t.AppendRow(table.Row{
			s.Source, string(s.State), s.Found, s.Filtered, s.Scored, s.Saved, s.Errored,
			fmt.Sprintf("%.4f", s.Cost.EstimatedUSD),
			s.CompletedAt.Sub(s.StartedAt).Round(time.Second).String(),
		})
	}
	t.Render()
	if profile.Name != "" {
		fmt.Printf("scored against profile: %s\n", profile.Name)
	} else {
		fmt.Println("no organization profile found; keyword defaults were used")
	}
}

func pick(override, fallback int) int {
	if override > 0 {
		return override
	}
	return fallback
}
