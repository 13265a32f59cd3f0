// Command rescore re-runs the pre-filter and scorer over stored records:
// after a scoring strategy change, a profile update, or to backfill scores
// for records harvested before a profile existed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/api"
	"github.com/david/fundscout/internal/config"
	"github.com/david/fundscout/internal/db"
	"github.com/david/fundscout/internal/logger"
	"github.com/david/fundscout/internal/scoring"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "score but do not persist")
	force := flag.Bool("force", false, "also re-score records that already have a stored score")
	since := flag.Int("since", 0, "only records updated within the last N days (0 = all)")
	version := flag.String("version", "", "scoring version override (default: configured current)")
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

	profile, err := store.ActiveProfile(ctx)
	if err == db.ErrNotFound {
		log.Fatal("no organization profile configured; save one before scoring")
	}
	if err != nil {
		log.Fatal(err)
	}

	textClient := ai.NewOllamaClient(cfg.Reasoning.OllamaHost,
		cfg.Reasoning.OllamaEmbedModel, cfg.Reasoning.OllamaGenModel)

	scorers := scoring.DefaultRegistry(textClient, ai.NewCostTracker(ai.DefaultRates), zl)

	active := cfg.Scoring.CurrentVersion
	if *version != "" {
		active = *version
	}
	pipeline := scoring.NewPipeline(scorers.Get(active), zl)
	pipeline.MaxParallel = cfg.Scoring.MaxParallel

	resp, err := api.Rescore(ctx, store, pipeline, profile, api.RescoreParams{
		SinceDays: *since,
		Force:     *force,
		DryRun:    *dryRun,
	}, zl)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Considered", "Filtered", "Scored", "Saved", "Errored", "Dry Run"})
	t.AppendRow(table.Row{resp.Considered, resp.Filtered, resp.Scored, resp.Saved, resp.Errored, resp.DryRun})
	t.Render()
	fmt.Printf("scoring version: %s, profile: %s\n", scorers.Get(active).Version(), profile.Name)
}
