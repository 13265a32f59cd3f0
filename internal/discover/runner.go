package discover

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/browser"
	"github.com/david/fundscout/internal/feedback"
	"github.com/david/fundscout/internal/match"
	"github.com/david/fundscout/internal/models"
	"github.com/david/fundscout/internal/scoring"
)

// Store is the persistence contract the runner writes through.
type Store interface {
	UpsertRecord(ctx context.Context, rec models.Record) (uuid.UUID, error)
	UpsertScore(ctx context.Context, recordID, profileID uuid.UUID, breakdown models.ScoreBreakdown) error
	ListFeedback(ctx context.Context) ([]models.FeedbackEvent, error)
}

// Embedder produces dense vectors for record relevance ranking.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Options bound a run.
type Options struct {
	DaysBack             int
	MaxRecordsPerSource  int
	MaxConcurrentSources int
	SourceTimeout        time.Duration
}

func (o *Options) defaults() {
	if o.DaysBack <= 0 {
		o.DaysBack = 30
	}
	if o.MaxRecordsPerSource <= 0 {
		o.MaxRecordsPerSource = 50
	}
	if o.MaxConcurrentSources <= 0 {
		o.MaxConcurrentSources = 3
	}
	if o.SourceTimeout <= 0 {
		o.SourceTimeout = 15 * time.Minute
	}
}

// Runner drives discovery across sources and pushes the results through the
// scoring pipeline into the store. Sources run concurrently up to a bound;
// within a source, the agent is strictly sequential. Each agent gets its own
// browser session from the factory, never a shared one.
type Runner struct {
	Registry   *Registry
	NewSession func() browser.Session
	Reasoner   ai.Client
	Rates      ai.Rates
	GrantsGov  *GrantsGovClient
	Pipeline   *scoring.Pipeline
	Store      Store
	Embedder   Embedder // optional
	Log        *zap.Logger
	Opts       Options
}

func NewRunner(reg *Registry, newSession func() browser.Session, reasoner ai.Client, pipeline *scoring.Pipeline, store Store, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		Registry:   reg,
		NewSession: newSession,
		Reasoner:   reasoner,
		Rates:      ai.DefaultRates,
		GrantsGov:  NewGrantsGovClient(log),
		Pipeline:   pipeline,
		Store:      store,
		Log:        log,
	}
}

// RunAll executes every active source with bounded concurrency. A stuck or
// failing source never stalls the others; its summary reports the failure.
func (r *Runner) RunAll(ctx context.Context, profile models.OrgProfile) []RunSummary {
	opts := r.Opts
	opts.defaults()

	var active []SourceConfig
	for _, src := range r.Registry.Sources {
		if src.Active {
			active = append(active, src)
		}
	}

	summaries := make([]RunSummary, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxConcurrentSources)

	for i, src := range active {
		g.Go(func() error {
			summaries[i] = r.RunSource(gctx, src, profile)
			return nil
		})
	}
	_ = g.Wait()
	return summaries
}

// RunSource executes one source end to end and always returns a structured
// summary, never a bare error.
func (r *Runner) RunSource(ctx context.Context, src SourceConfig, profile models.OrgProfile) (summary RunSummary) {
	opts := r.Opts
	opts.defaults()

	summary = RunSummary{
		Source:    src.ID,
		State:     StateIdle,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		summary.CompletedAt = time.Now().UTC()
	}()

	ctx, cancel := context.WithTimeout(ctx, opts.SourceTimeout)
	defer cancel()

	log := r.Log.With(zap.String("source", src.ID))
	costs := ai.NewCostTracker(r.Rates)

	keywords := match.AllKeywords(profile)
	if len(keywords) == 0 {
		keywords = src.Keywords
	}
	if len(keywords) == 0 {
		keywords = scoring.DefaultKeywords
	}

	records, failedPasses, state, err := r.collect(ctx, src, keywords, costs, opts)
	summary.FailedPasses = failedPasses
	summary.State = state
	if err != nil {
		log.Error("source run failed", zap.Error(err))
		summary.Cost = costs.Snapshot()
		return summary
	}
	summary.Found = len(records)

	r.enrichDeadlines(ctx, records, log)

	confidence := r.scoringConfidence(ctx)

	results := r.Pipeline.WithCosts(costs).ScoreBatch(ctx, profile, records)
	for _, res := range results {
		switch {
		case res.Filtered, res.Excluded:
			summary.Filtered++
			log.Debug("record filtered",
				zap.String("record", res.Record.DedupKey()),
				zap.String("reason", res.Reason))
			continue
		case res.Err != nil:
			summary.Errored++
			continue
		}
		summary.Scored++

		if r.Embedder != nil && len(res.Record.Embedding) == 0 {
			if vec, err := r.Embedder.GenerateEmbedding(ctx, res.Record.Title+"\n"+res.Record.Description); err == nil {
				res.Record.Embedding = vec
			} else {
				log.Debug("embedding generation failed",
					zap.String("record", res.Record.DedupKey()), zap.Error(err))
			}
		}

		recordID, err := r.Store.UpsertRecord(ctx, res.Record)
		if err != nil {
			// One failed write must not abort the rest of the batch.
			log.Error("persisting record failed",
				zap.String("record", res.Record.DedupKey()), zap.Error(err))
			summary.Errored++
			continue
		}
		breakdown := res.Breakdown
		if breakdown.Method != "keyword" {
			breakdown.Confidence = confidence
		}
		if err := r.Store.UpsertScore(ctx, recordID, profile.ID, breakdown); err != nil {
			log.Error("persisting score failed",
				zap.String("record", res.Record.DedupKey()), zap.Error(err))
			summary.Errored++
			continue
		}
		summary.Saved++
	}

	summary.Cost = costs.Snapshot()
	log.Info("source run complete",
		zap.Int("found", summary.Found),
		zap.Int("filtered", summary.Filtered),
		zap.Int("scored", summary.Scored),
		zap.Int("saved", summary.Saved),
		zap.Int("errored", summary.Errored),
		zap.Float64("estimated_usd", summary.Cost.EstimatedUSD))
	return summary
}

// collect harvests raw records using the source's strategy. API-first
// sources fall back to the browser agent when the API misbehaves and a seed
// URL exists.
func (r *Runner) collect(ctx context.Context, src SourceConfig, keywords []string, costs *ai.CostTracker, opts Options) ([]models.Record, []string, State, error) {
	if src.Strategy == StrategyGrantsGovAPI {
		records, err := r.searchGrantsGov(ctx, keywords, opts)
		if err == nil {
			return records, nil, StateCompleted, nil
		}
		r.Log.Warn("grants.gov API failed",
			zap.String("source", src.ID), zap.Error(err))
		if src.SeedURL == "" {
			return nil, nil, StateFatalError, err
		}
	}

	agent := NewAgent(src, Deps{
		Session:  r.NewSession(),
		Reasoner: r.Reasoner,
		Costs:    costs,
		Log:      r.Log,
	})
	records, failedPasses, err := agent.Discover(ctx, keywords, opts.DaysBack, opts.MaxRecordsPerSource)
	if err != nil {
		return records, failedPasses, agent.State(), err
	}
	return records, failedPasses, agent.State(), nil
}

func (r *Runner) searchGrantsGov(ctx context.Context, keywords []string, opts Options) ([]models.Record, error) {
	seen := map[string]bool{}
	var records []models.Record
	for _, keyword := range keywords {
		batch, err := r.GrantsGov.Search(ctx, keyword, opts.DaysBack, opts.MaxRecordsPerSource)
		if err != nil {
			return nil, err
		}
		for _, rec := range batch {
			if seen[rec.SourceID] {
				continue
			}
			seen[rec.SourceID] = true
			records = append(records, rec)
			if len(records) >= opts.MaxRecordsPerSource {
				return records, nil
			}
		}
	}
	return records, nil
}

// enrichDeadlines backfills missing deadlines from linked guideline PDFs.
// Best effort: a fetch or parse failure leaves the record as extracted.
func (r *Runner) enrichDeadlines(ctx context.Context, records []models.Record, log *zap.Logger) {
	var client *http.Client
	if r.GrantsGov != nil {
		client = r.GrantsGov.HTTPClient
	}
	for i := range records {
		rec := &records[i]
		if rec.Deadline != nil || !strings.HasSuffix(strings.ToLower(rec.ApplicationURL), ".pdf") {
			continue
		}
		deadline, found, err := EnrichDeadlineFromPDF(ctx, client, rec.ApplicationURL)
		if err != nil {
			log.Debug("pdf deadline enrichment failed",
				zap.String("record", rec.DedupKey()), zap.Error(err))
			continue
		}
		if found {
			rec.Deadline = &deadline
		}
	}
}

// scoringConfidence calibrates stored scores against the feedback log:
// with enough classified events, confidence is the measured precision.
func (r *Runner) scoringConfidence(ctx context.Context) float64 {
	events, err := r.Store.ListFeedback(ctx)
	if err != nil {
		r.Log.Debug("feedback unavailable for confidence", zap.Error(err))
		return 0
	}
	acc := feedback.ComputeAccuracy(events)
	if acc.InsufficientData {
		return 0
	}
	return acc.Precision
}
