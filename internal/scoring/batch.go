package scoring

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/match"
	"github.com/david/fundscout/internal/models"
)

// Result is one record's outcome through the pipeline. Exactly one of
// Filtered, Excluded, or Breakdown-is-set holds; Err marks a record that
// could not be scored at all (context cancellation only).
type Result struct {
	Record    models.Record
	Filtered  bool
	Excluded  bool
	Reason    string
	Breakdown models.ScoreBreakdown
	Err       error
}

// Pipeline binds the stages together for batch use.
type Pipeline struct {
	Scorer      Scorer
	Fallback    Scorer // scores records when no organization profile exists
	Blocklist   []string
	MaxParallel int
	Log         *zap.Logger
}

func NewPipeline(scorer Scorer, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		Scorer:      scorer,
		Fallback:    &KeywordScorer{},
		Blocklist:   DefaultBlocklist,
		MaxParallel: 4,
		Log:         log,
	}
}

// costBillable is implemented by scorers whose reasoning-model calls should
// bill into a caller-owned tracker.
type costBillable interface {
	WithCosts(*ai.CostTracker) Scorer
}

// WithCosts returns a pipeline whose scorer bills model spend into t, so a
// discovery run's summary carries its own scoring cost. Pipelines with
// cost-free scorers come back unchanged.
func (p *Pipeline) WithCosts(t *ai.CostTracker) *Pipeline {
	b, ok := p.Scorer.(costBillable)
	if !ok || t == nil {
		return p
	}
	cp := *p
	cp.Scorer = b.WithCosts(t)
	return &cp
}

// ScoreBatch scores records for one organization with bounded parallelism.
// Scoring is read-only over the profile, so record-level parallelism is safe;
// the bound keeps concurrent reasoning-model calls (and spend) in check.
// A failed record never aborts the batch: results arrive in input order with
// per-record outcomes.
func (p *Pipeline) ScoreBatch(ctx context.Context, profile models.OrgProfile, records []models.Record) []Result {
	results := make([]Result, len(records))
	now := time.Now().UTC()

	limit := p.MaxParallel
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, rec := range records {
		g.Go(func() error {
			results[i] = p.scoreOne(gctx, profile, rec, now)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) scoreOne(ctx context.Context, profile models.OrgProfile, rec models.Record, now time.Time) Result {
	res := Result{Record: rec}

	if excluded, reason := match.ShouldExclude(profile, rec); excluded {
		res.Excluded = true
		res.Reason = reason
		return res
	}
	if verdict := PreFilter(profile, rec, p.Blocklist, now); !verdict.Pass {
		res.Filtered = true
		res.Reason = verdict.Reason
		return res
	}

	scorer := p.Scorer
	if p.Fallback != nil && profile.IsZero() {
		// No organization to match against: keyword heuristics, not
		// neutral mid-range rule scores.
		scorer = p.Fallback
	}

	breakdown, err := scorer.Score(ctx, profile, rec)
	if err != nil {
		p.Log.Warn("record could not be scored",
			zap.String("record", rec.DedupKey()), zap.Error(err))
		res.Err = err
		return res
	}
	res.Breakdown = breakdown
	return res
}
