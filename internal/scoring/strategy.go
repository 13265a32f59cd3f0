// Package scoring produces 0-100 match scores with explanations. The
// pipeline is staged by cost: a deterministic pre-filter discards obvious
// mismatches for free, rule-based heuristics score the rest, and a reasoning
// model optionally deepens the score for records worth the spend.
package scoring

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/models"
)

// Scorer versions registered by default.
const (
	VersionKeyword  = "v0-keyword"
	VersionRules    = "v1-rules"
	VersionWeighted = "v2-weighted"
	VersionReasoner = "v3-reasoner"
)

// Scorer turns a (profile, record) pair into a breakdown. Implementations
// must never hard-fail on unreliable upstream responses; the error return is
// reserved for context cancellation.
type Scorer interface {
	Version() string
	Score(ctx context.Context, profile models.OrgProfile, rec models.Record) (models.ScoreBreakdown, error)
}

// Registry maps scoring versions to strategies so the active version is a
// config choice, not a code change.
type Registry struct {
	scorers  map[string]Scorer
	fallback Scorer
}

func NewRegistry(fallback Scorer) *Registry {
	return &Registry{
		scorers:  map[string]Scorer{fallback.Version(): fallback},
		fallback: fallback,
	}
}

func (r *Registry) Register(s Scorer) {
	r.scorers[s.Version()] = s
}

// DefaultRegistry registers every shipped strategy, so each binary resolves
// the same version set. reasoner may be nil; the reasoning strategy then
// scores through its rule-based fallback.
func DefaultRegistry(reasoner ai.Client, costs *ai.CostTracker, log *zap.Logger) *Registry {
	reg := NewRegistry(&RuleScorer{})
	reg.Register(&RuleScorer{Weighted: true})
	reg.Register(&KeywordScorer{})
	reg.Register(NewReasonerScorer(reasoner, costs, log))
	return reg
}

// Get returns the scorer for version, or the registry fallback when the
// version is unknown.
func (r *Registry) Get(version string) Scorer {
	if s, ok := r.scorers[version]; ok {
		return s
	}
	return r.fallback
}

// Versions lists registered versions, sorted.
func (r *Registry) Versions() []string {
	out := make([]string, 0, len(r.scorers))
	for v := range r.scorers {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
