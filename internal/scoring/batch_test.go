package scoring

import (
	"context"
	"testing"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/models"
)

func TestPipelineScoresWithoutProfileByKeywords(t *testing.T) {
	pipeline := NewPipeline(&RuleScorer{Weighted: true}, nil)
	rec := models.Record{
		SourceDomain: "portal.example.org",
		SourceID:     "g1",
		Title:        "Community Workforce Grant",
		Description:  "General operating support for nonprofit workforce programs.",
	}

	results := pipeline.ScoreBatch(context.Background(), models.OrgProfile{}, []models.Record{rec})
	if results[0].Err != nil || results[0].Filtered || results[0].Excluded {
		t.Fatalf("record should be scored: %+v", results[0])
	}
	if got := results[0].Breakdown.Method; got != "keyword" {
		t.Errorf("Method = %q, want keyword heuristics when no profile exists", got)
	}

	// An onboarded profile keeps the configured scorer.
	results = pipeline.ScoreBatch(context.Background(), workforceProfile(), []models.Record{strongRecord()})
	if got := results[0].Breakdown.Method; got != "rules" {
		t.Errorf("Method = %q, want the configured rules scorer", got)
	}
}

func TestPipelineWithCostsBillsTheRunTracker(t *testing.T) {
	client := &fakeClient{response: `{"mission_alignment": 20, "summary": "ok"}`}
	scorer := NewReasonerScorer(client, nil, nil)
	pipeline := NewPipeline(scorer, nil)

	tracker := ai.NewCostTracker(ai.DefaultRates)
	results := pipeline.WithCosts(tracker).ScoreBatch(
		context.Background(), workforceProfile(), []models.Record{strongRecord()})
	if results[0].Err != nil {
		t.Fatal(results[0].Err)
	}
	if got := tracker.Snapshot().TextCalls; got != 1 {
		t.Errorf("run tracker TextCalls = %d, want 1", got)
	}
	if got := scorer.Costs.Snapshot().TextCalls; got != 0 {
		t.Errorf("base scorer tracker TextCalls = %d, want 0", got)
	}
	if pipeline.Scorer != Scorer(scorer) {
		t.Error("WithCosts must not mutate the shared pipeline")
	}
}

func TestDefaultRegistryCarriesEveryStrategy(t *testing.T) {
	reg := DefaultRegistry(nil, nil, nil)

	for _, version := range []string{VersionKeyword, VersionRules, VersionWeighted, VersionReasoner} {
		if got := reg.Get(version).Version(); got != version {
			t.Errorf("Get(%q) resolved %q", version, got)
		}
	}
	if got := reg.Get("v9-unknown").Version(); got != VersionRules {
		t.Errorf("unknown version resolved %q, want the rules fallback", got)
	}
}
