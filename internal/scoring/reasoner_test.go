package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/models"
)

type fakeClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeClient) Name() string         { return "fake" }
func (f *fakeClient) SupportsVision() bool { return false }

func (f *fakeClient) CompleteText(_ context.Context, _ ai.TextRequest) (string, ai.Usage, error) {
	f.calls++
	return f.response, ai.Usage{InputTokens: 100, OutputTokens: 50}, f.err
}

func (f *fakeClient) CompleteVision(_ context.Context, _ ai.VisionRequest) (string, ai.Usage, error) {
	return "", ai.Usage{}, ai.ErrVisionUnsupported
}

func TestReasonerScorerParsesAndClamps(t *testing.T) {
	// Sub-scores above their caps must be clamped, never trusted.
	client := &fakeClient{response: `{
		"mission_alignment": 45,
		"population_fit": 18,
		"geographic_fit": 15,
		"funding_fit": 12,
		"eligibility": 10,
		"strategic_value": 99,
		"reasoning": "Strong overlap across programs.",
		"summary": "Excellent fit.",
		"tags": ["workforce", "ohio", "a", "b", "c", "dropped-sixth"],
		"effort_level": "LOW",
		"winning_strategies": ["lead with outcomes", "two", "three", "dropped-fourth"]
	}`}
	scorer := NewReasonerScorer(client, nil, nil)

	got, err := scorer.Score(context.Background(), workforceProfile(), strongRecord())
	if err != nil {
		t.Fatal(err)
	}
	if got.Mission != 30 {
		t.Errorf("Mission = %d, want clamped to 30", got.Mission)
	}
	if got.Strategic != 10 {
		t.Errorf("Strategic = %d, want clamped to 10", got.Strategic)
	}
	if got.Total != 30+18+15+12+10+10 {
		t.Errorf("Total = %d", got.Total)
	}
	if len(got.Tags) != 5 {
		t.Errorf("Tags = %v, want 5 entries", got.Tags)
	}
	if len(got.WinningStrategies) != 3 {
		t.Errorf("WinningStrategies = %v, want 3 entries", got.WinningStrategies)
	}
	if got.EffortLevel != "low" {
		t.Errorf("EffortLevel = %q", got.EffortLevel)
	}
	if got.Method != "reasoner" {
		t.Errorf("Method = %q", got.Method)
	}
}

func TestReasonerScorerFallsBackOnMalformedOutput(t *testing.T) {
	client := &fakeClient{response: "I am sorry, I cannot produce JSON today."}
	scorer := NewReasonerScorer(client, nil, nil)

	profile := workforceProfile()
	rec := strongRecord()

	got, err := scorer.Score(context.Background(), profile, rec)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := (&RuleScorer{Weighted: true}).Score(context.Background(), profile, rec)
	if got.Total != want.Total || got.Method != "rules" {
		t.Errorf("fallback mismatch: got total=%d method=%q, want total=%d method=rules",
			got.Total, got.Method, want.Total)
	}
}

func TestReasonerScorerFallsBackOnTransportError(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	costs := ai.NewCostTracker(ai.DefaultRates)
	scorer := NewReasonerScorer(client, costs, nil)

	got, err := scorer.Score(context.Background(), workforceProfile(), strongRecord())
	if err != nil {
		t.Fatal(err)
	}
	if got.Method != "rules" {
		t.Errorf("Method = %q, want rules fallback", got.Method)
	}
	if snap := costs.Snapshot(); snap.FailedCalls != 1 {
		t.Errorf("FailedCalls = %d, want the failed call ledgered", snap.FailedCalls)
	}
}

func TestPipelineScoreBatchIsolatesOutcomes(t *testing.T) {
	profile := workforceProfile()
	past := strongRecord()
	deadline := past.Deadline.AddDate(-1, 0, 0)
	past.Deadline = &deadline
	past.SourceID = "op-expired"

	gov := strongRecord()
	gov.SourceID = "op-gov"
	gov.FunderType = "Government"
	profileNoGov := profile
	profileNoGov.RejectsGovFunding = true

	pipeline := NewPipeline(&RuleScorer{Weighted: true}, nil)
	results := pipeline.ScoreBatch(context.Background(), profileNoGov,
		[]models.Record{strongRecord(), past, gov})

	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Filtered || results[0].Excluded || results[0].Breakdown.Total == 0 {
		t.Errorf("healthy record not scored: %+v", results[0])
	}
	if !results[1].Filtered {
		t.Errorf("expired record not filtered: %+v", results[1])
	}
	if !results[2].Excluded {
		t.Errorf("government record not excluded: %+v", results[2])
	}
}
