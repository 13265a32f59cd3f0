package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/david/fundscout/internal/models"
)

func cents(dollars int64) *int64 {
	v := dollars * 100
	return &v
}

func TestKeywordScorerAccumulates(t *testing.T) {
	// amount_max 250k, deadline 20 days out, two keyword hits, no feedback
	// history: base(10) + 2*8 + band(8) + deadline(5) = 39, confidence 0.
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	deadline := now.AddDate(0, 0, 20)

	scorer := &KeywordScorer{
		Keywords: []string{"workforce", "training", "maritime"},
		Now:      func() time.Time { return now },
	}
	rec := models.Record{
		Title:     "Workforce Training Accelerator",
		AmountMax: cents(250_000),
		Deadline:  &deadline,
	}

	got, err := scorer.Score(context.Background(), models.OrgProfile{}, rec)
	if err != nil {
		t.Fatal(err)
	}
	if got.Total < 39 {
		t.Errorf("Total = %d, want at least 39", got.Total)
	}
	if got.Confidence != 0.0 {
		t.Errorf("Confidence = %f, want 0.0 with no feedback history", got.Confidence)
	}
	if got.Method != "keyword" {
		t.Errorf("Method = %q, want keyword", got.Method)
	}
}

func TestKeywordScorerFloor(t *testing.T) {
	scorer := &KeywordScorer{Keywords: []string{"nothing-matches"}}
	rec := models.Record{
		Title:        "Unrelated Prize",
		SourceDomain: "contests.example.com",
	}
	got, err := scorer.Score(context.Background(), models.OrgProfile{}, rec)
	if err != nil {
		t.Fatal(err)
	}
	// base 10 + band 4 - penalty 10 = 4, floored to 5.
	if got.Total != 5 {
		t.Errorf("Total = %d, want floor of 5", got.Total)
	}
}

func TestFundingBand(t *testing.T) {
	tests := []struct {
		name   string
		amount *int64
		want   int
	}{
		{"unknown", nil, 4},
		{"tiny", cents(5_000), 2},
		{"small", cents(60_000), 6},
		{"sweet spot", cents(250_000), 8},
		{"oversize", cents(2_000_000), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fundingBand(tt.amount); got != tt.want {
				t.Errorf("fundingBand() = %d, want %d", got, tt.want)
			}
		})
	}
}
