package scoring

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/david/fundscout/internal/models"
)

func workforceProfile() models.OrgProfile {
	return models.OrgProfile{
		Name:               "TechBridge Works",
		FocusAreas:         []string{"workforce-development"},
		TargetPopulations:  []string{"unemployed adults"},
		ServiceRegions:     []string{"Ohio"},
		PreferredAmountMin: 50_000 * 100,
		PreferredAmountMax: 500_000 * 100,
		Capacity:           models.CapacityModerate,
		StaffSize:          12,
	}
}

func strongRecord() models.Record {
	deadline := time.Now().UTC().AddDate(0, 0, 45)
	return models.Record{
		SourceDomain:    "grants.example.org",
		SourceID:        "op-101",
		Title:           "Workforce Training Grants for Unemployed Adults",
		Description:     "Multi-year general operating support for job training and career skills programs in Ohio.",
		EligibilityText: "501(c)(3) nonprofit organizations.",
		FunderType:      "Foundation",
		GeographicFocus: "Ohio",
		AmountMax:       cents(200_000),
		Deadline:        &deadline,
	}
}

func TestRuleScorerBounds(t *testing.T) {
	scorers := []Scorer{
		&RuleScorer{},
		&RuleScorer{Weighted: true},
	}
	records := []models.Record{
		strongRecord(),
		{Title: "Opaque Opportunity"}, // nothing known
		{Title: "Agricultural Exports Prize", GeographicFocus: "Alaska", AmountMax: cents(5_000_000)},
	}
	profiles := []models.OrgProfile{workforceProfile(), {}}

	for _, s := range scorers {
		for _, profile := range profiles {
			for _, rec := range records {
				got, err := s.Score(context.Background(), profile, rec)
				if err != nil {
					t.Fatal(err)
				}
				if got.Total < 0 || got.Total > 100 {
					t.Errorf("%s: Total = %d out of [0,100]", s.Version(), got.Total)
				}
				for _, d := range models.Dimensions {
					if sub := got.Get(d); sub < 0 || sub > models.Caps[d] {
						t.Errorf("%s: %s = %d exceeds cap %d", s.Version(), d, sub, models.Caps[d])
					}
				}
			}
		}
	}
}

func TestRuleScorerStrongMatchScoresHigh(t *testing.T) {
	scorer := &RuleScorer{Weighted: true}
	got, err := scorer.Score(context.Background(), workforceProfile(), strongRecord())
	if err != nil {
		t.Fatal(err)
	}
	if got.Total < 70 {
		t.Errorf("strong match scored %d, want at least 70", got.Total)
	}
	if !strings.Contains(got.Reasoning, "mission keywords") {
		t.Errorf("reasoning does not reference the driving counts: %q", got.Reasoning)
	}
	if got.Method != "rules" {
		t.Errorf("Method = %q, want rules", got.Method)
	}
}

func TestRuleScorerNeutralOnMissingData(t *testing.T) {
	// Under-informative input must not be treated as negative evidence:
	// an empty profile against a bare record lands mid-range, not near zero.
	scorer := &RuleScorer{}
	got, err := scorer.Score(context.Background(), models.OrgProfile{}, models.Record{Title: "Some Grant"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Total < 40 || got.Total > 60 {
		t.Errorf("missing-data score = %d, want mid-range", got.Total)
	}
}

func TestRuleScorerDeterministic(t *testing.T) {
	scorer := &RuleScorer{Weighted: true}
	profile := workforceProfile()
	rec := strongRecord()

	first, err := scorer.Score(context.Background(), profile, rec)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		got, err := scorer.Score(context.Background(), profile, rec)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, got) {
			t.Fatalf("score changed between identical runs:\n%+v\n%+v", first, got)
		}
	}
}
