package scoring

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/models"
)

const reasonerSystemPrompt = `You are an expert grant advisor evaluating how well a funding opportunity fits a nonprofit organization. Respond ONLY with a JSON object in exactly this shape:
{
  "mission_alignment": 0-30,
  "population_fit": 0-20,
  "geographic_fit": 0-15,
  "funding_fit": 0-15,
  "eligibility": 0-10,
  "strategic_value": 0-10,
  "reasoning": "one paragraph explaining the sub-scores",
  "summary": "one sentence for a dashboard card",
  "tags": ["up to 5 short tags"],
  "effort_level": "low|medium|high",
  "winning_strategies": ["up to 3 concrete tips for this application"]
}
Never exceed a sub-score's ceiling. If a field is unknowable from the input, score it moderately rather than at zero.`

type reasonerAnswer struct {
	Mission           int      `json:"mission_alignment"`
	Population        int      `json:"population_fit"`
	Geography         int      `json:"geographic_fit"`
	Funding           int      `json:"funding_fit"`
	Eligibility       int      `json:"eligibility"`
	Strategic         int      `json:"strategic_value"`
	Reasoning         string   `json:"reasoning"`
	Summary           string   `json:"summary"`
	Tags              []string `json:"tags"`
	EffortLevel       string   `json:"effort_level"`
	WinningStrategies []string `json:"winning_strategies"`
}

// ReasonerScorer sends the profile and record to a reasoning model with a
// required JSON schema. Every returned sub-score is clamped to its cap, and
// malformed output falls back to the rule-based scorer instead of erroring
// the caller.
type ReasonerScorer struct {
	Client   ai.Client
	Costs    *ai.CostTracker
	Fallback Scorer
	Log      *zap.Logger
}

func NewReasonerScorer(client ai.Client, costs *ai.CostTracker, log *zap.Logger) *ReasonerScorer {
	if log == nil {
		log = zap.NewNop()
	}
	if costs == nil {
		costs = ai.NewCostTracker(ai.Rates{})
	}
	return &ReasonerScorer{
		Client:   client,
		Costs:    costs,
		Fallback: &RuleScorer{Weighted: true},
		Log:      log,
	}
}

func (s *ReasonerScorer) Version() string { return VersionReasoner }

// WithCosts returns a copy of the scorer billing into t.
func (s *ReasonerScorer) WithCosts(t *ai.CostTracker) Scorer {
	cp := *s
	cp.Costs = t
	return &cp
}

func (s *ReasonerScorer) Score(ctx context.Context, profile models.OrgProfile, rec models.Record) (models.ScoreBreakdown, error) {
	if s.Client == nil {
		return s.Fallback.Score(ctx, profile, rec)
	}

	raw, usage, err := s.Client.CompleteText(ctx, ai.TextRequest{
		System:   reasonerSystemPrompt,
		Prompt:   buildScoringPrompt(profile, rec),
		JSONMode: true,
	})
	s.Costs.Add(ai.RequestText, usage, err != nil)
	if err != nil {
		if ctx.Err() != nil {
			return models.ScoreBreakdown{}, ctx.Err()
		}
		s.Log.Warn("reasoner scoring failed, using rule-based fallback",
			zap.String("record", rec.DedupKey()), zap.Error(err))
		return s.Fallback.Score(ctx, profile, rec)
	}

	answer, err := ai.Decode[reasonerAnswer](raw)
	if err != nil {
		s.Log.Warn("reasoner returned unparsable score, using rule-based fallback",
			zap.String("record", rec.DedupKey()), zap.Error(err))
		return s.Fallback.Score(ctx, profile, rec)
	}

	breakdown := models.ScoreBreakdown{
		Mission:           answer.Mission,
		Population:        answer.Population,
		Geography:         answer.Geography,
		Funding:           answer.Funding,
		Eligibility:       answer.Eligibility,
		Strategic:         answer.Strategic,
		Reasoning:         strings.TrimSpace(answer.Reasoning),
		Summary:           strings.TrimSpace(answer.Summary),
		Tags:              truncate(answer.Tags, 5),
		EffortLevel:       normalizeEffort(answer.EffortLevel),
		WinningStrategies: truncate(answer.WinningStrategies, 3),
		Method:            "reasoner",
		Version:           VersionReasoner,
	}
	breakdown.Clamp()
	return breakdown, nil
}

func buildScoringPrompt(profile models.OrgProfile, rec models.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ORGANIZATION: %s\nMission: %s\nFocus areas: %s\nPrograms: %s\nTarget populations: %s\nService regions: %s\nStaff size: %d, capacity tier: %s\n",
		profile.Name, profile.MissionText,
		strings.Join(profile.FocusAreas, ", "),
		strings.Join(profile.Programs, ", "),
		strings.Join(profile.TargetPopulations, ", "),
		strings.Join(profile.ServiceRegions, ", "),
		profile.StaffSize, profile.Capacity)
	if profile.PreferredAmountMax > 0 {
		fmt.Fprintf(&b, "Preferred grant size: %d to %d (smallest currency unit)\n",
			profile.PreferredAmountMin, profile.PreferredAmountMax)
	}

	fmt.Fprintf(&b, "\nOPPORTUNITY: %s\nFunder: %s (%s)\nDescription: %s\nEligibility: %s\nGeographic focus: %s\n",
		rec.Title, rec.Funder, rec.FunderType, rec.Description, rec.EligibilityText, rec.GeographicFocus)
	if amt := rec.RepresentativeAmount(); amt != nil {
		fmt.Fprintf(&b, "Amount: %d %s (smallest unit)\n", *amt, rec.Currency)
	}
	if rec.Deadline != nil {
		fmt.Fprintf(&b, "Deadline: %s\n", rec.Deadline.Format("2006-01-02"))
	}
	b.WriteString("\nScore the fit.")
	return b.String()
}

func truncate(list []string, n int) []string {
	out := make([]string, 0, n)
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == n {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeEffort(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low":
		return "low"
	case "high":
		return "high"
	default:
		return "medium"
	}
}
