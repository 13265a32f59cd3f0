package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/david/fundscout/internal/match"
	"github.com/david/fundscout/internal/models"
)

// RuleScorer is the always-available, zero-cost strategy. It computes a
// 0-100 fit per dimension from keyword and overlap heuristics, converts each
// fit into points under the dimension's weight, and explains the result with
// the counts that drove it.
//
// With Weighted set, the dimension weights come from the profile's capacity
// and size via match.DeriveWeights; otherwise the base distribution applies,
// which makes each dimension's points ceiling exactly its cap.
type RuleScorer struct {
	Weighted bool
}

func (s *RuleScorer) Version() string {
	if s.Weighted {
		return VersionWeighted
	}
	return VersionRules
}

func (s *RuleScorer) Score(_ context.Context, profile models.OrgProfile, rec models.Record) (models.ScoreBreakdown, error) {
	weights := match.BaseWeights
	if s.Weighted {
		weights = match.DeriveWeights(profile)
	}

	missionFit, missionHits, missionTotal := missionAlignment(profile, rec)
	populationFit := match.DemographicFit(profile, rec)
	geographyFit := match.GeographicFit(profile, rec)
	fundingFit := match.FundingFit(profile, rec)
	eligibilityFit := eligibilityAlignment(rec)
	strategicFit := strategicValue(rec)

	breakdown := models.ScoreBreakdown{
		Mission:     points(missionFit, weights[models.DimMission]),
		Population:  points(populationFit, weights[models.DimPopulation]),
		Geography:   points(geographyFit, weights[models.DimGeography]),
		Funding:     points(fundingFit, weights[models.DimFunding]),
		Eligibility: points(eligibilityFit, weights[models.DimEligibility]),
		Strategic:   points(strategicFit, weights[models.DimStrategic]),
		Method:      "rules",
		Version:     s.Version(),
	}
	breakdown.Clamp()

	breakdown.Reasoning = fmt.Sprintf(
		"Matched %d of %d mission keywords in the record text. Population fit %d/100, "+
			"geographic fit %d/100, funding fit %d/100 against the preferred range, "+
			"eligibility fit %d/100, strategic value %d/100. Dimension points: "+
			"mission %d, population %d, geography %d, funding %d, eligibility %d, strategic %d, "+
			"for a total of %d.",
		missionHits, missionTotal, populationFit, geographyFit, fundingFit,
		eligibilityFit, strategicFit,
		breakdown.Mission, breakdown.Population, breakdown.Geography,
		breakdown.Funding, breakdown.Eligibility, breakdown.Strategic,
		breakdown.Total)
	breakdown.Summary = fmt.Sprintf("%s scores %d/100 for %s.", rec.Title, breakdown.Total, displayName(profile))

	return breakdown, nil
}

// points converts a 0-100 fit into this dimension's share of the total.
func points(fit int, weight float64) int {
	return int(math.Round(float64(fit) * weight))
}

// missionAlignment measures keyword overlap between the profile's derived
// terms and the record text. A profile with no derivable keywords is neutral.
func missionAlignment(profile models.OrgProfile, rec models.Record) (fit, hits, total int) {
	keywords := match.AllKeywords(profile)
	if len(keywords) == 0 {
		return 50, 0, 0
	}
	text := strings.ToLower(rec.Title + " " + rec.Description)
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	// Five distinct hits is full alignment; funders rarely echo more.
	denom := len(keywords)
	if denom > 5 {
		denom = 5
	}
	fit = hits * 100 / denom
	if fit > 100 {
		fit = 100
	}
	return fit, hits, len(keywords)
}

func eligibilityAlignment(rec models.Record) int {
	text := strings.ToLower(rec.EligibilityText)
	if strings.TrimSpace(text) == "" {
		return 50
	}
	if strings.Contains(text, "501(c)(3)") || strings.Contains(text, "nonprofit") || strings.Contains(text, "non-profit") {
		return 90
	}
	if strings.Contains(text, "for-profit only") || strings.Contains(text, "individuals only") {
		return 25
	}
	return 60
}

func strategicValue(rec models.Record) int {
	fit := 50
	text := strings.ToLower(rec.Title + " " + rec.Description)
	if strings.Contains(text, "general operating") || strings.Contains(text, "unrestricted") {
		fit += 25
	}
	if strings.Contains(text, "multi-year") || strings.Contains(text, "multiyear") {
		fit += 15
	}
	if strings.EqualFold(rec.FunderType, "Foundation") {
		fit += 10
	}
	if fit > 100 {
		fit = 100
	}
	return fit
}

func displayName(profile models.OrgProfile) string {
	if profile.Name != "" {
		return profile.Name
	}
	return "the organization"
}
