// Package match turns an organization profile into the search keywords,
// dimension weights, and fit modifiers the scoring pipeline consumes.
// Everything here is pure: the profile is read-only to this engine.
package match

import (
	"fmt"
	"strings"

	"github.com/david/fundscout/internal/models"
)

// BaseWeights is the starting dimension distribution before any
// capacity or size adjustment. Values sum to 1.0.
var BaseWeights = map[models.Dimension]float64{
	models.DimMission:     0.30,
	models.DimPopulation:  0.20,
	models.DimGeography:   0.15,
	models.DimFunding:     0.15,
	models.DimEligibility: 0.10,
	models.DimStrategic:   0.10,
}

// synonyms expands a declared focus area into the terms funders actually use.
var synonyms = map[string][]string{
	"workforce-development": {"workforce", "job", "employment", "skills", "career", "training"},
	"education":             {"school", "literacy", "stem", "tutoring", "learning"},
	"youth-development":     {"youth", "mentoring", "after-school", "adolescent"},
	"health":                {"healthcare", "wellness", "clinic", "public health"},
	"mental-health":         {"behavioral health", "counseling", "wellness"},
	"housing":               {"homelessness", "shelter", "affordable housing"},
	"environment":           {"climate", "conservation", "sustainability", "clean energy"},
	"food-security":         {"hunger", "nutrition", "food bank", "food access"},
	"arts":                  {"arts", "culture", "creative", "humanities"},
	"technology":            {"tech", "digital", "computing", "broadband"},
}

// DeriveKeywords returns the profile's search terms: primary carries the
// declared main focus plus explicit custom keywords, secondary carries
// synonym expansions, program names, and target-population terms. Both lists
// are lowercase, de-duplicated, order-preserving.
func DeriveKeywords(profile models.OrgProfile) (primary, secondary []string) {
	seen := make(map[string]bool)
	add := func(dst *[]string, term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		*dst = append(*dst, term)
	}

	focus := strings.ToLower(strings.TrimSpace(profile.PrimaryFocus()))
	if focus != "" {
		add(&primary, strings.ReplaceAll(focus, "-", " "))
	}
	for _, kw := range profile.CustomKeywords {
		add(&primary, kw)
	}

	for _, syn := range synonyms[focus] {
		add(&secondary, syn)
	}
	for _, area := range profile.FocusAreas[min(1, len(profile.FocusAreas)):] {
		add(&secondary, strings.ReplaceAll(strings.ToLower(area), "-", " "))
		for _, syn := range synonyms[strings.ToLower(strings.TrimSpace(area))] {
			add(&secondary, syn)
		}
	}
	for _, program := range profile.Programs {
		add(&secondary, program)
	}
	for _, pop := range profile.TargetPopulations {
		add(&secondary, pop)
	}
	return primary, secondary
}

// AllKeywords is the primary list followed by the secondary list.
func AllKeywords(profile models.OrgProfile) []string {
	primary, secondary := DeriveKeywords(profile)
	return append(primary, secondary...)
}

// DeriveWeights adjusts the base distribution for the profile's declared
// capacity and staff size, then renormalizes so the weights sum to 1.0.
// Limited capacity shifts weight toward feasibility (funding and eligibility)
// and away from semantic depth (mission and strategic value). No weight ever
// goes negative.
func DeriveWeights(profile models.OrgProfile) map[models.Dimension]float64 {
	weights := make(map[models.Dimension]float64, len(BaseWeights))
	for d, w := range BaseWeights {
		weights[d] = w
	}

	switch profile.Capacity {
	case models.CapacityLimited:
		weights[models.DimFunding] += 0.08
		weights[models.DimEligibility] += 0.07
		weights[models.DimMission] -= 0.10
		weights[models.DimStrategic] -= 0.05
	case models.CapacityAdvanced:
		weights[models.DimMission] += 0.05
		weights[models.DimStrategic] += 0.05
		weights[models.DimFunding] -= 0.05
		weights[models.DimEligibility] -= 0.05
	}

	if profile.StaffSize > 0 && profile.StaffSize < 5 {
		weights[models.DimEligibility] += 0.05
		weights[models.DimFunding] += 0.05
		weights[models.DimMission] -= 0.10
	}

	normalize(weights)
	return weights
}

func normalize(weights map[models.Dimension]float64) {
	var sum float64
	for d, w := range weights {
		if w < 0 {
			weights[d] = 0
			w = 0
		}
		sum += w
	}
	if sum == 0 {
		for d := range weights {
			weights[d] = 1.0 / float64(len(weights))
		}
		return
	}
	for d := range weights {
		weights[d] /= sum
	}
}

// FundingFit scores how the record's representative amount sits against the
// profile's preferred range. Unknown amounts are neutral, not zero.
func FundingFit(profile models.OrgProfile, rec models.Record) int {
	amount := rec.RepresentativeAmount()
	if amount == nil {
		return 50
	}
	lo, hi := profile.PreferredAmountMin, profile.PreferredAmountMax
	if lo <= 0 && hi <= 0 {
		return 50
	}
	if hi <= 0 {
		hi = lo * 10
	}
	a := *amount
	if a >= lo && a <= hi {
		return 100
	}
	// Symmetric falloff by the ratio to the nearer boundary.
	var ratio float64
	if a < lo {
		ratio = float64(a) / float64(lo)
	} else {
		ratio = float64(hi) / float64(a)
	}
	fit := int(ratio * 100)
	if fit < 0 {
		fit = 0
	}
	return fit
}

// nationalScopeTerms mark a record as open regardless of region.
var nationalScopeTerms = []string{"national", "nationwide", "united states", "all states"}

// GeographicFit applies the tiered geography rules. Absence of information
// is not evidence of mismatch, so "no signal" is neutral and even a
// contradictory signal never reaches zero.
func GeographicFit(profile models.OrgProfile, rec models.Record) int {
	focus := strings.ToLower(strings.TrimSpace(rec.GeographicFocus))
	if focus == "" || len(profile.ServiceRegions) == 0 {
		return 50
	}
	for _, term := range nationalScopeTerms {
		if strings.Contains(focus, term) {
			return 100
		}
	}
	for _, region := range profile.ServiceRegions {
		region = strings.ToLower(strings.TrimSpace(region))
		if region == "" {
			continue
		}
		if strings.Contains(focus, region) || strings.Contains(region, focus) {
			return 100
		}
	}
	return 25
}

// populationVocabulary lets DemographicFit tell "targets someone else" apart
// from "targets nobody in particular".
var populationVocabulary = []string{
	"youth", "children", "students", "seniors", "elderly", "veterans",
	"women", "immigrants", "refugees", "low-income", "unemployed",
	"disabled", "homeless", "rural", "urban", "minority", "indigenous",
	"families",
}

// DemographicFit scores target-population overlap between the record text
// and the profile's declared populations.
func DemographicFit(profile models.OrgProfile, rec models.Record) int {
	text := strings.ToLower(rec.Title + " " + rec.Description + " " + rec.EligibilityText)
	if len(profile.TargetPopulations) == 0 || strings.TrimSpace(text) == "" {
		return 50
	}
	for _, pop := range profile.TargetPopulations {
		pop = strings.ToLower(strings.TrimSpace(pop))
		if pop != "" && strings.Contains(text, pop) {
			return 100
		}
	}
	// The record names populations, just not ours: a contradictory signal.
	for _, term := range populationVocabulary {
		if strings.Contains(text, term) {
			return 25
		}
	}
	return 50
}

// costShareTerms signal that an award requires matching funds.
var costShareTerms = []string{"matching funds", "cost share", "cost-sharing", "cost sharing", "match requirement"}

// ShouldExclude applies the hard business-rule exclusions that no score can
// override.
func ShouldExclude(profile models.OrgProfile, rec models.Record) (bool, string) {
	if profile.RejectsGovFunding && strings.EqualFold(rec.FunderType, "Government") {
		return true, "organization declines government funding"
	}
	if profile.MatchingFunds <= 0 {
		text := strings.ToLower(rec.Description + " " + rec.EligibilityText)
		for _, term := range costShareTerms {
			if strings.Contains(text, term) {
				return true, fmt.Sprintf("award requires cost sharing (%q) and the organization has no matching funds", term)
			}
		}
	}
	return false, ""
}
