package models

// Dimension is one of the six scoring axes.
type Dimension string

const (
	DimMission     Dimension = "mission_alignment"
	DimPopulation  Dimension = "population_fit"
	DimGeography   Dimension = "geographic_fit"
	DimFunding     Dimension = "funding_fit"
	DimEligibility Dimension = "eligibility"
	DimStrategic   Dimension = "strategic_value"
)

// Caps are the per-dimension point ceilings. They sum to 100.
var Caps = map[Dimension]int{
	DimMission:     30,
	DimPopulation:  20,
	DimGeography:   15,
	DimFunding:     15,
	DimEligibility: 10,
	DimStrategic:   10,
}

// Dimensions in display order.
var Dimensions = []Dimension{
	DimMission, DimPopulation, DimGeography, DimFunding, DimEligibility, DimStrategic,
}

// ScoreBreakdown is a 0-100 match score with its per-dimension parts and
// explanation. Total is always the clamped sum of the six sub-scores.
type ScoreBreakdown struct {
	Mission     int `json:"mission_alignment"`
	Population  int `json:"population_fit"`
	Geography   int `json:"geographic_fit"`
	Funding     int `json:"funding_fit"`
	Eligibility int `json:"eligibility"`
	Strategic   int `json:"strategic_value"`

	Total             int      `json:"total"`
	Reasoning         string   `json:"reasoning"`
	Summary           string   `json:"summary"`
	Tags              []string `json:"tags,omitempty"`               // up to 5
	EffortLevel       string   `json:"effort_level,omitempty"`       // low|medium|high
	WinningStrategies []string `json:"winning_strategies,omitempty"` // up to 3
	Confidence        float64  `json:"confidence"`
	Method            string   `json:"method"`  // rules|reasoner|keyword
	Version           string   `json:"version"` // scoring strategy version
}

// Clamp forces every sub-score into its cap and recomputes Total in [0,100].
func (s *ScoreBreakdown) Clamp() {
	s.Mission = clampInt(s.Mission, Caps[DimMission])
	s.Population = clampInt(s.Population, Caps[DimPopulation])
	s.Geography = clampInt(s.Geography, Caps[DimGeography])
	s.Funding = clampInt(s.Funding, Caps[DimFunding])
	s.Eligibility = clampInt(s.Eligibility, Caps[DimEligibility])
	s.Strategic = clampInt(s.Strategic, Caps[DimStrategic])

	total := s.Mission + s.Population + s.Geography + s.Funding + s.Eligibility + s.Strategic
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	s.Total = total
}

// Get returns the sub-score for a dimension.
func (s ScoreBreakdown) Get(d Dimension) int {
	switch d {
	case DimMission:
		return s.Mission
	case DimPopulation:
		return s.Population
	case DimGeography:
		return s.Geography
	case DimFunding:
		return s.Funding
	case DimEligibility:
		return s.Eligibility
	case DimStrategic:
		return s.Strategic
	}
	return 0
}

func clampInt(v, cap int) int {
	if v < 0 {
		return 0
	}
	if v > cap {
		return cap
	}
	return v
}
