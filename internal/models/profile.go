package models

import "github.com/google/uuid"

// CapacityTier describes an organization's grant-writing capacity.
type CapacityTier string

const (
	CapacityLimited  CapacityTier = "limited"
	CapacityModerate CapacityTier = "moderate"
	CapacityAdvanced CapacityTier = "advanced"
)

// OrgProfile is the organization the matching engine scores against.
// It is created at onboarding and mutated elsewhere; this engine only reads it.
type OrgProfile struct {
	ID                 uuid.UUID    `json:"id"`
	Name               string       `json:"name"`
	MissionText        string       `json:"mission_text"`
	FocusAreas         []string     `json:"focus_areas"`
	Programs           []string     `json:"programs"`
	TargetPopulations  []string     `json:"target_populations"`
	ServiceRegions     []string     `json:"service_regions"`
	StaffSize          int          `json:"staff_size"`
	AnnualBudget       int64        `json:"annual_budget"` // smallest currency unit
	PreferredAmountMin int64        `json:"preferred_amount_min"`
	PreferredAmountMax int64        `json:"preferred_amount_max"`
	Capacity           CapacityTier `json:"capacity"`
	CustomKeywords     []string     `json:"custom_keywords"`
	RejectsGovFunding  bool         `json:"rejects_gov_funding"`
	MatchingFunds      int64        `json:"matching_funds"` // available cost-share, smallest unit
}

// IsZero reports whether no organization has been onboarded: no identity
// and nothing to match against.
func (p OrgProfile) IsZero() bool {
	return p.ID == uuid.Nil && p.Name == "" && p.MissionText == "" &&
		len(p.FocusAreas) == 0 && len(p.CustomKeywords) == 0 &&
		len(p.Programs) == 0 && len(p.TargetPopulations) == 0
}

// PrimaryFocus returns the declared main focus area, or "".
func (p OrgProfile) PrimaryFocus() string {
	if len(p.FocusAreas) == 0 {
		return ""
	}
	return p.FocusAreas[0]
}
