package models

import (
	"time"

	"github.com/google/uuid"
)

// Record is one structured funding opportunity produced by discovery.
// (SourceDomain, SourceID) is the stable dedup key: re-extracting the same
// opportunity must upsert, never duplicate.
type Record struct {
	ID                   uuid.UUID  `json:"id"`
	SourceDomain         string     `json:"source_domain"`
	SourceID             string     `json:"source_id"`
	Title                string     `json:"title"`
	Funder               string     `json:"funder"`
	FunderType           string     `json:"funder_type"` // Government, Foundation, Corporate, Multilateral
	AmountMin            *int64     `json:"amount_min"`  // smallest currency unit
	AmountMax            *int64     `json:"amount_max"`
	Currency             string     `json:"currency"`
	Deadline             *time.Time `json:"deadline"`
	DeadlineRaw          string     `json:"deadline_raw"` // original text, kept for audit
	Description          string     `json:"description"`
	EligibilityText      string     `json:"eligibility_text"`
	ApplicationURL       string     `json:"application_url"`
	GeographicFocus      string     `json:"geographic_focus"`
	ContactName          string     `json:"contact_name"`
	ContactEmail         string     `json:"contact_email"`
	ExtractionConfidence float64    `json:"extraction_confidence"` // 0.0-1.0
	RawSnapshot          string     `json:"raw_snapshot,omitempty"`
	Embedding            []float32  `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// DedupKey identifies a record across discovery runs.
func (r Record) DedupKey() string {
	return r.SourceDomain + "/" + r.SourceID
}

// RepresentativeAmount picks the amount used for funding-fit math:
// max when present, else min, else nil.
func (r Record) RepresentativeAmount() *int64 {
	if r.AmountMax != nil && *r.AmountMax > 0 {
		return r.AmountMax
	}
	if r.AmountMin != nil && *r.AmountMin > 0 {
		return r.AmountMin
	}
	return nil
}
