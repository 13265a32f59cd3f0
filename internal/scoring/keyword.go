package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/david/fundscout/internal/models"
)

// DefaultKeywords drive the fallback when no organization profile exists yet.
var DefaultKeywords = []string{
	"nonprofit", "community", "capacity building", "general operating",
	"program support", "workforce", "education", "health",
}

// IrrelevantDomains are penalized (never hard-rejected) by the fallback.
var IrrelevantDomains = []string{
	"smallbusinessloans", "contests", "sweepstakes",
}

// KeywordScorer is the profile-free fallback: fixed keyword list, funding
// banding, and a flat credit for an upcoming deadline. The floor is 5, never
// 0, so a near-miss stays visible in ranked output.
type KeywordScorer struct {
	Keywords []string
	Now      func() time.Time // test seam; defaults to time.Now
}

func (s *KeywordScorer) Version() string { return VersionKeyword }

func (s *KeywordScorer) Score(_ context.Context, _ models.OrgProfile, rec models.Record) (models.ScoreBreakdown, error) {
	keywords := s.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}

	text := strings.ToLower(rec.Title + " " + rec.Description + " " + rec.EligibilityText)

	total := 10 // base: it is a live funding opportunity
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			hits++
			total += 8
		}
	}

	band := fundingBand(rec.RepresentativeAmount())
	total += band

	deadlineCredit := 0
	if rec.Deadline != nil && rec.Deadline.After(now) {
		deadlineCredit = 5
		total += deadlineCredit
	}

	penalized := false
	for _, domain := range IrrelevantDomains {
		if strings.Contains(rec.SourceDomain, domain) {
			total -= 10
			penalized = true
			break
		}
	}

	if total < 5 {
		total = 5
	}
	if total > 100 {
		total = 100
	}

	reasoning := fmt.Sprintf(
		"Keyword fallback: base 10, %d keyword hits (+%d), funding band +%d, deadline credit +%d.",
		hits, hits*8, band, deadlineCredit)
	if penalized {
		reasoning += " Penalized 10 for a low-relevance source domain."
	}

	return models.ScoreBreakdown{
		Total:      total,
		Reasoning:  reasoning,
		Summary:    fmt.Sprintf("%s scores %d/100 on keyword heuristics alone.", rec.Title, total),
		Confidence: 0.0, // nothing to calibrate against without feedback
		Method:     "keyword",
		Version:    VersionKeyword,
	}, nil
}

// fundingBand awards more for mid-size grants: the range most organizations
// can both win and absorb. Unknown amounts score moderately, not zero.
func fundingBand(amount *int64) int {
	if amount == nil {
		return 4
	}
	const dollar = 100
	switch a := *amount; {
	case a < 10_000*dollar:
		return 2
	case a < 100_000*dollar:
		return 6
	case a <= 500_000*dollar:
		return 8
	default:
		return 5
	}
}
