package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/david/fundscout/internal/match"
	"github.com/david/fundscout/internal/models"
)

// Verdict is a pre-filter decision. Rejections always carry the rule and the
// token that triggered it.
type Verdict struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

// DefaultBlocklist rejects domains this engine never matches on. Deployments
// override it per organization.
var DefaultBlocklist = []string{
	"sweepstakes", "lottery", "loan program", "scholarship for individuals",
}

// PreFilter runs the cheap deterministic checks ahead of any scoring spend.
// Rules apply in a fixed order so the same (record, profile) pair always
// yields the same verdict:
//
//  1. blocklist keyword anywhere in title, description, or eligibility
//  2. at least one profile keyword overlap, when the profile yields keywords
//  3. deadline strictly in the past (unparsable deadlines pass)
//
// Absence of signal never rejects: a profile with no derivable keywords and a
// record with no deadline both pass their checks.
func PreFilter(profile models.OrgProfile, rec models.Record, blocklist []string, now time.Time) Verdict {
	text := strings.ToLower(rec.Title + " " + rec.Description + " " + rec.EligibilityText)

	for _, blocked := range blocklist {
		blocked = strings.ToLower(strings.TrimSpace(blocked))
		if blocked != "" && strings.Contains(text, blocked) {
			return Verdict{Reason: fmt.Sprintf("blocked keyword %q", blocked)}
		}
	}

	if keywords := match.AllKeywords(profile); len(keywords) > 0 {
		hit := false
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				hit = true
				break
			}
		}
		if !hit {
			return Verdict{Reason: fmt.Sprintf("no overlap with any of %d profile keywords", len(keywords))}
		}
	}

	if rec.Deadline != nil && rec.Deadline.Before(now) {
		return Verdict{Reason: fmt.Sprintf("deadline %s already passed", rec.Deadline.Format("2006-01-02"))}
	}

	return Verdict{Pass: true}
}
