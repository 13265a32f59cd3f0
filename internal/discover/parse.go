package discover

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// toMinorUnits converts a whole-unit amount (dollars, euros) to the smallest
// currency unit. Zero and negative values mean "unknown".
func toMinorUnits(amount float64) *int64 {
	if amount <= 0 {
		return nil
	}
	v := int64(math.Round(amount * 100))
	return &v
}

func normalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "USD"
	}
	return code
}

var deadlinePrefixes = []string{
	"closing date:", "deadline:", "due date:", "expires:", "ends:", "closes:",
}

// parseDeadline turns the deadline text a model returned into a concrete
// date. Unparseable text is not an error; the raw string is kept on the
// record instead.
func parseDeadline(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	for _, p := range deadlinePrefixes {
		if idx := strings.Index(lower, p); idx != -1 {
			text = strings.TrimSpace(text[idx+len(p):])
			lower = strings.ToLower(text)
		}
	}
	if text == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, true
	}

	dateFormats := []string{
		"2006-01-02",
		"January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		"2 Jan 2006",
		"01/02/2006",
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, text); err == nil {
			return toEndOfDay(t), true
		}
	}

	if t := deadlineFromRegex(text); !t.IsZero() {
		return toEndOfDay(t), true
	}
	return time.Time{}, false
}

var (
	isoDateRe   = regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	usDateRe    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(20\d{2})\b`)
	monthNameRe = regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.?\s+(\d{1,2}),?\s+(20\d{2})\b`)
)

// deadlineFromRegex pulls a date out of surrounding prose.
func deadlineFromRegex(text string) time.Time {
	if m := isoDateRe.FindString(text); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return t
		}
	}
	if m := usDateRe.FindStringSubmatch(text); len(m) == 4 {
		if t, err := time.Parse("1/2/2006", m[1]+"/"+m[2]+"/"+m[3]); err == nil {
			return t
		}
	}
	if m := monthNameRe.FindStringSubmatch(text); len(m) == 4 {
		dateStr := strings.TrimSuffix(m[1], ".") + " " + m[2] + ", " + m[3]
		if t, err := time.Parse("January 2, 2006", dateStr); err == nil {
			return t
		}
		if t, err := time.Parse("Jan 2, 2006", dateStr); err == nil {
			return t
		}
	}
	return time.Time{}
}

// toEndOfDay widens a date-only deadline to the last instant of that day so
// "due March 15" does not expire at midnight the night before.
func toEndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}

var amountFigureRe = regexp.MustCompile(`\$\s?([\d][\d,]*(?:\.\d+)?)`)

// parseAmountText extracts min/max whole-unit amounts from free text such as
// "grants of $50,000 to $250,000". Only currency-anchored figures count;
// bare numbers in prose are usually years, counts, or percentages. A single
// figure is treated as a maximum unless qualified as a minimum.
func parseAmountText(text string) (minAmt, maxAmt float64) {
	lower := strings.ToLower(text)

	var amounts []float64
	for _, m := range amountFigureRe.FindAllStringSubmatch(text, -1) {
		clean := strings.ReplaceAll(m[1], ",", "")
		if val, err := strconv.ParseFloat(clean, 64); err == nil && val > 0 {
			amounts = append(amounts, val)
		}
	}
	if len(amounts) == 0 {
		return 0, 0
	}
	if len(amounts) == 1 {
		if strings.Contains(lower, "minimum") || strings.Contains(lower, "at least") {
			return amounts[0], 0
		}
		return 0, amounts[0]
	}

	minAmt, maxAmt = amounts[0], amounts[0]
	for _, a := range amounts {
		if a < minAmt {
			minAmt = a
		}
		if a > maxAmt {
			maxAmt = a
		}
	}
	return minAmt, maxAmt
}
