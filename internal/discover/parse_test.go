package discover

import (
	"testing"
)

func TestParseDeadline(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string // YYYY-MM-DD, "" means unparseable
	}{
		{"iso", "2026-03-15", "2026-03-15"},
		{"long month", "March 15, 2026", "2026-03-15"},
		{"short month", "Mar 15, 2026", "2026-03-15"},
		{"day first", "15 March 2026", "2026-03-15"},
		{"us slashes", "03/15/2026", "2026-03-15"},
		{"labeled", "Deadline: March 15, 2026", "2026-03-15"},
		{"embedded in prose", "Applications close on March 15, 2026 at noon.", "2026-03-15"},
		{"rolling", "rolling basis", ""},
		{"empty", "", ""},
		{"gibberish", "see website", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDeadline(tt.in)
			if tt.want == "" {
				if ok {
					t.Fatalf("parseDeadline(%q) = %v, want unparseable", tt.in, got)
				}
				return
			}
			if !ok {
				t.Fatalf("parseDeadline(%q) failed", tt.in)
			}
			if got.Format("2006-01-02") != tt.want {
				t.Errorf("parseDeadline(%q) = %s, want %s", tt.in, got.Format("2006-01-02"), tt.want)
			}
			if got.Hour() != 23 || got.Minute() != 59 {
				t.Errorf("date-only deadline should expire at end of day, got %v", got)
			}
		})
	}
}

func TestToMinorUnits(t *testing.T) {
	if got := toMinorUnits(0); got != nil {
		t.Errorf("zero amount should be unknown, got %d", *got)
	}
	if got := toMinorUnits(-5); got != nil {
		t.Errorf("negative amount should be unknown, got %d", *got)
	}
	if got := toMinorUnits(250000); got == nil || *got != 25000000 {
		t.Errorf("toMinorUnits(250000) = %v, want 25000000", got)
	}
	if got := toMinorUnits(99.99); got == nil || *got != 9999 {
		t.Errorf("toMinorUnits(99.99) = %v, want 9999", got)
	}
}

func TestParseAmountText(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantMin float64
		wantMax float64
	}{
		{"range", "grants of $50,000 to $250,000", 50000, 250000},
		{"single max", "awards up to $100,000", 0, 100000},
		{"single min", "minimum award $25,000", 25000, 0},
		{"nothing", "funding available", 0, 0},
		{"year is not an amount", "applications for 2026 open in January", 0, 0},
		{"bare figures ignored", "serving 500 families, awards up to $80,000", 0, 80000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMin, gotMax := parseAmountText(tt.in)
			if gotMin != tt.wantMin || gotMax != tt.wantMax {
				t.Errorf("parseAmountText(%q) = (%v, %v), want (%v, %v)",
					tt.in, gotMin, gotMax, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestDeadlineCandidatesFromTextOrdered(t *testing.T) {
	text := "Applications open January 5, 2027. Final deadline: 2026-11-30. Award ceremony March 1, 2027."
	candidates := DeadlineCandidatesFromText(text)
	if len(candidates) != 3 {
		t.Fatalf("got %d candidates, want 3: %v", len(candidates), candidates)
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Before(candidates[i-1]) {
			t.Errorf("candidates out of order: %v", candidates)
		}
	}
	if candidates[0].Format("2006-01-02") != "2026-11-30" {
		t.Errorf("earliest = %s, want 2026-11-30", candidates[0].Format("2006-01-02"))
	}
}

func TestToRecordShapeValidation(t *testing.T) {
	agent := NewAgent(testSource(), Deps{Session: &fakeSession{}})

	tests := []struct {
		name string
		cand candidate
		ok   bool
	}{
		{"complete", candidate{SourceID: "x1", Title: "Grant", Confidence: 0.9}, true},
		{"url stands in for id", candidate{Title: "Grant", ApplicationURL: "https://x.org/g/1"}, true},
		{"missing title", candidate{SourceID: "x1"}, false},
		{"missing every identifier", candidate{Title: "Grant"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := agent.toRecord(tt.cand)
			if ok != tt.ok {
				t.Fatalf("toRecord(%+v) ok = %v, want %v", tt.cand, ok, tt.ok)
			}
			if ok && rec.SourceID == "" {
				t.Error("accepted record without a source id")
			}
		})
	}

	rec, ok := agent.toRecord(candidate{
		SourceID:  "amt",
		Title:     "Grant",
		AmountMin: 50_000,
		AmountMax: 250_000,
		Deadline:  "March 15, 2027",
	})
	if !ok {
		t.Fatal("valid candidate rejected")
	}
	if rec.AmountMin == nil || *rec.AmountMin != 5_000_000 {
		t.Errorf("AmountMin = %v, want 5000000 (smallest unit)", rec.AmountMin)
	}
	if rec.Deadline == nil || rec.Deadline.Format("2006-01-02") != "2027-03-15" {
		t.Errorf("Deadline = %v", rec.Deadline)
	}
	if rec.DeadlineRaw != "March 15, 2027" {
		t.Errorf("DeadlineRaw = %q, original text must be kept", rec.DeadlineRaw)
	}
	if rec.ExtractionConfidence != 0.5 {
		t.Errorf("ExtractionConfidence = %v, want neutral default", rec.ExtractionConfidence)
	}
}

func TestToRecordBackfillsAmountsFromProse(t *testing.T) {
	agent := NewAgent(testSource(), Deps{Session: &fakeSession{}})

	rec, ok := agent.toRecord(candidate{
		SourceID:    "prose",
		Title:       "Grant",
		Description: "Since 2019 we fund grants of $50,000 to $250,000 per year.",
	})
	if !ok {
		t.Fatal("valid candidate rejected")
	}
	if rec.AmountMin == nil || *rec.AmountMin != 5_000_000 {
		t.Errorf("AmountMin = %v, want 5000000", rec.AmountMin)
	}
	if rec.AmountMax == nil || *rec.AmountMax != 25_000_000 {
		t.Errorf("AmountMax = %v, want 25000000", rec.AmountMax)
	}

	// Explicit amount fields win; prose never overrides them.
	rec, ok = agent.toRecord(candidate{
		SourceID:    "explicit",
		Title:       "Grant",
		AmountMax:   10_000,
		Description: "grants of $50,000 to $250,000",
	})
	if !ok {
		t.Fatal("valid candidate rejected")
	}
	if rec.AmountMin != nil {
		t.Errorf("AmountMin = %v, want nil", rec.AmountMin)
	}
	if rec.AmountMax == nil || *rec.AmountMax != 1_000_000 {
		t.Errorf("AmountMax = %v, want 1000000", rec.AmountMax)
	}
}
