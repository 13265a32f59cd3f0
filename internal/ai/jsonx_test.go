package ai

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "object with surrounding prose",
			input: "Sure! Here is the data:\n{\"a\": 1}\nLet me know if you need more.",
			want:  `{"a": 1}`,
		},
		{
			name:  "markdown fenced",
			input: "```json\n[{\"title\": \"x\"}]\n```",
			want:  `[{"title": "x"}]`,
		},
		{
			name:  "nested braces",
			input: `prefix {"a": {"b": 2}} suffix`,
			want:  `{"a": {"b": 2}}`,
		},
		{
			name:  "braces inside strings ignored",
			input: `{"a": "odd } value", "b": 1}`,
			want:  `{"a": "odd } value", "b": 1}`,
		},
		{
			name:  "array before object picks array",
			input: `[1, 2, {"a": 3}] trailing`,
			want:  `[1, 2, {"a": 3}]`,
		},
		{
			name:    "no payload",
			input:   "I could not find any opportunities on this page.",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			input:   `{"a": 1`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrNoJSONPayload) {
					t.Fatalf("expected ErrNoJSONPayload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	got, err := Decode[payload]("noise before {\"title\": \"Grant\"} noise after")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Grant" {
		t.Errorf("expected Grant, got %q", got.Title)
	}

	if _, err := Decode[payload](`{"title": 12}`); err == nil {
		t.Error("expected type error for mismatched field")
	}
}

func TestCostTrackerSnapshotAndReset(t *testing.T) {
	tracker := NewCostTracker(Rates{TextInput: 1, TextOutput: 2, VisionInput: 3, VisionOutput: 4})

	tracker.Add(RequestText, Usage{InputTokens: 1_000_000, OutputTokens: 500_000}, false)
	tracker.Add(RequestVision, Usage{InputTokens: 2_000_000, OutputTokens: 0}, true)

	snap := tracker.Snapshot()
	if snap.TextCalls != 1 || snap.VisionCalls != 1 {
		t.Fatalf("unexpected call counts: %+v", snap)
	}
	if snap.FailedCalls != 1 {
		t.Errorf("expected 1 failed call, got %d", snap.FailedCalls)
	}
	if snap.InputTokens != 3_000_000 || snap.OutputTokens != 500_000 {
		t.Errorf("unexpected token totals: %+v", snap)
	}
	// 1*1 + 0.5*2 + 2*3 = 8 USD
	if snap.EstimatedUSD != 8 {
		t.Errorf("expected 8 USD, got %f", snap.EstimatedUSD)
	}

	tracker.Reset()
	if snap := tracker.Snapshot(); snap.InputTokens != 0 || snap.TextCalls != 0 {
		t.Errorf("expected zeroed ledger after reset, got %+v", snap)
	}
}
