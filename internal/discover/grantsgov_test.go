package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func grantsGovHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	future := time.Now().UTC().AddDate(0, 2, 0).Format("01/02/2006")
	past := time.Now().UTC().AddDate(0, -2, 0).Format("01/02/2006")

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		switch {
		case r.URL.Path == "/search":
			var req grantsGovSearchRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad search request: %v", err)
			}
			if req.OppStatuses != "posted" {
				t.Errorf("oppStatuses = %q", req.OppStatuses)
			}
			fmt.Fprintf(w, `{"errorcode": 0, "data": {"hitCount": 3, "oppHits": [
				{"id": "358001", "number": "ED-26-01", "title": "Workforce Innovation Fund",
				 "agency": "Department of Labor", "closeDate": %q, "cfdaList": ["17.283"]},
				{"id": "358002", "number": "ED-26-02", "title": "Expired Opportunity",
				 "agency": "Department of Labor", "closeDate": %q},
				{"id": "", "title": "No identifier, dropped"}
			]}}`, future, past)
		case r.URL.Path == "/detail":
			fmt.Fprint(w, `{"synopsis": {
				"synopsisDesc": "Supports job training programs.",
				"applicantEligibilityDesc": "Nonprofits with 501(c)(3) status",
				"awardCeiling": "$500,000",
				"awardFloor": "$50,000"
			}}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func TestGrantsGovSearch(t *testing.T) {
	server := httptest.NewServer(grantsGovHandler(t))
	defer server.Close()

	client := NewGrantsGovClient(nil)
	client.BaseURL = server.URL + "/search"
	client.DetailURL = server.URL + "/detail"

	records, err := client.Search(context.Background(), "workforce", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (expired and id-less hits dropped)", len(records))
	}

	rec := records[0]
	if rec.SourceDomain != "grants.gov" || rec.SourceID != "358001" {
		t.Errorf("dedup key = %s", rec.DedupKey())
	}
	if rec.FunderType != "Government" {
		t.Errorf("FunderType = %q", rec.FunderType)
	}
	if rec.ExtractionConfidence != 1.0 {
		t.Errorf("ExtractionConfidence = %f, want 1.0 for structured API data", rec.ExtractionConfidence)
	}
	if rec.Description != "Supports job training programs." {
		t.Errorf("Description = %q, want synopsis detail", rec.Description)
	}
	if rec.AmountMax == nil || *rec.AmountMax != 500_000_00 {
		t.Errorf("AmountMax = %v, want 50000000", rec.AmountMax)
	}
	if rec.AmountMin == nil || *rec.AmountMin != 50_000_00 {
		t.Errorf("AmountMin = %v, want 5000000", rec.AmountMin)
	}
	if rec.Deadline == nil {
		t.Error("Deadline not parsed")
	}
}

func TestGrantsGovSearchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"errorcode": 5, "msg": "rate limited"}`)
	}))
	defer server.Close()

	client := NewGrantsGovClient(nil)
	client.BaseURL = server.URL

	if _, err := client.Search(context.Background(), "workforce", 0, 10); err == nil {
		t.Fatal("expected error from API errorcode")
	}
}
