package db

import (
	"strings"
	"testing"
)

func TestUpsertRecordQuery_DedupAndPreservation(t *testing.T) {
	if !strings.Contains(upsertRecordQuery, "ON CONFLICT (source_domain, source_id) DO UPDATE") {
		t.Fatalf("upsert must key on the dedup pair: %s", upsertRecordQuery)
	}

	// A weaker re-extraction must never blank a known-good field.
	preserved := []string{
		"funder = COALESCE(NULLIF(EXCLUDED.funder, ''), records.funder)",
		"amount_min = COALESCE(EXCLUDED.amount_min, records.amount_min)",
		"amount_max = COALESCE(EXCLUDED.amount_max, records.amount_max)",
		"deadline = COALESCE(EXCLUDED.deadline, records.deadline)",
		"description = COALESCE(NULLIF(EXCLUDED.description, ''), records.description)",
		"embedding = COALESCE(EXCLUDED.embedding, records.embedding)",
	}
	for _, clause := range preserved {
		if !strings.Contains(upsertRecordQuery, clause) {
			t.Errorf("upsert missing preservation clause %q", clause)
		}
	}

	if !strings.Contains(upsertRecordQuery, "extraction_confidence = GREATEST(EXCLUDED.extraction_confidence, records.extraction_confidence)") {
		t.Error("confidence must only ratchet upward on re-extraction")
	}
	if !strings.Contains(upsertRecordQuery, "RETURNING id") {
		t.Error("upsert must return the row id for score writes")
	}
}

func TestQualifiedRecordColsMatchScanOrder(t *testing.T) {
	plain := strings.Split(recordCols, ",")
	qualified := strings.Split(qualifyRecordCols(), ",")
	if len(plain) != len(qualified) {
		t.Fatalf("column counts diverge: %d vs %d", len(plain), len(qualified))
	}
	for i := range plain {
		p := strings.TrimSpace(plain[i])
		q := strings.TrimSpace(qualified[i])
		if "records."+p != q {
			t.Errorf("column %d: %q vs %q", i, p, q)
		}
	}
}
