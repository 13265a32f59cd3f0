package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pgvector/pgvector-go"

	"github.com/david/fundscout/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps the pool with the queries this engine needs. Record writes are
// upserts keyed by (source_domain, source_id), so concurrent discovery runs
// against the same source stay idempotent.
type Store struct {
	pool      *pgxpool.Pool
	sanitizer *bluemonday.Policy
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:      pool,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

const recordCols = `id, source_domain, source_id, title, funder, funder_type,
	amount_min, amount_max, currency, deadline, deadline_raw,
	description, eligibility_text, application_url, geographic_focus,
	contact_name, contact_email, extraction_confidence, raw_snapshot,
	created_at, updated_at`

func scanRecord(row pgx.Row) (models.Record, error) {
	var r models.Record
	err := row.Scan(
		&r.ID, &r.SourceDomain, &r.SourceID, &r.Title, &r.Funder, &r.FunderType,
		&r.AmountMin, &r.AmountMax, &r.Currency, &r.Deadline, &r.DeadlineRaw,
		&r.Description, &r.EligibilityText, &r.ApplicationURL, &r.GeographicFocus,
		&r.ContactName, &r.ContactEmail, &r.ExtractionConfidence, &r.RawSnapshot,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// upsertRecordQuery updates in place on re-extraction of the same
// opportunity; known-good fields are never blanked by a weaker later
// extraction.
const upsertRecordQuery = `
		INSERT INTO records (
			source_domain, source_id, title, funder, funder_type,
			amount_min, amount_max, currency, deadline, deadline_raw,
			description, eligibility_text, application_url, geographic_focus,
			contact_name, contact_email, extraction_confidence, raw_snapshot, embedding
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19
		)
		ON CONFLICT (source_domain, source_id) DO UPDATE SET
			updated_at = NOW(),
			title = EXCLUDED.title,
			funder = COALESCE(NULLIF(EXCLUDED.funder, ''), records.funder),
			funder_type = COALESCE(NULLIF(EXCLUDED.funder_type, ''), records.funder_type),
			amount_min = COALESCE(EXCLUDED.amount_min, records.amount_min),
			amount_max = COALESCE(EXCLUDED.amount_max, records.amount_max),
			currency = COALESCE(NULLIF(EXCLUDED.currency, ''), records.currency),
			deadline = COALESCE(EXCLUDED.deadline, records.deadline),
			deadline_raw = COALESCE(NULLIF(EXCLUDED.deadline_raw, ''), records.deadline_raw),
			description = COALESCE(NULLIF(EXCLUDED.description, ''), records.description),
			eligibility_text = COALESCE(NULLIF(EXCLUDED.eligibility_text, ''), records.eligibility_text),
			application_url = COALESCE(NULLIF(EXCLUDED.application_url, ''), records.application_url),
			geographic_focus = COALESCE(NULLIF(EXCLUDED.geographic_focus, ''), records.geographic_focus),
			contact_name = COALESCE(NULLIF(EXCLUDED.contact_name, ''), records.contact_name),
			contact_email = COALESCE(NULLIF(EXCLUDED.contact_email, ''), records.contact_email),
			extraction_confidence = GREATEST(EXCLUDED.extraction_confidence, records.extraction_confidence),
			raw_snapshot = COALESCE(NULLIF(EXCLUDED.raw_snapshot, ''), records.raw_snapshot),
			embedding = COALESCE(EXCLUDED.embedding, records.embedding)
		RETURNING id
	`

// UpsertRecord writes one discovered record, keyed by (source_domain,
// source_id) so concurrent and repeated discovery runs stay idempotent.
func (s *Store) UpsertRecord(ctx context.Context, rec models.Record) (uuid.UUID, error) {
	var embedding any
	if len(rec.Embedding) > 0 {
		embedding = pgvector.NewVector(rec.Embedding)
	}

	var id uuid.UUID
	err := s.pool.QueryRow(ctx, upsertRecordQuery,
		rec.SourceDomain, rec.SourceID, rec.Title, rec.Funder, rec.FunderType,
		rec.AmountMin, rec.AmountMax, rec.Currency, rec.Deadline, rec.DeadlineRaw,
		s.sanitizer.Sanitize(rec.Description), s.sanitizer.Sanitize(rec.EligibilityText),
		rec.ApplicationURL, rec.GeographicFocus,
		rec.ContactName, rec.ContactEmail, rec.ExtractionConfidence, rec.RawSnapshot,
		embedding,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upserting record %s: %w", rec.DedupKey(), err)
	}
	return id, nil
}

// ListParams narrows ListRecords. Zero values mean "no filter".
type ListParams struct {
	Source    string
	SinceDays int // by updated_at
	HasScore  *bool
	Limit     int
	Offset    int
}

func (s *Store) ListRecords(ctx context.Context, params ListParams) ([]models.Record, error) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if params.Source != "" {
		where += fmt.Sprintf(" AND source_domain = $%d", argIdx)
		args = append(args, params.Source)
		argIdx++
	}
	if params.SinceDays > 0 {
		where += fmt.Sprintf(" AND updated_at >= $%d", argIdx)
		args = append(args, time.Now().UTC().AddDate(0, 0, -params.SinceDays))
		argIdx++
	}
	if params.HasScore != nil {
		op := "EXISTS"
		if !*params.HasScore {
			op = "NOT EXISTS"
		}
		where += fmt.Sprintf(" AND %s (SELECT 1 FROM scored_matches sm WHERE sm.record_id = records.id)", op)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT %s FROM records %s ORDER BY updated_at DESC LIMIT %d OFFSET %d",
		recordCols, where, limit, params.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) GetRecord(ctx context.Context, id uuid.UUID) (models.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM records WHERE id = $1", recordCols)
	r, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

// UpsertScore persists one scored match, replacing any earlier score for the
// same (record, profile, version).
func (s *Store) UpsertScore(ctx context.Context, recordID, profileID uuid.UUID, breakdown models.ScoreBreakdown) error {
	payload, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("encoding breakdown: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO scored_matches (record_id, profile_id, total, breakdown, method, version)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (record_id, profile_id, version) DO UPDATE SET
			updated_at = NOW(),
			total = EXCLUDED.total,
			breakdown = EXCLUDED.breakdown,
			method = EXCLUDED.method
	`, recordID, profileID, breakdown.Total, payload, breakdown.Method, breakdown.Version)
	if err != nil {
		return fmt.Errorf("upserting score for record %s: %w", recordID, err)
	}
	return nil
}

// ScoredMatch pairs a record with its stored breakdown.
type ScoredMatch struct {
	Record    models.Record         `json:"record"`
	Breakdown models.ScoreBreakdown `json:"breakdown"`
}

func (s *Store) ListScoredMatches(ctx context.Context, profileID uuid.UUID, minTotal, limit int) ([]ScoredMatch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s, sm.breakdown
		FROM scored_matches sm
		JOIN records ON records.id = sm.record_id
		WHERE sm.profile_id = $1 AND sm.total >= $2
		ORDER BY sm.total DESC
		LIMIT $3
	`, qualifyRecordCols()), profileID, minTotal, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scored matches: %w", err)
	}
	defer rows.Close()

	var matches []ScoredMatch
	for rows.Next() {
		var m ScoredMatch
		var payload []byte
		err := rows.Scan(
			&m.Record.ID, &m.Record.SourceDomain, &m.Record.SourceID, &m.Record.Title,
			&m.Record.Funder, &m.Record.FunderType,
			&m.Record.AmountMin, &m.Record.AmountMax, &m.Record.Currency,
			&m.Record.Deadline, &m.Record.DeadlineRaw,
			&m.Record.Description, &m.Record.EligibilityText, &m.Record.ApplicationURL,
			&m.Record.GeographicFocus, &m.Record.ContactName, &m.Record.ContactEmail,
			&m.Record.ExtractionConfidence, &m.Record.RawSnapshot,
			&m.Record.CreatedAt, &m.Record.UpdatedAt,
			&payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning scored match: %w", err)
		}
		if err := json.Unmarshal(payload, &m.Breakdown); err != nil {
			return nil, fmt.Errorf("decoding breakdown: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func qualifyRecordCols() string {
	return `records.id, records.source_domain, records.source_id, records.title,
	records.funder, records.funder_type,
	records.amount_min, records.amount_max, records.currency,
	records.deadline, records.deadline_raw,
	records.description, records.eligibility_text, records.application_url,
	records.geographic_focus, records.contact_name, records.contact_email,
	records.extraction_confidence, records.raw_snapshot,
	records.created_at, records.updated_at`
}

// AppendFeedback writes one immutable feedback event.
func (s *Store) AppendFeedback(ctx context.Context, event models.FeedbackEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feedback_events (id, record_id, predicted_score, action, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.RecordID, event.PredictedScore, string(event.Action), event.Note, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending feedback for record %s: %w", event.RecordID, err)
	}
	return nil
}

func (s *Store) ListFeedback(ctx context.Context) ([]models.FeedbackEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, record_id, predicted_score, action, note, created_at
		FROM feedback_events ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var events []models.FeedbackEvent
	for rows.Next() {
		var e models.FeedbackEvent
		var action string
		if err := rows.Scan(&e.ID, &e.RecordID, &e.PredictedScore, &action, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback event: %w", err)
		}
		e.Action = models.FeedbackAction(action)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) CountFeedback(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM feedback_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting feedback: %w", err)
	}
	return count, nil
}

// GetProfile loads one organization profile.
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (models.OrgProfile, error) {
	return s.scanProfile(s.pool.QueryRow(ctx, profileQuery+" WHERE id = $1", id))
}

// ActiveProfile returns the most recently updated profile. Deployments of
// this engine serve one organization; multi-tenant callers pass explicit ids.
func (s *Store) ActiveProfile(ctx context.Context) (models.OrgProfile, error) {
	return s.scanProfile(s.pool.QueryRow(ctx, profileQuery+" ORDER BY updated_at DESC LIMIT 1"))
}

const profileQuery = `
	SELECT id, name, mission_text, focus_areas, programs, target_populations,
		service_regions, staff_size, annual_budget,
		preferred_amount_min, preferred_amount_max, capacity,
		custom_keywords, rejects_gov_funding, matching_funds
	FROM org_profiles`

func (s *Store) scanProfile(row pgx.Row) (models.OrgProfile, error) {
	var p models.OrgProfile
	var capacity string
	err := row.Scan(
		&p.ID, &p.Name, &p.MissionText, &p.FocusAreas, &p.Programs, &p.TargetPopulations,
		&p.ServiceRegions, &p.StaffSize, &p.AnnualBudget,
		&p.PreferredAmountMin, &p.PreferredAmountMax, &capacity,
		&p.CustomKeywords, &p.RejectsGovFunding, &p.MatchingFunds,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("scanning profile: %w", err)
	}
	p.Capacity = models.CapacityTier(capacity)
	return p, nil
}

// SaveProfile inserts or updates an organization profile.
func (s *Store) SaveProfile(ctx context.Context, p models.OrgProfile) (uuid.UUID, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO org_profiles (
			id, name, mission_text, focus_areas, programs, target_populations,
			service_regions, staff_size, annual_budget,
			preferred_amount_min, preferred_amount_max, capacity,
			custom_keywords, rejects_gov_funding, matching_funds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			updated_at = NOW(),
			name = EXCLUDED.name,
			mission_text = EXCLUDED.mission_text,
			focus_areas = EXCLUDED.focus_areas,
			programs = EXCLUDED.programs,
			target_populations = EXCLUDED.target_populations,
			service_regions = EXCLUDED.service_regions,
			staff_size = EXCLUDED.staff_size,
			annual_budget = EXCLUDED.annual_budget,
			preferred_amount_min = EXCLUDED.preferred_amount_min,
			preferred_amount_max = EXCLUDED.preferred_amount_max,
			capacity = EXCLUDED.capacity,
			custom_keywords = EXCLUDED.custom_keywords,
			rejects_gov_funding = EXCLUDED.rejects_gov_funding,
			matching_funds = EXCLUDED.matching_funds
	`, p.ID, p.Name, p.MissionText, p.FocusAreas, p.Programs, p.TargetPopulations,
		p.ServiceRegions, p.StaffSize, p.AnnualBudget,
		p.PreferredAmountMin, p.PreferredAmountMax, string(p.Capacity),
		p.CustomKeywords, p.RejectsGovFunding, p.MatchingFunds)
	if err != nil {
		return uuid.Nil, fmt.Errorf("saving profile %s: %w", p.Name, err)
	}
	return p.ID, nil
}
