package discover

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/models"
)

// candidate is one entry from the extraction model's JSON array, before shape
// validation and normalization.
type candidate struct {
	SourceID        string  `json:"source_id"`
	Title           string  `json:"title"`
	Funder          string  `json:"funder"`
	FunderType      string  `json:"funder_type"`
	AmountMin       float64 `json:"amount_min"`
	AmountMax       float64 `json:"amount_max"`
	Currency        string  `json:"currency"`
	Deadline        string  `json:"deadline"`
	Description     string  `json:"description"`
	Eligibility     string  `json:"eligibility"`
	ApplicationURL  string  `json:"application_url"`
	GeographicFocus string  `json:"geographic_focus"`
	ContactName     string  `json:"contact_name"`
	ContactEmail    string  `json:"contact_email"`
	Confidence      float64 `json:"confidence"`
}

const extractionSystemPrompt = `You are an expert grant analyst. You are shown a funding-opportunity search results page. Extract every distinct funding opportunity visible. Respond ONLY with a JSON array; use null for unknown fields:
[{
  "source_id": "the opportunity's identifier on this site, or its detail-page URL",
  "title": "string",
  "funder": "string",
  "funder_type": "Government|Foundation|Corporate|Multilateral",
  "amount_min": number or null,
  "amount_max": number or null,
  "currency": "3-letter ISO code",
  "deadline": "YYYY-MM-DD or the literal text shown",
  "description": "string",
  "eligibility": "string",
  "application_url": "string",
  "geographic_focus": "string",
  "contact_name": "string",
  "contact_email": "string",
  "confidence": 0.0-1.0
}]
Amounts are in whole currency units as displayed. Confidence reflects how completely and unambiguously the entry was readable. Return [] if no opportunities are visible.`

// extractRecords pulls candidate entries from the current results view.
// Fallback chain per the error policy: vision screenshot -> page text ->
// empty result. Malformed model output never propagates as an error.
func (a *Agent) extractRecords(ctx context.Context, keyword string, daysBack int) []candidate {
	log := a.deps.Log.With(zap.String("source", a.src.ID), zap.String("keyword", keyword))

	prompt := fmt.Sprintf(
		"Extract funding opportunities relevant to %q. Where the page shows publication dates, only include entries from the last %d days.",
		keyword, daysBack)

	if cands, ok := a.extractByVision(ctx, prompt); ok {
		return cands
	}
	if cands, ok := a.extractByText(ctx, prompt); ok {
		return cands
	}

	log.Warn("all extraction paths failed, returning empty result")
	return nil
}

func (a *Agent) extractByVision(ctx context.Context, prompt string) ([]candidate, bool) {
	reasoner := a.deps.Reasoner
	if reasoner == nil || !reasoner.SupportsVision() {
		return nil, false
	}
	log := a.deps.Log.With(zap.String("source", a.src.ID))

	shot, err := a.deps.Session.Screenshot(ctx)
	if err != nil {
		log.Warn("screenshot failed", zap.Error(err))
		return nil, false
	}

	raw, usage, err := reasoner.CompleteVision(ctx, ai.VisionRequest{
		Image:  shot,
		MIME:   "image/png",
		System: extractionSystemPrompt,
		Prompt: prompt,
	})
	a.deps.Costs.Add(ai.RequestVision, usage, err != nil)
	if err != nil {
		log.Warn("vision extraction failed", zap.Error(err))
		return nil, false
	}

	cands, err := ai.Decode[[]candidate](raw)
	if err != nil {
		log.Warn("vision extraction returned unparsable output", zap.Error(err))
		return nil, false
	}
	return cands, true
}

func (a *Agent) extractByText(ctx context.Context, prompt string) ([]candidate, bool) {
	reasoner := a.deps.Reasoner
	if reasoner == nil {
		return nil, false
	}
	log := a.deps.Log.With(zap.String("source", a.src.ID))

	text, err := a.deps.Session.PageText(ctx)
	if err != nil {
		log.Warn("page text failed", zap.Error(err))
		return nil, false
	}
	if len(text) > 16000 {
		text = text[:16000]
	}

	raw, usage, err := reasoner.CompleteText(ctx, ai.TextRequest{
		System:   extractionSystemPrompt,
		Prompt:   prompt + "\n\nPage text:\n" + text,
		JSONMode: true,
	})
	a.deps.Costs.Add(ai.RequestText, usage, err != nil)
	if err != nil {
		log.Warn("text extraction failed", zap.Error(err))
		return nil, false
	}

	cands, err := ai.Decode[[]candidate](raw)
	if err != nil {
		log.Warn("text extraction returned unparsable output", zap.Error(err))
		return nil, false
	}
	return cands, true
}

// toRecord validates a candidate's minimal shape (a title and a source
// identifier) and normalizes it into a Record. Entries failing validation are
// discarded, not errored.
func (a *Agent) toRecord(c candidate) (models.Record, bool) {
	title := strings.TrimSpace(c.Title)
	sourceID := strings.TrimSpace(c.SourceID)
	if sourceID == "" {
		// A stable detail-page URL is an acceptable identifier.
		sourceID = strings.TrimSpace(c.ApplicationURL)
	}
	if title == "" || sourceID == "" {
		return models.Record{}, false
	}

	confidence := c.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.5
	}

	rec := models.Record{
		SourceDomain:         a.src.Domain,
		SourceID:             sourceID,
		Title:                title,
		Funder:               strings.TrimSpace(c.Funder),
		FunderType:           strings.TrimSpace(c.FunderType),
		AmountMin:            toMinorUnits(c.AmountMin),
		AmountMax:            toMinorUnits(c.AmountMax),
		Currency:             normalizeCurrency(c.Currency),
		Description:          strings.TrimSpace(c.Description),
		EligibilityText:      strings.TrimSpace(c.Eligibility),
		ApplicationURL:       strings.TrimSpace(c.ApplicationURL),
		GeographicFocus:      strings.TrimSpace(c.GeographicFocus),
		ContactName:          strings.TrimSpace(c.ContactName),
		ContactEmail:         strings.TrimSpace(c.ContactEmail),
		ExtractionConfidence: confidence,
		DeadlineRaw:          strings.TrimSpace(c.Deadline),
	}

	if dt, ok := parseDeadline(c.Deadline); ok {
		rec.Deadline = &dt
	}

	if rec.AmountMin == nil && rec.AmountMax == nil {
		// Models often leave the amount fields null while the figure
		// sits in the prose.
		minAmt, maxAmt := parseAmountText(rec.Description + " " + rec.EligibilityText)
		rec.AmountMin = toMinorUnits(minAmt)
		rec.AmountMax = toMinorUnits(maxAmt)
	}

	return rec, true
}
