package discover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/david/fundscout/internal/models"
)

// GrantsGovClient pulls opportunities from the Grants.gov search2 API.
// API-first sources skip the browser agent entirely; the agent remains the
// fallback when the API misbehaves.
type GrantsGovClient struct {
	HTTPClient *http.Client
	BaseURL    string
	DetailURL  string
	Log        *zap.Logger
}

func NewGrantsGovClient(log *zap.Logger) *GrantsGovClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &GrantsGovClient{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		BaseURL:    "https://api.grants.gov/v1/api/search2",
		DetailURL:  "https://api.grants.gov/v1/api/fetchOpportunity",
		Log:        log,
	}
}

type grantsGovSearchRequest struct {
	Keyword        string `json:"keyword"`
	OppStatuses    string `json:"oppStatuses"`
	SortBy         string `json:"sortBy"`
	Rows           int    `json:"rows"`
	StartRecordNum int    `json:"startRecordNum"`
}

type grantsGovResponse struct {
	Data struct {
		HitCount int `json:"hitCount"`
		OppHits  []struct {
			ID        string   `json:"id"`
			Number    string   `json:"number"`
			Title     string   `json:"title"`
			Agency    string   `json:"agency"`
			OpenDate  string   `json:"openDate"`
			CloseDate string   `json:"closeDate"`
			OppStatus string   `json:"oppStatus"`
			CFDAList  []string `json:"cfdaList"`
		} `json:"oppHits"`
	} `json:"data"`
	ErrorCode int    `json:"errorcode"`
	Msg       string `json:"msg"`
}

// Search fetches up to maxRecords posted opportunities for a keyword.
// Structured API records carry full extraction confidence.
func (c *GrantsGovClient) Search(ctx context.Context, keyword string, daysBack, maxRecords int) ([]models.Record, error) {
	body, err := json.Marshal(grantsGovSearchRequest{
		Keyword:        keyword,
		OppStatuses:    "posted",
		SortBy:         "openDate|desc",
		Rows:           maxRecords,
		StartRecordNum: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, string(raw))
	}

	var apiResp grantsGovResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	if apiResp.ErrorCode != 0 {
		return nil, fmt.Errorf("search API error: %s", apiResp.Msg)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	now := time.Now().UTC()

	var records []models.Record
	for _, hit := range apiResp.Data.OppHits {
		if hit.Title == "" || hit.ID == "" {
			continue
		}

		rec := models.Record{
			SourceDomain:         "grants.gov",
			SourceID:             hit.ID,
			Title:                hit.Title,
			Funder:               hit.Agency,
			FunderType:           "Government",
			Currency:             "USD",
			ApplicationURL:       "https://www.grants.gov/search-results-detail/" + hit.ID,
			GeographicFocus:      "United States",
			Description:          fmt.Sprintf("Federal grant from %s. CFDA: %s", hit.Agency, strings.Join(hit.CFDAList, ", ")),
			ExtractionConfidence: 1.0,
		}

		if hit.OpenDate != "" && daysBack > 0 {
			if t, err := time.Parse("01/02/2006", hit.OpenDate); err == nil && t.Before(cutoff) {
				continue
			}
		}
		if hit.CloseDate != "" {
			rec.DeadlineRaw = hit.CloseDate
			if t, err := time.Parse("01/02/2006", hit.CloseDate); err == nil {
				deadline := toEndOfDay(t)
				if deadline.Before(now) {
					continue
				}
				rec.Deadline = &deadline
			}
		}

		c.enrich(ctx, &rec)
		records = append(records, rec)
		if maxRecords > 0 && len(records) >= maxRecords {
			break
		}
	}

	c.Log.Info("grants.gov search complete",
		zap.String("keyword", keyword),
		zap.Int("hits", apiResp.Data.HitCount),
		zap.Int("kept", len(records)))
	return records, nil
}

// enrich adds synopsis detail for one opportunity. Detail failures are
// logged and skipped; the search result alone is still a valid record.
func (c *GrantsGovClient) enrich(ctx context.Context, rec *models.Record) {
	body, _ := json.Marshal(map[string]string{"id": rec.SourceID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.DetailURL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Log.Debug("detail fetch failed", zap.String("id", rec.SourceID), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	var detail map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return
	}
	syn, ok := detail["synopsis"].(map[string]any)
	if !ok {
		return
	}
	if desc, ok := syn["synopsisDesc"].(string); ok && desc != "" {
		rec.Description = desc
	}
	if elig, ok := syn["applicantEligibilityDesc"].(string); ok && elig != "" {
		rec.EligibilityText = elig
	}
	if ceiling := dollarField(syn, "awardCeiling"); ceiling != nil {
		rec.AmountMax = ceiling
	}
	if floor := dollarField(syn, "awardFloor"); floor != nil {
		rec.AmountMin = floor
	}
}

// dollarField parses synopsis amount fields, which arrive as display strings
// like "$250,000".
func dollarField(syn map[string]any, key string) *int64 {
	s, ok := syn[key].(string)
	if !ok || s == "" {
		return nil
	}
	clean := strings.ReplaceAll(strings.ReplaceAll(s, "$", ""), ",", "")
	val, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil
	}
	return toMinorUnits(val)
}
