package discover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	rpdf "rsc.io/pdf"
)

// Opportunity guidelines often live in linked PDFs whose deadline never
// appears on the listing page. EnrichDeadlineFromPDF fetches the document and
// fills a missing deadline from the earliest upcoming date candidate.

var pdfDateRegexes = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/20\d{2}\b`),
	regexp.MustCompile(`\b20\d{2}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},?\s+20\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+20\d{2}\b`),
}

// ExtractPDFText pulls the raw text stream from a PDF document. The parser
// panics on some malformed files, so recover and report it as an error.
func ExtractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// DeadlineCandidatesFromText lists the distinct parseable dates found in
// text, earliest first.
func DeadlineCandidatesFromText(text string) []time.Time {
	seen := make(map[time.Time]bool)
	var candidates []time.Time
	for _, expr := range pdfDateRegexes {
		for _, token := range expr.FindAllString(text, -1) {
			if t, ok := parseDeadline(token); ok && !seen[t] {
				seen[t] = true
				candidates = append(candidates, t)
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
	return candidates
}

// EnrichDeadlineFromPDF fetches a guidelines PDF and returns the earliest
// future date it mentions. Returns false when nothing usable was found.
func EnrichDeadlineFromPDF(ctx context.Context, client *http.Client, pdfURL string) (time.Time, bool, error) {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return time.Time{}, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("pdf fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return time.Time{}, false, fmt.Errorf("pdf fetch returned %d", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("pdf read failed: %w", err)
	}
	text, err := ExtractPDFText(content)
	if err != nil {
		return time.Time{}, false, err
	}

	now := time.Now().UTC()
	for _, candidate := range DeadlineCandidatesFromText(text) {
		if candidate.After(now) {
			return candidate, true, nil
		}
	}
	return time.Time{}, false, nil
}
