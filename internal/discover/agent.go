package discover

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/browser"
	"github.com/david/fundscout/internal/models"
)

// locatorConfidence is the minimum confidence at which the agent acts on a
// vision-located element. Below it, conventional selectors are tried instead.
const locatorConfidence = 0.5

// Deps carries everything an agent needs. Reasoner may be nil: the agent then
// runs conventional selectors and the text extraction path only.
type Deps struct {
	Session  browser.Session
	Reasoner ai.Client
	Costs    *ai.CostTracker
	Log      *zap.Logger
}

// Agent turns a live web page into Records without hardcoded selectors.
// It reasons over rendered content (screenshots or extracted text), so markup
// changes between runs do not break extraction. One agent owns one exclusive
// browser session and processes its keywords sequentially.
type Agent struct {
	src        SourceConfig
	deps       Deps
	state      State
	delay      time.Duration
	maxRetries int
}

func NewAgent(src SourceConfig, deps Deps) *Agent {
	delay := time.Duration(src.KeywordDelaySec) * time.Second
	if delay <= 0 {
		delay = 3 * time.Second
	}
	retries := src.MaxRetries
	if retries <= 0 {
		retries = 2
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Costs == nil {
		deps.Costs = ai.NewCostTracker(ai.Rates{})
	}
	return &Agent{
		src:        src,
		deps:       deps,
		state:      StateIdle,
		delay:      delay,
		maxRetries: retries,
	}
}

// State reports the agent's current run state.
func (a *Agent) State() State { return a.state }

// stopBrowser shuts the session down and marks the run browser_stopped.
// A fatal run keeps its terminal state.
func (a *Agent) stopBrowser() {
	_ = a.deps.Session.Stop()
	if a.state != StateFatalError {
		a.state = StateBrowserStopped
	}
}

// Discover runs one keyword pass per entry, deduplicates by source_id across
// passes, and returns at most maxRecords records. A failed keyword pass is
// logged and skipped; only a browser that will not start is fatal.
func (a *Agent) Discover(ctx context.Context, keywords []string, daysBack, maxRecords int) ([]models.Record, []string, error) {
	log := a.deps.Log.With(zap.String("source", a.src.ID))

	if err := a.deps.Session.Start(ctx); err != nil {
		a.state = StateFatalError
		return nil, nil, fmt.Errorf("starting browser for %s: %w", a.src.ID, err)
	}
	a.state = StateBrowserStarted
	defer func() {
		a.stopBrowser()
		if a.state == StateBrowserStopped {
			a.state = StateCompleted
		}
	}()

	if maxRecords <= 0 {
		maxRecords = 50
	}

	var (
		records      []models.Record
		failedPasses []string
		seen         = map[string]bool{}
	)

	for i, keyword := range keywords {
		if len(records) >= maxRecords {
			break
		}
		if i > 0 {
			// Fixed delay between passes against the same source.
			select {
			case <-ctx.Done():
				return records, failedPasses, ctx.Err()
			case <-time.After(a.delay):
			}
		}

		a.state = StateSearching
		if err := a.runSearch(ctx, keyword); err != nil {
			log.Warn("keyword pass failed, skipping",
				zap.String("keyword", keyword), zap.Error(err))
			failedPasses = append(failedPasses, keyword)
			continue
		}

		a.state = StateExtracting
		candidates := a.extractRecords(ctx, keyword, daysBack)

		added := 0
		for _, cand := range candidates {
			rec, ok := a.toRecord(cand)
			if !ok {
				continue
			}
			if seen[rec.SourceID] {
				continue
			}
			seen[rec.SourceID] = true
			records = append(records, rec)
			added++
			if len(records) >= maxRecords {
				break
			}
		}
		log.Info("keyword pass done",
			zap.String("keyword", keyword),
			zap.Int("candidates", len(candidates)),
			zap.Int("added", added))

		a.state = StateIdle
	}

	return records, failedPasses, nil
}

// runSearch navigates to the seed page, locates the search control, and
// submits the keyword. Transient navigation errors are retried a bounded
// number of times; then the pass is reported failed.
func (a *Agent) runSearch(ctx context.Context, keyword string) error {
	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}
		if err := a.deps.Session.Navigate(ctx, a.src.SeedURL); err != nil {
			lastErr = err
			continue
		}

		loc, found := a.locateSearchInput(ctx)
		if !found {
			// Not a navigation problem; retrying will not help.
			return fmt.Errorf("search input not found on %s", a.src.SeedURL)
		}

		if err := a.deps.Session.Fill(ctx, loc, keyword); err != nil {
			lastErr = err
			continue
		}
		if err := a.deps.Session.SubmitActive(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", a.maxRetries+1, lastErr)
}
