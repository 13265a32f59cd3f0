package discover

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/browser"
)

// conventionalSearchSelectors are tried when the vision locator is
// unavailable or not confident enough. Order matters: most specific first.
var conventionalSearchSelectors = []string{
	`input[type="search"]`,
	`input[name="q"]`,
	`input[name="query"]`,
	`input[name="search"]`,
	`input[name="keyword"]`,
	`#search`,
	`input[placeholder*="earch"]`,
}

// elementAnswer is the structured reply expected from the vision locator.
type elementAnswer struct {
	Found        bool    `json:"found"`
	SelectorType string  `json:"selector_type"`
	Selector     string  `json:"selector"`
	Confidence   float64 `json:"confidence"`
}

const locatorSystemPrompt = `You are a web automation assistant. You are shown a screenshot of a web page and a description of a UI element. Identify the element and answer with a CSS selector that would match it in the page's DOM. Respond ONLY with a JSON object:
{"found": true|false, "selector_type": "css", "selector": "string", "confidence": 0.0-1.0}
Set found=false if the element is not visible. Confidence reflects how certain you are the selector matches the described element.`

// locateSearchInput finds the page's search control. The vision path is
// preferred; answers at or below the confidence threshold are discarded and
// the conventional selector list is probed instead. Returns found=false only
// when every path fails — the caller skips the pass rather than blocking the
// run.
func (a *Agent) locateSearchInput(ctx context.Context) (browser.Locator, bool) {
	log := a.deps.Log.With(zap.String("source", a.src.ID))

	if loc, ok := a.locateByVision(ctx, "the search input field where keywords are typed"); ok {
		return loc, true
	}

	for _, sel := range conventionalSearchSelectors {
		loc := browser.Locator{Type: "css", Value: sel}
		// Probing with Fill of an empty string is destructive; a click is
		// enough to prove the element exists and is interactable.
		if err := a.deps.Session.Click(ctx, loc); err == nil {
			log.Debug("conventional selector matched", zap.String("selector", sel))
			return loc, true
		}
	}

	log.Warn("unable to locate search input, pass will be skipped")
	return browser.Locator{}, false
}

// locateByVision asks the reasoning model to find an element described in
// natural language on the current screenshot.
func (a *Agent) locateByVision(ctx context.Context, description string) (browser.Locator, bool) {
	reasoner := a.deps.Reasoner
	if reasoner == nil || !reasoner.SupportsVision() {
		return browser.Locator{}, false
	}
	log := a.deps.Log.With(zap.String("source", a.src.ID))

	shot, err := a.deps.Session.Screenshot(ctx)
	if err != nil {
		log.Warn("screenshot failed", zap.Error(err))
		return browser.Locator{}, false
	}

	raw, usage, err := reasoner.CompleteVision(ctx, ai.VisionRequest{
		Image:  shot,
		MIME:   "image/png",
		System: locatorSystemPrompt,
		Prompt: fmt.Sprintf("Locate: %s", description),
	})
	a.deps.Costs.Add(ai.RequestVision, usage, err != nil)
	if err != nil {
		log.Warn("vision locator call failed", zap.Error(err))
		return browser.Locator{}, false
	}

	answer, err := ai.Decode[elementAnswer](raw)
	if err != nil {
		log.Warn("vision locator returned unparsable answer", zap.Error(err))
		return browser.Locator{}, false
	}

	if !answer.Found || answer.Confidence <= locatorConfidence || answer.Selector == "" {
		log.Debug("vision locator not confident enough",
			zap.Float64("confidence", answer.Confidence),
			zap.Bool("found", answer.Found))
		return browser.Locator{}, false
	}

	selType := answer.SelectorType
	if selType == "" {
		selType = "css"
	}
	return browser.Locator{Type: selType, Value: answer.Selector}, true
}
