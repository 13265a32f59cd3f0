package discover

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/david/fundscout/internal/ai"
	"github.com/david/fundscout/internal/browser"
)

// fakeSession records interactions; errors are injectable per method.
type fakeSession struct {
	startErr    error
	navigateErr error
	clickErr    error
	pageText    string
	screenshot  []byte

	filled    []browser.Locator
	clicked   []browser.Locator
	submitted int
	stopped   bool
}

func (f *fakeSession) Start(context.Context) error { return f.startErr }

func (f *fakeSession) Navigate(context.Context, string) error { return f.navigateErr }

func (f *fakeSession) Screenshot(context.Context) ([]byte, error) {
	if f.screenshot == nil {
		return []byte("png"), nil
	}
	return f.screenshot, nil
}

func (f *fakeSession) PageText(context.Context) (string, error) { return f.pageText, nil }

func (f *fakeSession) Click(_ context.Context, loc browser.Locator) error {
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicked = append(f.clicked, loc)
	return nil
}

func (f *fakeSession) Fill(_ context.Context, loc browser.Locator, _ string) error {
	f.filled = append(f.filled, loc)
	return nil
}

func (f *fakeSession) SubmitActive(context.Context) error {
	f.submitted++
	return nil
}

func (f *fakeSession) Stop() error {
	f.stopped = true
	return nil
}

// fakeReasoner answers vision calls from a scripted queue.
type fakeReasoner struct {
	vision    bool
	responses []string
	errs      []error
	call      int
}

func (f *fakeReasoner) Name() string         { return "fake" }
func (f *fakeReasoner) SupportsVision() bool { return f.vision }

func (f *fakeReasoner) CompleteText(_ context.Context, _ ai.TextRequest) (string, ai.Usage, error) {
	return f.next()
}

func (f *fakeReasoner) CompleteVision(_ context.Context, _ ai.VisionRequest) (string, ai.Usage, error) {
	if !f.vision {
		return "", ai.Usage{}, ai.ErrVisionUnsupported
	}
	return f.next()
}

func (f *fakeReasoner) next() (string, ai.Usage, error) {
	i := f.call
	f.call++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	resp := ""
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, ai.Usage{InputTokens: 10, OutputTokens: 10}, err
}

func testSource() SourceConfig {
	return SourceConfig{
		ID:              "test_portal",
		Domain:          "portal.example.org",
		Strategy:        StrategyBrowser,
		SeedURL:         "https://portal.example.org/search",
		KeywordDelaySec: 1,
		Active:          true,
	}
}

const locatorOK = `{"found": true, "selector_type": "css", "selector": "#q", "confidence": 0.9}`

func extractionPayload(ids ...string) string {
	out := "["
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"source_id": %q, "title": "Grant %s", "confidence": 0.8}`, id, id)
	}
	return out + "]"
}

func TestAgentLowConfidenceLocatorDoesNotAct(t *testing.T) {
	// A locator answer at 0.3 confidence must be discarded; with the
	// conventional probes also failing, the pass is skipped without any
	// fill or submit against the wrong element.
	session := &fakeSession{clickErr: errors.New("no such element")}
	reasoner := &fakeReasoner{
		vision: true,
		responses: []string{
			`{"found": true, "selector_type": "css", "selector": "#maybe", "confidence": 0.3}`,
		},
	}
	agent := NewAgent(testSource(), Deps{Session: session, Reasoner: reasoner})

	records, failed, err := agent.Discover(context.Background(), []string{"workforce"}, 30, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
	if len(failed) != 1 || failed[0] != "workforce" {
		t.Errorf("failed passes = %v, want the keyword recorded", failed)
	}
	if len(session.filled) != 0 || session.submitted != 0 {
		t.Errorf("agent acted on a low-confidence locator: filled=%v submitted=%d",
			session.filled, session.submitted)
	}
	if agent.State() != StateCompleted {
		t.Errorf("state = %s, want completed despite the failed pass", agent.State())
	}
}

func TestAgentDeduplicatesAcrossKeywordPasses(t *testing.T) {
	session := &fakeSession{}
	reasoner := &fakeReasoner{
		vision: true,
		responses: []string{
			locatorOK, extractionPayload("g1", "g2"),
			locatorOK, extractionPayload("g2", "g3"),
		},
	}
	src := testSource()
	agent := NewAgent(src, Deps{Session: session, Reasoner: reasoner})

	records, failed, err := agent.Discover(context.Background(), []string{"jobs", "training"}, 30, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 0 {
		t.Fatalf("failed passes: %v", failed)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3 after dedup", len(records))
	}
	seen := map[string]bool{}
	for _, rec := range records {
		if seen[rec.SourceID] {
			t.Errorf("duplicate source_id %s", rec.SourceID)
		}
		seen[rec.SourceID] = true
		if rec.SourceDomain != src.Domain {
			t.Errorf("SourceDomain = %q, want %q", rec.SourceDomain, src.Domain)
		}
	}
	if !session.stopped {
		t.Error("browser session not stopped")
	}
}

func TestAgentFallsBackToTextExtraction(t *testing.T) {
	// Vision extraction returns prose instead of JSON; the text path then
	// answers with a valid array.
	session := &fakeSession{pageText: "Grants listing page"}
	reasoner := &fakeReasoner{
		vision: true,
		responses: []string{
			locatorOK,
			"Sorry, I cannot help with that.", // vision extraction: malformed
			extractionPayload("t1"),           // text extraction succeeds
		},
	}
	agent := NewAgent(testSource(), Deps{Session: session, Reasoner: reasoner})

	records, _, err := agent.Discover(context.Background(), []string{"jobs"}, 30, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].SourceID != "t1" {
		t.Fatalf("records = %+v, want the text-path record", records)
	}
}

func TestAgentFatalWhenBrowserWontStart(t *testing.T) {
	session := &fakeSession{startErr: browser.ErrBrowserUnavailable}
	agent := NewAgent(testSource(), Deps{Session: session})

	_, _, err := agent.Discover(context.Background(), []string{"jobs"}, 30, 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if agent.State() != StateFatalError {
		t.Errorf("state = %s, want fatal_error", agent.State())
	}
}

func TestAgentConventionalSelectorFallback(t *testing.T) {
	// No reasoner at all: the conventional probe list has to carry the pass.
	session := &fakeSession{}
	reasoner := &fakeReasoner{} // text-only, vision unsupported
	agent := NewAgent(testSource(), Deps{Session: session, Reasoner: reasoner})

	_, failed, err := agent.Discover(context.Background(), []string{"jobs"}, 30, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 0 {
		t.Fatalf("failed passes: %v", failed)
	}
	if len(session.filled) != 1 || session.submitted != 1 {
		t.Errorf("filled=%d submitted=%d, want 1/1", len(session.filled), session.submitted)
	}
	if len(session.clicked) == 0 {
		t.Error("conventional selectors were never probed")
	}
}

func TestStopBrowserPrecedesTerminalState(t *testing.T) {
	agent := NewAgent(testSource(), Deps{Session: &fakeSession{}})

	agent.state = StateExtracting
	agent.stopBrowser()
	if got := agent.State(); got != StateBrowserStopped {
		t.Errorf("state = %s, want browser_stopped after the session shuts down", got)
	}

	// Fatal runs keep their terminal state through shutdown.
	agent.state = StateFatalError
	agent.stopBrowser()
	if got := agent.State(); got != StateFatalError {
		t.Errorf("state = %s, want fatal_error preserved", got)
	}
}

func TestAgentSettlesCompletedAfterStop(t *testing.T) {
	session := &fakeSession{}
	agent := NewAgent(testSource(), Deps{Session: session, Reasoner: &fakeReasoner{}})

	if _, _, err := agent.Discover(context.Background(), []string{"jobs"}, 30, 10); err != nil {
		t.Fatal(err)
	}
	if !session.stopped {
		t.Error("session never stopped")
	}
	if agent.State() != StateCompleted {
		t.Errorf("state = %s, want completed", agent.State())
	}
}
