package ai

import "sync"

// RequestKind tags a reasoning-model call in the cost ledger.
type RequestKind string

const (
	RequestVision RequestKind = "vision"
	RequestText   RequestKind = "text"
)

// Rates are USD per million tokens. Vision input is priced higher because
// screenshots tokenize heavily.
type Rates struct {
	TextInput    float64
	TextOutput   float64
	VisionInput  float64
	VisionOutput float64
}

// DefaultRates approximate current flash-tier pricing.
var DefaultRates = Rates{
	TextInput:    0.10,
	TextOutput:   0.40,
	VisionInput:  0.10,
	VisionOutput: 0.40,
}

// CostTracker accumulates token usage per reasoning-model call and converts
// it to an estimated monetary cost. Counters are purely additive and reset
// only per discovery run. Safe for concurrent use.
type CostTracker struct {
	mu    sync.Mutex
	rates Rates

	textCalls   int
	visionCalls int
	textUsage   Usage
	visionUsage Usage
	failedCalls int
}

func NewCostTracker(rates Rates) *CostTracker {
	if rates == (Rates{}) {
		rates = DefaultRates
	}
	return &CostTracker{rates: rates}
}

// Add records one call's usage. Failed calls are recorded too: tokens may
// have been billed before the failure.
func (t *CostTracker) Add(kind RequestKind, u Usage, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch kind {
	case RequestVision:
		t.visionCalls++
		t.visionUsage.InputTokens += u.InputTokens
		t.visionUsage.OutputTokens += u.OutputTokens
	default:
		t.textCalls++
		t.textUsage.InputTokens += u.InputTokens
		t.textUsage.OutputTokens += u.OutputTokens
	}
	if failed {
		t.failedCalls++
	}
}

// Snapshot is a point-in-time view of the ledger.
type CostSnapshot struct {
	TextCalls    int     `json:"text_calls"`
	VisionCalls  int     `json:"vision_calls"`
	FailedCalls  int     `json:"failed_calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	EstimatedUSD float64 `json:"estimated_usd"`
}

func (t *CostTracker) Snapshot() CostSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	perMillion := func(tokens int, rate float64) float64 {
		return float64(tokens) / 1_000_000 * rate
	}

	cost := perMillion(t.textUsage.InputTokens, t.rates.TextInput) +
		perMillion(t.textUsage.OutputTokens, t.rates.TextOutput) +
		perMillion(t.visionUsage.InputTokens, t.rates.VisionInput) +
		perMillion(t.visionUsage.OutputTokens, t.rates.VisionOutput)

	return CostSnapshot{
		TextCalls:    t.textCalls,
		VisionCalls:  t.visionCalls,
		FailedCalls:  t.failedCalls,
		InputTokens:  t.textUsage.InputTokens + t.visionUsage.InputTokens,
		OutputTokens: t.textUsage.OutputTokens + t.visionUsage.OutputTokens,
		EstimatedUSD: cost,
	}
}

// Reset zeroes all counters. Called at the start of each discovery run.
func (t *CostTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.textCalls = 0
	t.visionCalls = 0
	t.failedCalls = 0
	t.textUsage = Usage{}
	t.visionUsage = Usage{}
}
