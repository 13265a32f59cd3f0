package ai

import (
	"sync"
	"testing"
)

func TestCostTrackerConcurrentAdds(t *testing.T) {
	tracker := NewCostTracker(DefaultRates)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Add(RequestText, Usage{InputTokens: 10, OutputTokens: 1}, false)
		}()
	}
	wg.Wait()

	snap := tracker.Snapshot()
	if snap.TextCalls != 50 || snap.InputTokens != 500 {
		t.Errorf("got %d calls, %d input tokens; want 50, 500", snap.TextCalls, snap.InputTokens)
	}
}
