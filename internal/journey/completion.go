package journey

import "go.uber.org/atomic"

// CompletionTrigger fires once when the journey goes from incomplete to complete. Dropping back
// below TotalDays re-arms it.
type CompletionTrigger struct {
	fired atomic.Bool
}

func (t *CompletionTrigger) Observe(s State) bool {
	if !IsJourneyComplete(s) {
		t.fired.Store(false)
		return false
	}
	return t.fired.CompareAndSwap(false, true)
}
