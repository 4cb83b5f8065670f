package journey

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownStopsOnCancel(t *testing.T) {
	now := time.Date(2026, 6, 1, 23, 59, 58, 0, time.UTC)
	c := NewCountdown(func() State { return stateWith(1) })
	c.interval = time.Millisecond
	c.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	var ticks []Tick
	err := c.Run(ctx, func(tk Tick) {
		ticks = append(ticks, tk)
		if len(ticks) == 3 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, ticks, 3)
	assert.Equal(t, "0h 0m 2s", ticks[0].Label)
	assert.Equal(t, int64(2000), ticks[0].RemainingMs)
}

func TestCountdownKeepsTargetUntilFrontierMoves(t *testing.T) {
	var mu sync.Mutex
	u := 1
	now := time.Date(2026, 6, 1, 23, 59, 59, 0, time.UTC)
	c := NewCountdown(func() State {
		mu.Lock()
		defer mu.Unlock()
		return stateWith(u)
	})
	c.interval = time.Millisecond
	c.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	var labels []string
	err := c.Run(context.Background(), func(tk Tick) {
		labels = append(labels, tk.Label)
		mu.Lock()
		defer mu.Unlock()
		switch len(labels) {
		case 1:
			now = now.Add(2 * time.Second)
		case 2:
			u = 2
		case 3:
			u = TotalDays
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0h 0m 1s", UnlockingLabel, "23h 59m 59s"}, labels)
}

func TestCountdownCompleteEmitsNothing(t *testing.T) {
	c := NewCountdown(func() State { return stateWith(TotalDays) })
	called := false
	require.NoError(t, c.Run(context.Background(), func(Tick) { called = true }))
	assert.False(t, called)
}

func TestCompletionTriggerIsEdgeTriggered(t *testing.T) {
	var trig CompletionTrigger
	assert.False(t, trig.Observe(stateWith(3)))
	assert.True(t, trig.Observe(stateWith(4)))
	assert.False(t, trig.Observe(stateWith(4)))
	assert.False(t, trig.Observe(stateWith(2)))
	assert.True(t, trig.Observe(stateWith(4)))
}
