package journey

import (
	"context"
	"fmt"
	"time"
)

// UnlockingLabel is shown once the countdown target has passed.
const UnlockingLabel = "Unlocking..."

// FormatCountdown renders the time left until target as "3h 4m 5s".
func FormatCountdown(target, now time.Time) string {
	diff := target.Sub(now)
	if diff <= 0 {
		return UnlockingLabel
	}
	hours := int(diff / time.Hour)
	minutes := int(diff%time.Hour) / int(time.Minute)
	seconds := int(diff%time.Minute) / int(time.Second)
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// Tick is one countdown frame.
type Tick struct {
	At          time.Time `json:"at"`
	Target      time.Time `json:"target"`
	RemainingMs int64     `json:"remainingMs"`
	Label       string    `json:"label"`
}

// Countdown is a periodic task that emits a Tick every interval while the journey is not
// complete. The target is recomputed only when the unlock frontier changes, so after midnight the
// label stays on UnlockingLabel until an operator advances the journey.
type Countdown struct {
	interval time.Duration
	state    func() State
	now      func() time.Time
}

func NewCountdown(state func() State) *Countdown {
	return &Countdown{interval: time.Second, state: state, now: time.Now}
}

// Run blocks until ctx is cancelled or the journey completes. It returns ctx.Err() on
// cancellation and nil on completion.
func (c *Countdown) Run(ctx context.Context, emit func(Tick)) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	lastUnlocked := -1
	var target time.Time
	for {
		s := c.state()
		now := c.now()
		if s.UnlockedThroughDay != lastUnlocked {
			next, ok := NextUnlockInstant(s, now)
			if !ok {
				return nil
			}
			target = next
			lastUnlocked = s.UnlockedThroughDay
		} else if IsJourneyComplete(s) {
			return nil
		}

		remaining := target.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		emit(Tick{
			At:          now,
			Target:      target,
			RemainingMs: remaining.Milliseconds(),
			Label:       FormatCountdown(target, now),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
