package journey

import "time"

// IsUnlocked reports whether day is inside the unlocked prefix.
func IsUnlocked(day int, s State) bool {
	return day <= s.UnlockedThroughDay
}

// IsCurrent reports whether day is the most recently unlocked one. Nothing is current at 0.
func IsCurrent(day int, s State) bool {
	return s.UnlockedThroughDay > 0 && day == s.UnlockedThroughDay
}

func IsJourneyComplete(s State) bool {
	return s.UnlockedThroughDay >= TotalDays
}

// NextUnlockInstant returns local midnight of the calendar day after now. The boolean is false
// once the journey is complete and no countdown should be shown. The value is cosmetic: nothing
// unlocks automatically when it passes.
func NextUnlockInstant(s State, now time.Time) (time.Time, bool) {
	if IsJourneyComplete(s) {
		return time.Time{}, false
	}
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()), true
}

// Progress is the unlocked share of the journey in percent.
func Progress(s State) float64 {
	u := s.UnlockedThroughDay
	if u < 0 {
		u = 0
	}
	if u > TotalDays {
		u = TotalDays
	}
	return float64(u) / float64(TotalDays) * 100
}

// Card is a greeting together with the facts the renderer needs to draw it.
type Card struct {
	Greeting
	Unlocked bool `json:"unlocked"`
	Current  bool `json:"current"`
}

// Cards keeps the stored order of the greetings; it does not re-sort.
func Cards(s State) []Card {
	cards := make([]Card, 0, len(s.Greetings))
	for _, g := range s.Greetings {
		cards = append(cards, Card{
			Greeting: g.clone(),
			Unlocked: IsUnlocked(g.Day, s),
			Current:  IsCurrent(g.Day, s),
		})
	}
	return cards
}
