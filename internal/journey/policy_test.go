package journey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateWith(u int) State {
	s := DefaultState()
	s.UnlockedThroughDay = u
	return s
}

func TestIsUnlockedGrid(t *testing.T) {
	for u := 0; u <= TotalDays; u++ {
		for d := 1; d <= TotalDays; d++ {
			s := stateWith(u)
			assert.Equalf(t, d <= u, IsUnlocked(d, s), "IsUnlocked(%d) with u=%d", d, u)
			assert.Equalf(t, d == u, IsCurrent(d, s), "IsCurrent(%d) with u=%d", d, u)
		}
	}
}

func TestIsCurrentNeverAtZero(t *testing.T) {
	s := stateWith(0)
	for d := 0; d <= TotalDays; d++ {
		assert.False(t, IsCurrent(d, s))
	}
}

func TestNextUnlockInstant(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)
	now := time.Date(2026, 3, 31, 22, 15, 0, 0, loc)

	next, ok := NextUnlockInstant(stateWith(2), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, loc), next)
	assert.Equal(t, "1h 45m 0s", FormatCountdown(next, now))

	_, ok = NextUnlockInstant(stateWith(TotalDays), now)
	assert.False(t, ok)
}

func TestFormatCountdown(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		target time.Time
		want   string
	}{
		{base.Add(3*time.Hour + 4*time.Minute + 5*time.Second + 900*time.Millisecond), "3h 4m 5s"},
		{base.Add(59 * time.Second), "0h 0m 59s"},
		{base, UnlockingLabel},
		{base.Add(-time.Minute), UnlockingLabel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatCountdown(tc.target, base))
	}
}

func TestProgress(t *testing.T) {
	assert.InDelta(t, 0.0, Progress(stateWith(0)), 0.0001)
	assert.InDelta(t, 25.0, Progress(stateWith(1)), 0.0001)
	assert.InDelta(t, 75.0, Progress(stateWith(3)), 0.0001)
	assert.InDelta(t, 100.0, Progress(stateWith(4)), 0.0001)
	assert.True(t, IsJourneyComplete(stateWith(4)))
	assert.False(t, IsJourneyComplete(stateWith(3)))
}

func TestCardsKeepStoredOrder(t *testing.T) {
	s := stateWith(2)
	s.Greetings[0], s.Greetings[1] = s.Greetings[1], s.Greetings[0]

	cards := Cards(s)
	require.Len(t, cards, TotalDays)
	assert.Equal(t, 2, cards[0].Day)
	assert.True(t, cards[0].Current)
	assert.True(t, cards[1].Unlocked)
	assert.False(t, cards[2].Unlocked)

	cards[0].DecorativeSymbols[0] = "x"
	assert.NotEqual(t, "x", s.Greetings[0].DecorativeSymbols[0])
}

func TestDecorativeSymbolCycles(t *testing.T) {
	g := Greeting{DecorativeSymbols: []string{"a", "b", "c"}}
	assert.Equal(t, "a", g.DecorativeSymbol(0))
	assert.Equal(t, "c", g.DecorativeSymbol(5))
	assert.Equal(t, "", Greeting{}.DecorativeSymbol(3))
}

func TestDefaultState(t *testing.T) {
	s := DefaultState()
	require.Len(t, s.Greetings, TotalDays)
	assert.Equal(t, 1, s.UnlockedThroughDay)
	for i, g := range s.Greetings {
		assert.Equal(t, i+1, g.Day)
		assert.NotEmpty(t, g.DecorativeSymbols)
	}
	s.Greetings[0].Title = "changed"
	assert.Equal(t, "Day 1", DefaultState().Greetings[0].Title)
}

func TestParseField(t *testing.T) {
	f, err := ParseField("Message")
	require.NoError(t, err)
	assert.Equal(t, FieldMessage, f)

	_, err = ParseField("day")
	assert.ErrorIs(t, err, ErrUnknownField)
}
