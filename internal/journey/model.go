// Package journey holds the gift journey state, the unlock policy derived from it and the
// editing session used by operators to change it.
package journey

import (
	"errors"
	"fmt"
	"strings"
)

// TotalDays is the number of greeting cards in the journey.
const TotalDays = 4

// Greeting is one day's card. Day identifies the record and never changes after seeding.
type Greeting struct {
	Day               int      `json:"day"`
	Emoji             string   `json:"emoji"`
	Title             string   `json:"title"`
	GreetingLine      string   `json:"greeting"`
	BodyMessage       string   `json:"message"`
	DecorativeSymbols []string `json:"decorativeEmojis"`
}

// DecorativeSymbol returns the symbol for position i, cycling through the list.
func (g Greeting) DecorativeSymbol(i int) string {
	if len(g.DecorativeSymbols) == 0 {
		return ""
	}
	if i < 0 {
		i = -i
	}
	return g.DecorativeSymbols[i%len(g.DecorativeSymbols)]
}

func (g Greeting) clone() Greeting {
	out := g
	if g.DecorativeSymbols != nil {
		out.DecorativeSymbols = append([]string(nil), g.DecorativeSymbols...)
	}
	return out
}

// State is the whole journey: the greetings ordered by day and the unlock frontier.
// Day d is unlocked iff d <= UnlockedThroughDay.
type State struct {
	Greetings          []Greeting `json:"greetings"`
	UnlockedThroughDay int        `json:"unlockedDays"`
}

// Clone returns a deep copy so drafts never alias the live state.
func (s State) Clone() State {
	out := State{UnlockedThroughDay: s.UnlockedThroughDay}
	if s.Greetings != nil {
		out.Greetings = make([]Greeting, len(s.Greetings))
		for i, g := range s.Greetings {
			out.Greetings[i] = g.clone()
		}
	}
	return out
}

// Greeting looks up the record for day.
func (s State) Greeting(day int) (Greeting, bool) {
	for _, g := range s.Greetings {
		if g.Day == day {
			return g.clone(), true
		}
	}
	return Greeting{}, false
}

// Field names an editable text field of a Greeting.
type Field string

const (
	FieldEmoji    Field = "emoji"
	FieldTitle    Field = "title"
	FieldGreeting Field = "greeting"
	FieldMessage  Field = "message"
)

var ErrUnknownField = errors.New("unknown greeting field")

// ParseField accepts the wire names and a couple of aliases used by older clients.
func ParseField(name string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "emoji":
		return FieldEmoji, nil
	case "title":
		return FieldTitle, nil
	case "greeting", "greetingline":
		return FieldGreeting, nil
	case "message", "bodymessage":
		return FieldMessage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
}

func (g *Greeting) set(field Field, value string) {
	switch field {
	case FieldEmoji:
		g.Emoji = value
	case FieldTitle:
		g.Title = value
	case FieldGreeting:
		g.GreetingLine = value
	case FieldMessage:
		g.BodyMessage = value
	}
}

// DefaultState is the compiled-in journey used until an operator saves for the first time.
func DefaultState() State {
	return State{Greetings: DefaultGreetings(), UnlockedThroughDay: 1}
}

// DefaultGreetings returns a fresh copy of the four preset cards.
func DefaultGreetings() []Greeting {
	return []Greeting{
		{
			Day:          1,
			Emoji:        "💛",
			Title:        "Day 1",
			GreetingLine: "Good morning, sunshine!",
			BodyMessage: "Today starts with something small but meaningful. I hope this brings a smile to your " +
				"face and warmth to your day. You deserve all the good things.",
			DecorativeSymbols: []string{"🌸", "✨", "☁️", "🌷", "⭐", "💫", "🌼", "🎀"},
		},
		{
			Day:          2,
			Emoji:        "💗",
			Title:        "Day 2",
			GreetingLine: "Hello again, friend!",
			BodyMessage: "Another day, another little surprise. This one's to remind you that someone's thinking " +
				"of you, even in the quiet moments. Keep being wonderful.",
			DecorativeSymbols: []string{"🌈", "🦋", "💐", "🌺", "✨", "🎈", "🌙", "⭐"},
		},
		{
			Day:          3,
			Emoji:        "🌟",
			Title:        "Day 3",
			GreetingLine: "You're doing great!",
			BodyMessage: "Three days in, and here we are. This little gift is for all the times you've been " +
				"strong, kind, and yourself. Thank you for simply being you.",
			DecorativeSymbols: []string{"🌻", "☀️", "🍃", "🌿", "✨", "🎀", "💫", "🌸"},
		},
		{
			Day:          4,
			Emoji:        "🎉",
			Title:        "Day 4",
			GreetingLine: "We made it to the final day!",
			BodyMessage: "This is the last piece of this small journey. Every gift was chosen with care, just " +
				"for you. I hope these days brought you a bit of joy. You're appreciated more than you know.",
			DecorativeSymbols: []string{"🎊", "✨", "🎁", "💝", "🌟", "🎈", "🫶", "😊", "💛"},
		},
	}
}
