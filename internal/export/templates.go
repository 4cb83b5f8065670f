package export

import (
	"bytes"
	"embed"
	"html/template"

	"journey/api/internal/journey"
)

//go:embed templates/*.html
var templateFS embed.FS

var cardTemplate = template.Must(template.ParseFS(templateFS, "templates/card.html"))

// decorationSlots places decorative symbols around the card edge, cycling through the
// greeting's list.
var decorationSlots = [][2]int{
	{6, 5}, {8, 88}, {45, 3}, {48, 92}, {82, 8}, {84, 86}, {4, 46}, {88, 48},
}

type Decoration struct {
	Symbol string
	Top    int
	Left   int
}

type CardData struct {
	Day         int
	Emoji       string
	Title       string
	Greeting    string
	Message     string
	Decorations []Decoration
}

func NewCardData(g journey.Greeting) CardData {
	data := CardData{
		Day:      g.Day,
		Emoji:    g.Emoji,
		Title:    g.Title,
		Greeting: g.GreetingLine,
		Message:  g.BodyMessage,
	}
	if len(g.DecorativeSymbols) > 0 {
		for i, slot := range decorationSlots {
			data.Decorations = append(data.Decorations, Decoration{Symbol: g.DecorativeSymbol(i), Top: slot[0], Left: slot[1]})
		}
	}
	return data
}

func RenderCardHTML(data CardData) (string, error) {
	var buf bytes.Buffer
	if err := cardTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
