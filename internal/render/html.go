package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/aure/fpdash/internal/view"
)

//go:embed templates/*.html
var templateFiles embed.FS

var templates = template.Must(template.New("").ParseFS(templateFiles, "templates/*.html"))

type pageData struct {
	Title string
	Cards []cardData
}

type cardData struct {
	ID      string
	Title   string
	Kind    string
	Text    string
	Table   view.Table
	SVG     template.HTML
	Settled bool
}

// HTMLPage writes the full dashboard document.
func HTMLPage(w io.Writer, page view.Page) error {
	data := pageData{Title: page.Title, Cards: make([]cardData, len(page.Cards))}
	for i, c := range page.Cards {
		cd, err := newCardData(c)
		if err != nil {
			return err
		}
		data.Cards[i] = cd
	}
	return templates.ExecuteTemplate(w, "layout.html", data)
}

// HTMLCard writes one card, the unit htmx swaps in place.
func HTMLCard(w io.Writer, card view.Card) error {
	cd, err := newCardData(card)
	if err != nil {
		return err
	}
	return templates.ExecuteTemplate(w, "card", cd)
}

func newCardData(c view.Card) (cardData, error) {
	cd := cardData{ID: c.ID, Title: c.Title}

	switch body := c.Body.(type) {
	case view.Spinner:
		cd.Kind = "spinner"
	case view.Callout:
		cd.Kind = "callout"
		cd.Text = body.Text
		cd.Settled = true
	case view.Fallback:
		cd.Kind = "fallback"
		cd.Text = body.Message
	case view.Table:
		cd.Kind = "table"
		cd.Table = body
		cd.Settled = true
	case view.LineChart:
		cd.Kind = "chart"
		cd.SVG = ChartSVG(body)
		cd.Settled = true
	default:
		return cardData{}, fmt.Errorf("card %s: unsupported node %T", c.ID, c.Body)
	}
	return cd, nil
}
