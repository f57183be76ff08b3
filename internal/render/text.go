package render

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/aure/fpdash/internal/view"
)

const barWidth = 30

// Text writes the page for a terminal.
func Text(w io.Writer, page view.Page) error {
	var b strings.Builder

	b.WriteString("\n  " + page.Title + "\n")
	b.WriteString("  " + strings.Repeat("═", 50) + "\n")

	for _, card := range page.Cards {
		b.WriteString("\n  " + card.Title + "\n")
		b.WriteString("  " + strings.Repeat("─", 50) + "\n")
		if err := writeTextBody(&b, card); err != nil {
			return err
		}
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeTextBody(b *strings.Builder, card view.Card) error {
	switch body := card.Body.(type) {
	case view.Spinner:
		b.WriteString("  Loading…\n")
	case view.Callout:
		b.WriteString("  ⓘ " + body.Text + "\n")
	case view.Fallback:
		b.WriteString("  ✗ " + body.Message + "\n")
	case view.Table:
		writeTextTable(b, body)
	case view.LineChart:
		writeTextChart(b, body)
	default:
		return fmt.Errorf("card %s: unsupported node %T", card.ID, card.Body)
	}
	return nil
}

func writeTextTable(b *strings.Builder, t view.Table) {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = utf8.RuneCountInString(c)
	}
	for _, row := range t.Rows {
		for i, cell := range row.Cells {
			if i < len(widths) && utf8.RuneCountInString(cell) > widths[i] {
				widths[i] = utf8.RuneCountInString(cell)
			}
		}
	}

	writeTextRow(b, t.Columns, widths)
	for _, row := range t.Rows {
		writeTextRow(b, row.Cells, widths)
	}
	if len(t.Rows) == 0 {
		b.WriteString("  (no fingerprints)\n")
	}
}

func writeTextRow(b *strings.Builder, cells []string, widths []int) {
	b.WriteString(" ")
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		pad := widths[i] - utf8.RuneCountInString(cell)
		b.WriteString(" " + cell + strings.Repeat(" ", pad) + " ")
	}
	b.WriteString("\n")
}

func writeTextChart(b *strings.Builder, lc view.LineChart) {
	if len(lc.Points) == 0 {
		b.WriteString("  (no data)\n")
		return
	}

	maxCount := 0
	labelWidth := 0
	for _, p := range lc.Points {
		if p.Value > maxCount {
			maxCount = p.Value
		}
		if n := utf8.RuneCountInString(p.Label); n > labelWidth {
			labelWidth = n
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, p := range lc.Points {
		barLen := int(float64(p.Value) / float64(maxCount) * float64(barWidth))
		bar := strings.Repeat("█", barLen) + strings.Repeat("░", barWidth-barLen)
		pad := strings.Repeat(" ", labelWidth-utf8.RuneCountInString(p.Label))
		fmt.Fprintf(b, "  %s%s │%s│ %d\n", p.Label, pad, bar, p.Value)
	}
}
