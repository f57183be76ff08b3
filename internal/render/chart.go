package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/aure/fpdash/internal/view"
)

const maxAxisLabels = 6

// ChartSVG renders a line chart as inline SVG. go-chart needs at least two
// points to build an axis range, so smaller series, and any chart error, get
// a plain frame instead.
func ChartSVG(lc view.LineChart) template.HTML {
	if len(lc.Points) >= 2 {
		svg, err := lineChartSVG(lc)
		if err == nil {
			return template.HTML(svg)
		}
	}
	return template.HTML(frameSVG(lc))
}

func lineChartSVG(lc view.LineChart) (string, error) {
	n := len(lc.Points)
	xs := make([]float64, n)
	ys := make([]float64, n)
	maxY := 1.0
	for i, p := range lc.Points {
		xs[i] = float64(i)
		ys[i] = float64(p.Value)
		if ys[i] > maxY {
			maxY = ys[i]
		}
	}

	step := labelStep(n)
	var ticks []chart.Tick
	for i, p := range lc.Points {
		if i%step == 0 || i == n-1 {
			ticks = append(ticks, chart.Tick{Value: float64(i), Label: sanitizeLabel(p.Label)})
		}
	}

	graph := chart.Chart{
		Width:  lc.Width,
		Height: lc.Height,
		XAxis:  chart.XAxis{Ticks: ticks},
		YAxis:  chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: maxY}},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "count",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex(strings.TrimPrefix(lc.Stroke, "#")),
					StrokeWidth: 2,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return "", fmt.Errorf("rendering chart: %w", err)
	}
	return buf.String(), nil
}

func frameSVG(lc view.LineChart) string {
	width := float64(lc.Width)
	height := float64(lc.Height)
	padding := 40.0
	chartWidth := width - 2*padding
	chartHeight := height - 2*padding

	var svg strings.Builder
	svg.WriteString(fmt.Sprintf(`<svg viewBox="0 0 %.0f %.0f" width="%.0f" height="%.0f" xmlns="http://www.w3.org/2000/svg">`, width, height, width, height))
	svg.WriteString(fmt.Sprintf(`<line x1="%.0f" y1="%.0f" x2="%.0f" y2="%.0f" stroke="#2f3336" stroke-width="1"/>`, padding, padding, padding, height-padding))
	svg.WriteString(fmt.Sprintf(`<line x1="%.0f" y1="%.0f" x2="%.0f" y2="%.0f" stroke="#2f3336" stroke-width="1"/>`, padding, height-padding, width-padding, height-padding))

	if len(lc.Points) == 1 {
		p := lc.Points[0]
		x := padding + chartWidth/2
		y := padding
		if p.Value == 0 {
			y = padding + chartHeight
		}
		svg.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>`, x, y, template.HTMLEscapeString(lc.Stroke)))
		svg.WriteString(fmt.Sprintf(`<text x="%.0f" y="%.0f" fill="#71767b" font-size="10" text-anchor="middle">%s</text>`, x, height-padding+16, template.HTMLEscapeString(p.Label)))
		svg.WriteString(fmt.Sprintf(`<text x="%.0f" y="%.0f" fill="#71767b" font-size="10" text-anchor="end">%d</text>`, padding-6, y+4, p.Value))
	}

	svg.WriteString(`</svg>`)
	return svg.String()
}

func labelStep(n int) int {
	step := n / maxAxisLabels
	if step < 1 {
		step = 1
	}
	return step
}

// sanitizeLabel drops markup characters; go-chart writes tick labels into the
// SVG as is.
func sanitizeLabel(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '&', '"', '\'':
			return -1
		}
		return r
	}, s)
}
