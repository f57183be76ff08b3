package view

import (
	"github.com/aure/fpdash/internal/models"
	"github.com/aure/fpdash/internal/query"
)

const (
	KeyFingerprintCount query.Key = "fingerprintCount"
	CountFailure                  = "An error occurred while fetching fingerprint count. Please try again."

	ChartWidth  = 600
	ChartHeight = 300
	ChartStroke = "#8884d8"
)

type ChartView struct {
	sub *query.Subscription[[]models.CountBucket]
}

func NewChartView(cache *query.Cache, src Source, onChange func()) (*ChartView, error) {
	sub, err := query.Subscribe(cache, KeyFingerprintCount, src.FetchFingerprintCount, onChange)
	if err != nil {
		return nil, err
	}
	return &ChartView{sub: sub}, nil
}

func (c *ChartView) Render() (Node, error) {
	return Decide(c.sub.State(), CountFailure, renderChart)
}

func (c *ChartView) Refetch() {
	c.sub.Refetch()
}

func (c *ChartView) Close() {
	c.sub.Close()
}

func renderChart(buckets []models.CountBucket) (Node, error) {
	points := make([]Point, len(buckets))
	for i, b := range buckets {
		points[i] = Point{Label: b.Timestamp, Value: b.Count}
	}
	return LineChart{
		Width:  ChartWidth,
		Height: ChartHeight,
		Stroke: ChartStroke,
		Points: points,
	}, nil
}
