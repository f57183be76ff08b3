package view

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aure/fpdash/internal/logging"
	"github.com/aure/fpdash/internal/query"
)

const (
	CardFingerprints     = "fingerprints"
	CardFingerprintCount = "fingerprint-count"

	PageTitle = "Fingerprints"
)

var ErrUnknownCard = errors.New("unknown card")

var cardOrder = []string{CardFingerprints, CardFingerprintCount}

// Dashboard mounts the table and chart views against one cache. The table is
// guarded by a Boundary; the chart is not.
type Dashboard struct {
	table   *Boundary[*TableView]
	chart   *ChartView
	changes *broadcaster
	logger  *slog.Logger
}

func NewDashboard(cache *query.Cache, src Source, logger *slog.Logger) (*Dashboard, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	d := &Dashboard{changes: newBroadcaster(), logger: logger}

	table, err := NewBoundary(func() (*TableView, error) {
		return NewTableView(cache, src, d.changes.notify)
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("mounting table: %w", err)
	}

	chart, err := NewChartView(cache, src, d.changes.notify)
	if err != nil {
		table.Close()
		return nil, fmt.Errorf("mounting chart: %w", err)
	}

	d.table = table
	d.chart = chart
	return d, nil
}

func CardIDs() []string {
	return append([]string(nil), cardOrder...)
}

// Render renders every card. A fault escaping an unguarded card fails the
// whole page.
func (d *Dashboard) Render() (Page, error) {
	page := Page{Title: PageTitle, Cards: make([]Card, 0, len(cardOrder))}
	for _, id := range cardOrder {
		card, err := d.RenderCard(id)
		if err != nil {
			return Page{}, err
		}
		page.Cards = append(page.Cards, card)
	}
	return page, nil
}

func (d *Dashboard) RenderCard(id string) (Card, error) {
	switch id {
	case CardFingerprints:
		return Card{ID: id, Title: "Table", Body: d.table.Render()}, nil
	case CardFingerprintCount:
		body, err := d.chart.Render()
		if err != nil {
			return Card{}, fmt.Errorf("rendering %s: %w", id, err)
		}
		return Card{ID: id, Title: "Graph", Body: body}, nil
	default:
		return Card{}, fmt.Errorf("%w: %q", ErrUnknownCard, id)
	}
}

// ActivateRow triggers the table's fault fixture on row i.
func (d *Dashboard) ActivateRow(i int) error {
	if err := d.table.Child().ActivateRow(i); err != nil {
		return err
	}
	d.logger.Info("table row activated", "row", i)
	d.changes.notify()
	return nil
}

// Remount replaces the table view, clearing a tripped boundary.
func (d *Dashboard) Remount() error {
	if err := d.table.Remount(); err != nil {
		return err
	}
	d.changes.notify()
	return nil
}

func (d *Dashboard) Refetch(id string) error {
	switch id {
	case CardFingerprints:
		d.table.Child().Refetch()
	case CardFingerprintCount:
		d.chart.Refetch()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCard, id)
	}
	return nil
}

func (d *Dashboard) TableFault() *RenderFault {
	return d.table.Fault()
}

// Changed returns a channel closed at the next state change of any card.
func (d *Dashboard) Changed() <-chan struct{} {
	return d.changes.wait()
}

// Close unmounts both views. The cache is left to its owner.
func (d *Dashboard) Close() {
	d.table.Close()
	d.chart.Close()
}

type broadcaster struct {
	mu sync.Mutex
	ch chan struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{ch: make(chan struct{})}
}

func (b *broadcaster) wait() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch
}

func (b *broadcaster) notify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	close(b.ch)
	b.ch = make(chan struct{})
}
