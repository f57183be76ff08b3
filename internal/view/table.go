package view

import (
	"context"
	"errors"
	"sync"

	"github.com/aure/fpdash/internal/models"
	"github.com/aure/fpdash/internal/query"
)

const (
	KeyFingerprints     query.Key = "fingerprints"
	FingerprintsFailure           = "An error occurred while fetching fingerprints. Please try again."

	// TableFaultMessage is raised by a TableView after ActivateRow.
	TableFaultMessage = "fingerprint table crashed: row activation fault"
)

var (
	ErrNoSuchRow = errors.New("no such row")
	ErrNotLoaded = errors.New("fingerprints not loaded")
)

// Source is where the dashboard reads its data. *api.Client implements it.
type Source interface {
	FetchFingerprints(ctx context.Context) (models.FingerprintPage, error)
	FetchFingerprintCount(ctx context.Context) ([]models.CountBucket, error)
}

// Component is a mounted view.
type Component interface {
	Render() (Node, error)
	Close()
}

type TableView struct {
	sub *query.Subscription[models.FingerprintPage]

	mu    sync.Mutex
	fault bool
}

func NewTableView(cache *query.Cache, src Source, onChange func()) (*TableView, error) {
	sub, err := query.Subscribe(cache, KeyFingerprints, src.FetchFingerprints, onChange)
	if err != nil {
		return nil, err
	}
	return &TableView{sub: sub}, nil
}

// ActivateRow is the fault fixture: activating a row makes the next Render
// fail with TableFaultMessage. It only affects this TableView.
func (t *TableView) ActivateRow(i int) error {
	st := t.sub.State()
	if st.Status != query.StatusSuccess {
		return ErrNotLoaded
	}
	if i < 0 || i >= len(st.Data.Fingerprints) {
		return ErrNoSuchRow
	}

	t.mu.Lock()
	t.fault = true
	t.mu.Unlock()
	return nil
}

func (t *TableView) Render() (Node, error) {
	t.mu.Lock()
	fault := t.fault
	t.mu.Unlock()

	if fault {
		return nil, &RenderFault{Message: TableFaultMessage}
	}
	return Decide(t.sub.State(), FingerprintsFailure, renderTable)
}

func (t *TableView) Refetch() {
	t.sub.Refetch()
}

func (t *TableView) Close() {
	t.sub.Close()
}

func renderTable(page models.FingerprintPage) (Node, error) {
	rows := make([]Row, len(page.Fingerprints))
	for i, fp := range page.Fingerprints {
		rows[i] = Row{Index: i, Cells: []string{fp.Input, fp.Timestamp}}
	}
	return Table{Columns: []string{"Input", "Timestamp"}, Rows: rows}, nil
}
