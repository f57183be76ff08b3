// Package view turns query state into render trees for the dashboard cards.
package view

// Node is one element of a render tree. Renderers in internal/render turn
// nodes into HTML or text.
type Node interface {
	isNode()
}

// Spinner is the neutral progress indicator shown while a query is loading.
type Spinner struct{}

// Callout is the static error panel shown when a query failed.
type Callout struct {
	Text string
}

type Table struct {
	Columns []string
	Rows    []Row
}

// Row is one record. Cells[0] is the interactive cell; Index is the row
// position used to activate it.
type Row struct {
	Index int
	Cells []string
}

type Point struct {
	Label string
	Value int
}

type LineChart struct {
	Width  int
	Height int
	Stroke string
	Points []Point
}

// Fallback replaces a subtree whose render faulted.
type Fallback struct {
	Message string
}

type Card struct {
	ID    string
	Title string
	Body  Node
}

type Page struct {
	Title string
	Cards []Card
}

func (Spinner) isNode()   {}
func (Callout) isNode()   {}
func (Table) isNode()     {}
func (LineChart) isNode() {}
func (Fallback) isNode()  {}

// Loading reports whether the card is still waiting on its query.
func (c Card) Loading() bool {
	_, ok := c.Body.(Spinner)
	return ok
}
