package view

import "github.com/aure/fpdash/internal/query"

// Decide maps a query state to the node every view shows for it. Only the
// content function differs between views.
func Decide[T any](st query.State[T], failure string, content func(T) (Node, error)) (Node, error) {
	switch st.Status {
	case query.StatusSuccess:
		return content(st.Data)
	case query.StatusError:
		return Callout{Text: failure}, nil
	default:
		return Spinner{}, nil
	}
}
