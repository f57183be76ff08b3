package query

import "time"

// Key identifies a logical request, e.g. "fingerprints".
type Key string

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the read-only view of one cache entry. Data is only meaningful
// when Status is StatusSuccess and Err only when it is StatusError.
type State[T any] struct {
	Status    Status
	Data      T
	Err       error
	UpdatedAt time.Time
}

func (s State[T]) Settled() bool {
	return s.Status == StatusSuccess || s.Status == StatusError
}

// snapshot is the type-erased form of State held by entries.
type snapshot struct {
	status    Status
	data      any
	err       error
	updatedAt time.Time
}

func typed[T any](s snapshot) State[T] {
	st := State[T]{Status: s.status, Err: s.err, UpdatedAt: s.updatedAt}
	if s.status == StatusSuccess {
		if v, ok := s.data.(T); ok {
			st.Data = v
		}
	}
	return st
}
