package api

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// KindTransport covers unreachable hosts, timeouts and non-2xx statuses.
	KindTransport ErrorKind = iota + 1
	// KindDecode covers bodies that are not JSON or not the expected shape.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FetchError is the single error type returned by Client fetches.
type FetchError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s error: %v", e.Path, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

func transportError(path string, err error) error {
	return &FetchError{Kind: KindTransport, Path: path, Err: err}
}

func decodeError(path string, err error) error {
	return &FetchError{Kind: KindDecode, Path: path, Err: err}
}

// IsKind reports whether err is a FetchError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == k
}
