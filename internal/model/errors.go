package model

import (
	"context"
	"errors"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrRetrievalFailure = errors.New("retrieval failure")
	ErrEmptySeries      = errors.New("empty series")
)

// ErrorKind is the stable name of an error class, used in views, logs, metrics and the run journal.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindInvalidInput     ErrorKind = "INVALID_INPUT"
	KindRetrievalFailure ErrorKind = "RETRIEVAL_FAILURE"
	KindEmptySeries      ErrorKind = "EMPTY_SERIES"
	KindInternal         ErrorKind = "INTERNAL"
)

// KindOf classifies err. Timeouts and cancellations count as retrieval failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrEmptySeries):
		return KindEmptySeries
	case errors.Is(err, ErrRetrievalFailure),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindRetrievalFailure
	default:
		return KindInternal
	}
}
