package crawler

import (
	"context"
	"errors"
)

// Failure categories recognised by the engine. Collaborators wrap these so the
// engine can classify a failure without inspecting transport details.
var (
	// ErrTransport marks a failed network exchange or a non-success status.
	ErrTransport = errors.New("transport failure")
	// ErrParse marks a response that could not be decoded into items.
	ErrParse = errors.New("parse failure")
	// ErrMandatoryFetch marks the failure of a crawl's required first page.
	ErrMandatoryFetch = errors.New("mandatory fetch failure")
)

// ErrorKind is the coarse classification attached to diagnostics.
type ErrorKind string

// Supported error kinds.
const (
	KindNone      ErrorKind = ""
	KindTransport ErrorKind = "transport"
	KindParse     ErrorKind = "parse"
	KindMandatory ErrorKind = "mandatory"
	KindCanceled  ErrorKind = "canceled"
	KindUnknown   ErrorKind = "unknown"
)

// Classify maps err onto an ErrorKind. Mandatory failures win over the
// underlying transport or parse cause.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMandatoryFetch):
		return KindMandatory
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
