package bq

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// ErrorClass buckets API and client-side failures so callers (and the
// insert retry loop) can gate behavior on the kind of failure rather
// than string-matching messages.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassBadRequest
	ClassAuth
	ClassNotFound
	ClassRateLimited
	ClassServer
	ClassTransport
	ClassCancelled
	ClassDecode
)

func (e ErrorClass) String() string {
	switch e {
	case ClassBadRequest:
		return "bad_request"
	case ClassAuth:
		return "auth"
	case ClassNotFound:
		return "not_found"
	case ClassRateLimited:
		return "rate_limited"
	case ClassServer:
		return "server"
	case ClassTransport:
		return "transport"
	case ClassCancelled:
		return "cancelled"
	case ClassDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Classify maps an error to its ErrorClass. HTTP status codes from the
// API take precedence; context cancellation and decode failures are
// recognized through the wrap chain; anything else that isn't an API
// error is treated as a transport failure.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCancelled
	}

	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return ClassDecode
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 400:
			return ClassBadRequest
		case apiErr.Code == 401 || apiErr.Code == 403:
			return ClassAuth
		case apiErr.Code == 404:
			return ClassNotFound
		case apiErr.Code == 429:
			return ClassRateLimited
		case apiErr.Code >= 500:
			return ClassServer
		default:
			return ClassUnknown
		}
	}

	return ClassTransport
}

// DecodeError reports a cell that could not be decoded against its
// schema. The row containing the cell is still returned to the caller
// with a fallback value; the error carries enough context to locate
// the offending cell.
type DecodeError struct {
	Field  string
	Type   FieldType
	Raw    any
	reason error
}

func (e *DecodeError) Error() string {
	if e.reason != nil {
		return fmt.Sprintf("decode field %q (%s) from %v: %v", e.Field, e.Type, e.Raw, e.reason)
	}
	return fmt.Sprintf("decode field %q (%s) from %v", e.Field, e.Type, e.Raw)
}

func (e *DecodeError) Unwrap() error {
	return e.reason
}
