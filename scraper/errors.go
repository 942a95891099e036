package scraper

import (
	"errors"
	"fmt"
)

// Failure categories used in logs, ScrapeResult.ErrorsByType and the
// scraper_errors_total metric.
const (
	labelTimeout     = "timeout"
	labelConnection  = "connection"
	labelForbidden   = "forbidden"
	labelNotFound    = "not_found"
	labelRateLimited = "rate_limited"
	labelBadStatus   = "bad_status"
	labelParse       = "parse"
	labelOther       = "other"
	labelUnknown     = "unknown"
)

// ErrTimeout: the product page did not answer within cfg.Timeout.
type ErrTimeout struct{ Err error }

func (e ErrTimeout) Error() string { return labelTimeout + ": " + e.Err.Error() }
func (e ErrTimeout) Unwrap() error { return e.Err }

// ErrConnection: dial, DNS or TLS failure before any status arrived.
type ErrConnection struct{ Err error }

func (e ErrConnection) Error() string { return labelConnection + ": " + e.Err.Error() }
func (e ErrConnection) Unwrap() error { return e.Err }

// ErrForbidden: HTTP 403, usually the storefront's bot wall.
type ErrForbidden struct{ Err error }

func (e ErrForbidden) Error() string { return labelForbidden + ": " + e.Err.Error() }
func (e ErrForbidden) Unwrap() error { return e.Err }

// ErrNotFound: HTTP 404, the ASIN has no detail page.
type ErrNotFound struct{ Err error }

func (e ErrNotFound) Error() string { return labelNotFound + ": " + e.Err.Error() }
func (e ErrNotFound) Unwrap() error { return e.Err }

// ErrRateLimited: HTTP 429.
type ErrRateLimited struct{ Err error }

func (e ErrRateLimited) Error() string { return labelRateLimited + ": " + e.Err.Error() }
func (e ErrRateLimited) Unwrap() error { return e.Err }

// ErrStatus covers every other non-200 status, including 201 and 202.
type ErrStatus struct {
	StatusCode int
	Err        error
}

func (e ErrStatus) Error() string { return fmt.Sprintf("status %d: %v", e.StatusCode, e.Err) }
func (e ErrStatus) Unwrap() error { return e.Err }

// ErrParse: the page arrived but its body could not be decoded or read.
type ErrParse struct{ Err error }

func (e ErrParse) Error() string { return labelParse + ": " + e.Err.Error() }
func (e ErrParse) Unwrap() error { return e.Err }

// errorTypeLabel maps a Fetch error to its failure category.
func errorTypeLabel(err error) string {
	var (
		timeout     ErrTimeout
		conn        ErrConnection
		forbidden   ErrForbidden
		notFound    ErrNotFound
		rateLimited ErrRateLimited
		status      ErrStatus
		parse       ErrParse
	)
	switch {
	case err == nil:
		return labelUnknown
	case errors.As(err, &timeout):
		return labelTimeout
	case errors.As(err, &conn):
		return labelConnection
	case errors.As(err, &forbidden):
		return labelForbidden
	case errors.As(err, &notFound):
		return labelNotFound
	case errors.As(err, &rateLimited):
		return labelRateLimited
	case errors.As(err, &status):
		return labelBadStatus
	case errors.As(err, &parse):
		return labelParse
	default:
		return labelOther
	}
}
