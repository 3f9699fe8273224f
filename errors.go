package relay

import (
	"context"
	"errors"
	"net/http"
)

// Sentinel errors for common failure modes. Transports wrap them so the
// session can classify failures with errors.Is.
var (
	// ErrConfig indicates an invalid Config or Request.
	ErrConfig = errors.New("invalid configuration")

	// ErrConnect indicates the endpoint was unreachable or rejected the
	// request before any increment was produced.
	ErrConnect = errors.New("connect failed")

	// ErrTransient indicates a recoverable failure: a dropped connection,
	// a provider 5xx, or a rate limit.
	ErrTransient = errors.New("transient stream failure")

	// ErrRetryBudgetExhausted indicates every endpoint and attempt was used.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

	// ErrMalformedIncrement indicates the provider sent data that could not
	// be parsed into a chunk.
	ErrMalformedIncrement = errors.New("malformed increment")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrCheckpointNotFound indicates no checkpoint exists for a session.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

// ErrorKind classifies failures carried by EventError.
type ErrorKind string

const (
	ErrorKindConfig               ErrorKind = "config"
	ErrorKindConnect              ErrorKind = "connect"
	ErrorKindTransient            ErrorKind = "transient"
	ErrorKindRetryBudgetExhausted ErrorKind = "retry_budget_exhausted"
	ErrorKindMalformedIncrement   ErrorKind = "malformed_increment"
	ErrorKindCanceled             ErrorKind = "canceled"
)

// KindOf maps err onto the error taxonomy. Errors that match no sentinel
// are treated as transient.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrConfig):
		return ErrorKindConfig
	case errors.Is(err, ErrConnect):
		return ErrorKindConnect
	case errors.Is(err, ErrMalformedIncrement):
		return ErrorKindMalformedIncrement
	case errors.Is(err, ErrRetryBudgetExhausted):
		return ErrorKindRetryBudgetExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCanceled
	default:
		return ErrorKindTransient
	}
}

// StatusError returns the sentinel matching an HTTP status code returned
// by a provider at connect time, or nil for 2xx codes.
//
// Auth failures, missing resources and rejected requests mean the endpoint
// cannot serve this request, so they fail over. Timeouts, rate limits and
// server errors are worth retrying against the same endpoint.
func StatusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return ErrTransient
	default:
		return ErrConnect
	}
}
