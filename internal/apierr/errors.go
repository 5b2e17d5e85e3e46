// Package apierr defines the gateway's error taxonomy. Every error that
// reaches an HTTP boundary is mapped to a status code and an {error} message
// through StatusOf and Message.
package apierr

import (
	"errors"
	"net/http"
)

// Kind classifies an error by who is expected to fix it.
type Kind int

const (
	KindInternal   Kind = iota
	KindValidation      // caller input missing or malformed
	KindRejected        // upstream refused a client-correctable request
	KindUpstream        // upstream transport failure or malformed response
	KindConfig          // gateway misconfiguration, e.g. missing credential
	KindCORS            // origin not permitted
	KindRateLimit       // request budget exhausted
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRejected:
		return "rejected"
	case KindUpstream:
		return "upstream"
	case KindConfig:
		return "config"
	case KindCORS:
		return "cors"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "internal"
	}
}

// Status is the HTTP status used for errors of this kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindRejected:
		return http.StatusBadRequest
	case KindCORS:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified gateway error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for the error.
func (e *Error) Status() int { return e.Kind.Status() }

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Rejected(msg string) *Error {
	return &Error{Kind: KindRejected, Message: msg}
}

// Upstream wraps a transport or decode failure. The wrapped error's message
// is what the caller sees.
func Upstream(err error) *Error {
	return &Error{Kind: KindUpstream, Err: err}
}

func Config(msg string) *Error {
	return &Error{Kind: KindConfig, Message: msg}
}

var (
	ErrMissingCredential = Config("missing credential")
	ErrCORS              = &Error{Kind: KindCORS, Message: "Not allowed by CORS"}
	ErrRateLimited       = &Error{Kind: KindRateLimit, Message: "Too many requests from this IP, please try again later."}
)

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// StatusOf maps err to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status()
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) && sc.StatusCode() >= 400 {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// Message returns the text placed in the {error} envelope.
func Message(err error) string {
	if err == nil || err.Error() == "" {
		return "Internal server error"
	}
	return err.Error()
}
