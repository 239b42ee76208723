package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the failure taxonomy of the validation subsystem. The kind is
// assigned at the point of failure (gateway, cache, repository) so callers
// never have to sniff error message text.
type ErrorKind string

const (
	// KindFormat marks a malformed CUIT/CAE; fatal only for that sub-check
	KindFormat ErrorKind = "format"
	// KindConnectivity marks a transport/timeout/DNS failure; retryable
	KindConnectivity ErrorKind = "connectivity"
	// KindBusiness marks an explicit rejection by the remote service
	KindBusiness ErrorKind = "business"
	// KindCache marks a cache tier failure; non-fatal, fall through to live
	KindCache ErrorKind = "cache"
	// KindPersistence marks a storage failure; fatal for the whole run
	KindPersistence ErrorKind = "persistence"
)

// Error is a typed validation subsystem error
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed error without a cause
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WrapError attaches a kind to an underlying error
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// connectivitySubstrings is the legacy keyword fallback for errors that
// arrive without a typed kind. Typed classification at the failure site is
// always preferred.
var connectivitySubstrings = []string{
	"timeout",
	"timed out",
	"network",
	"dns",
	"no such host",
	"connection refused",
	"connection reset",
	"unreachable",
	"broken pipe",
	"eof",
}

// KindOf returns the typed kind of err, falling back to keyword
// classification for untyped errors. Untyped errors that do not look like
// connectivity failures are reported as business errors.
func KindOf(err error) ErrorKind {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind
	}
	msg := strings.ToLower(err.Error())
	for _, s := range connectivitySubstrings {
		if strings.Contains(msg, s) {
			return KindConnectivity
		}
	}
	return KindBusiness
}

// IsConnectivity reports whether err classifies as a transport failure
func IsConnectivity(err error) bool {
	return err != nil && KindOf(err) == KindConnectivity
}
