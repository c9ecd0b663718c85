// Package apperr defines the closed error-kind taxonomy from spec §7
// and the helpers that map kinds to HTTP status codes at the API
// boundary.
package apperr

import "errors"

// Kind is one of the language-neutral error kinds from spec §7.
type Kind string

const (
	KindTransient          Kind = "transient"
	KindTimeout            Kind = "timeout"
	KindRateLimited        Kind = "rate_limited"
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
	KindBanned             Kind = "banned"
	KindSuspended          Kind = "suspended"
	KindValidation         Kind = "validation"
	KindConfig             Kind = "config"
	KindDatabaseConnection Kind = "database_connection"
	KindDatabaseSchema     Kind = "database_schema"
	KindDatabaseAuth       Kind = "database_auth"
	KindProxyExhausted     Kind = "proxy_exhausted"
)

// Error wraps an underlying cause with a Kind so callers can switch on
// classification without parsing strings.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + string(e.Kind)
	}
	return e.Op + ": " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// IsTerminal reports whether kind is terminal for the item in the
// current cycle (never retried): NotFound, Forbidden, Banned, Suspended.
func IsTerminal(kind Kind) bool {
	switch kind {
	case KindNotFound, KindForbidden, KindBanned, KindSuspended:
		return true
	default:
		return false
	}
}

// IsFatal reports whether kind must bubble to the supervisor rather
// than being swallowed by the worker loop.
func IsFatal(kind Kind) bool {
	switch kind {
	case KindConfig, KindDatabaseConnection, KindDatabaseSchema, KindDatabaseAuth, KindProxyExhausted:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a Kind to a deterministic status code. The API
// handlers do not call it: fetch-single answers through terminalResponse
// in internal/api/handlers.go, which maps Banned to 404, not 403.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return 400
	case KindForbidden, KindBanned, KindSuspended:
		return 403
	case KindNotFound:
		return 404
	case KindRateLimited:
		return 429
	case KindDatabaseAuth:
		return 401
	default:
		return 500
	}
}
