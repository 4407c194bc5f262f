package errs

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthenticated indicates a missing, malformed or expired bearer token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates a valid identity without the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates that an alert or responder does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotFoundOrInactive indicates the alert is missing or no longer accepts the action.
	ErrNotFoundOrInactive = errors.New("alert not found or not active")
	// ErrResponderNotFound indicates no responder carries the requested badge number.
	ErrResponderNotFound = errors.New("responder not found")
	// ErrNotFoundOrUnauthorized hides whether an alert exists from non-owners.
	ErrNotFoundOrUnauthorized = errors.New("alert not found or not owned by caller")
	// ErrInvalidArgument indicates malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict indicates a write lost an optimistic concurrency race.
	ErrConflict = errors.New("conflict")
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInvalidArgument
	KindConflict
)

// KindOf walks the error chain and returns the first matching kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNotFoundOrInactive),
		errors.Is(err, ErrResponderNotFound),
		errors.Is(err, ErrNotFoundOrUnauthorized):
		return KindNotFound
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// HTTPStatus maps a kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}
