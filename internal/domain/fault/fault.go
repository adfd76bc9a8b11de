// internal/domain/fault/fault.go

package fault

import (
	"errors"
	"fmt"
)

// Kind identifies a recoverable failure returned by the core
type Kind string

const (
	LocationUnavailable Kind = "location_unavailable"
	UnknownCity         Kind = "unknown_city"
	UnresolvableLink    Kind = "unresolvable_link"
	LinkFetchFailed     Kind = "link_fetch_failed"
	NoCoordinatesFound  Kind = "no_coordinates_found"
	SendFailed          Kind = "send_failed"
	CreateSessionFailed Kind = "create_session_failed"
	FetchFailed         Kind = "fetch_failed"
)

// Sentinels for errors.Is checks. Matching is by kind only.
var (
	ErrLocationUnavailable = &Error{Kind: LocationUnavailable}
	ErrUnknownCity         = &Error{Kind: UnknownCity}
	ErrUnresolvableLink    = &Error{Kind: UnresolvableLink}
	ErrLinkFetchFailed     = &Error{Kind: LinkFetchFailed}
	ErrNoCoordinatesFound  = &Error{Kind: NoCoordinatesFound}
	ErrSendFailed          = &Error{Kind: SendFailed}
	ErrCreateSessionFailed = &Error{Kind: CreateSessionFailed}
	ErrFetchFailed         = &Error{Kind: FetchFailed}
)

// Error is the failure value handed back to callers of the core. Message is
// the optional human-readable explanation from the failing service.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// New creates an error of the given kind for operation op
func New(kind Kind, op string, err error) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// Newf creates an error with a formatted message and no cause
func Newf(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a fault error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first fault error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
