// Package apierr gives handshake and admin-API failures a typed shape
// instead of ad-hoc errors, per the "rewrite exceptions as a result-returning
// function" design note: each failure carries a kind, an HTTP status, and an
// optional detail payload (e.g. the redirect room id).
package apierr

import "fmt"

type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindAuthRequired     Kind = "AuthRequired"
	KindAuthMismatch     Kind = "AuthMismatch"
	KindNotFound         Kind = "NotFound"
	KindRedirect         Kind = "Redirect"
	KindNoCapacity       Kind = "NoCapacity"
	KindUpstreamDown     Kind = "UpstreamUnavailable"
	KindPersistence      Kind = "PersistenceError"
	KindInternal         Kind = "Internal"
)

// Error is the typed error shape threaded through handshake/admin code.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func New(kind Kind, status int, msg string, details map[string]any) *Error {
	return &Error{Kind: kind, Status: status, Message: msg, Details: details}
}

func Validation(msg string) *Error { return New(KindValidation, 400, msg, nil) }

func AuthRequired(msg string) *Error { return New(KindAuthRequired, 403, msg, nil) }

func AuthMismatch(msg string) *Error { return New(KindAuthMismatch, 403, msg, nil) }

func NotFound(msg string) *Error { return New(KindNotFound, 404, msg, nil) }

// Redirect models the "another room already holds this namespace" 410 carrying
// {roomId}.
func Redirect(roomID string) *Error {
	return New(KindRedirect, 410, "namespace is hosted by a different room", map[string]any{"roomId": roomID})
}

func NoCapacity(msg string) *Error { return New(KindNoCapacity, 503, msg, nil) }

func Upstream(msg string) *Error { return New(KindUpstreamDown, 503, msg, nil) }

func Persistence(msg string) *Error { return New(KindPersistence, 500, msg, nil) }

func Internal(msg string) *Error { return New(KindInternal, 500, msg, nil) }
