// Package apperr defines the error taxonomy shared by the catalog server,
// the backend adapters and the client-side coordinator.
//
// Every error that crosses a component boundary is classified into one Kind.
// The message is meant for humans and is shown verbatim by user-facing
// surfaces, so Error() returns it without decoration.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an Error.
type Kind uint8

const (
	// KindBackend is any non-success server response not covered by another kind.
	KindBackend Kind = iota
	// KindValidation is missing or malformed input, caught before any write.
	KindValidation
	// KindUnauthenticated means there is no session or it has expired.
	KindUnauthenticated
	// KindForbidden means the principal is neither the owner nor an admin.
	KindForbidden
	// KindNotFound means the referenced id does not exist.
	KindNotFound
	// KindTransport is a network or connectivity failure. Callers may retry.
	KindTransport
	// KindUpload means a file was rejected by size, type or decodability checks.
	KindUpload
)

var kindNames = map[Kind]string{
	KindBackend:         "backend",
	KindValidation:      "validation",
	KindUnauthenticated: "unauthenticated",
	KindForbidden:       "forbidden",
	KindNotFound:        "not_found",
	KindTransport:       "transport",
	KindUpload:          "upload",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is a classified error.
type Error struct {
	// Kind is the taxonomy bucket.
	Kind Kind
	// Status is the HTTP status the error was received with, or should be
	// sent with. Zero means "derive from Kind".
	Status int
	// Message is the human-readable text.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel of the same kind. A target carrying
// a message only matches an error with the identical message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Sentinels for errors.Is checks.
var (
	ErrBackend         = &Error{Kind: KindBackend}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrTransport       = &Error{Kind: KindTransport}
	ErrUpload          = &Error{Kind: KindUpload}
)

// Validation returns a KindValidation error.
func Validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }

// Unauthenticated returns a KindUnauthenticated error.
func Unauthenticated(msg string) error { return &Error{Kind: KindUnauthenticated, Message: msg} }

// Forbidden returns a KindForbidden error.
func Forbidden(msg string) error { return &Error{Kind: KindForbidden, Message: msg} }

// NotFound returns a KindNotFound error.
func NotFound(msg string) error { return &Error{Kind: KindNotFound, Message: msg} }

// Upload returns a KindUpload error.
func Upload(msg string) error { return &Error{Kind: KindUpload, Message: msg} }

// Backend returns a KindBackend error carrying the HTTP status.
func Backend(status int, msg string) error {
	return &Error{Kind: KindBackend, Status: status, Message: msg}
}

// Transport wraps a connectivity failure.
func Transport(err error) error {
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}

// Wrap classifies err with the given kind unless it is already classified.
func Wrap(kind Kind, msg string, err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err. Unclassified errors are KindBackend.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindBackend
}

// Message returns the human-readable text of err.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Error()
	}
	return err.Error()
}

// HTTPStatus maps err to the status code a server should answer with.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	if ae.Status != 0 {
		return ae.Status
	}
	switch ae.Kind {
	case KindValidation, KindUpload:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus classifies a non-2xx response the way a client observes it:
// 401, 403 and 404 keep their meaning, everything else is a backend error
// carrying the server message.
func FromStatus(status int, msg string) error {
	switch status {
	case http.StatusUnauthorized:
		return &Error{Kind: KindUnauthenticated, Status: status, Message: msg}
	case http.StatusForbidden:
		return &Error{Kind: KindForbidden, Status: status, Message: msg}
	case http.StatusNotFound:
		return &Error{Kind: KindNotFound, Status: status, Message: msg}
	default:
		return &Error{Kind: KindBackend, Status: status, Message: msg}
	}
}

// FromUploadStatus is FromStatus for the upload endpoint, where a 400 means
// the file itself was rejected.
func FromUploadStatus(status int, msg string) error {
	if status == http.StatusBadRequest {
		return &Error{Kind: KindUpload, Status: status, Message: msg}
	}
	return FromStatus(status, msg)
}
