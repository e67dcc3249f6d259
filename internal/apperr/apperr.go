// Package apperr carries the error taxonomy shared by the engine, the
// session layer, and the daemon protocol. Every failure surfaced to a
// client has a Kind so the caller can react without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidParameter Kind = "invalid_parameter"
	KindSessionNotFound  Kind = "session_not_found"
	KindNoPromptSet      Kind = "no_prompt_set"
	KindCannotUndo       Kind = "cannot_undo"
	KindStaleSelection   Kind = "stale_selection"
	KindInferenceFailure Kind = "inference_failure"
	KindInternal         Kind = "internal"
)

// Error is a kind-tagged error. CurrentText is set on CannotUndo so the
// caller can redisplay session state without another round trip.
type Error struct {
	Kind        Kind
	Message     string
	CurrentText string
	Cause       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithText attaches the session's current text to an error built here.
func WithText(kind Kind, message, currentText string) error {
	return &Error{Kind: kind, Message: message, CurrentText: currentText}
}

// KindOf extracts the Kind from err, or "" when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// TextOf returns the CurrentText attached to err, if any.
func TextOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.CurrentText
	}
	return ""
}
