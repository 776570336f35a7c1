package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrNotFound         = errors.New("session not found")
	ErrNotEligible      = errors.New("session not eligible")
	ErrValidation       = errors.New("validation failed")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrPersistence      = errors.New("persistence failure")
	ErrCancelled        = errors.New("participation cancelled")
)

// Error is the typed error returned by the join, timer and submission paths.
type Error struct {
	Kind    error
	Message string
	// Fields names the offending inputs (e.g. question ID -> "required").
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		msg += " [" + strings.Join(keys, ", ") + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may re-attempt after correcting
// input or connectivity.
func Retryable(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrPersistence)
}

// FieldsOf returns the field map carried by a typed error, if any.
func FieldsOf(err error) map[string]string {
	var se *Error
	if errors.As(err, &se) {
		return se.Fields
	}
	return nil
}

func notFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func notEligible(format string, args ...any) error {
	return &Error{Kind: ErrNotEligible, Message: fmt.Sprintf(format, args...)}
}

func invalid(msg string, fields map[string]string) error {
	return &Error{Kind: ErrValidation, Message: msg, Fields: fields}
}

func persistence(op string, err error) error {
	return &Error{Kind: ErrPersistence, Message: op, Err: err}
}

func alreadySubmitted(studentID string) error {
	return &Error{Kind: ErrAlreadySubmitted, Message: "student " + studentID + " has already submitted"}
}

func cancelled() error {
	return &Error{Kind: ErrCancelled}
}
