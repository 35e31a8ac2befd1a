// Package apperr defines the error taxonomy shared by all pipeline stages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to branch on failure class.
type Kind int

const (
	// KindConfiguration marks missing or contradictory required inputs.
	KindConfiguration Kind = iota + 1
	// KindData marks datasets that cannot be analyzed (empty, no numeric columns).
	KindData
	// KindNotFound marks missing dataset or boundary files.
	KindNotFound
	// KindFormat marks unparseable tables or boundary files.
	KindFormat
	// KindNetwork marks remote fetch failures with no usable cache fallback.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindData:
		return "data"
	case KindNotFound:
		return "not_found"
	case KindFormat:
		return "format"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Error is a classified error. The message names the offending input so the
// caller can act on it without parsing the chain.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a classification to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf returns the classification of the error, or 0 if unclassified.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}
