// Package hints labels soft failures: conditions that end one step early
// (an unreadable directory that is skipped, a disabled hook phase) without
// failing the operation as a whole. Callers test for the label with IsHint
// instead of importing every producer's sentinel errors.
package hints

import (
	"errors"
	"fmt"
)

type hint struct {
	err error
}

func (h *hint) Error() string {
	if h == nil || h.err == nil {
		return "unknown hint"
	}
	return h.err.Error()
}

func (h *hint) IsHint() bool  { return true }
func (h *hint) Unwrap() error { return h.err }

// New creates a hint from a message.
func New(msg string) error {
	return &hint{err: errors.New(msg)}
}

// Newf creates a hint from a format string; %w verbs are honored.
func Newf(format string, args ...any) error {
	return &hint{err: fmt.Errorf(format, args...)}
}

// Wrap labels an existing error as a hint. Wrap(nil) returns nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &hint{err: err}
}

// IsHint reports whether any error in the chain is labelled as a hint.
func IsHint(err error) bool {
	var h interface{ IsHint() bool }
	return errors.As(err, &h) && h.IsHint()
}

// Is reports whether err is a hint and matches target.
func Is(err, target error) bool {
	return IsHint(err) && errors.Is(err, target)
}
