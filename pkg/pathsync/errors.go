package pathsync

import (
	"errors"
	"fmt"
)

// ErrFilesystemMutation marks a failed copy or delete during synchronization.
var ErrFilesystemMutation = errors.New("filesystem mutation failed")

// MutationError describes a failed filesystem operation.
type MutationError struct {
	Op   string
	Path string
	Err  error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *MutationError) Unwrap() []error { return []error{ErrFilesystemMutation, e.Err} }
