package pathindex

import (
	"errors"
	"fmt"
)

var (
	// ErrAttributeRead marks a failure to read a file's size or modification time.
	ErrAttributeRead = errors.New("cannot read file attributes")
	// ErrRootNotDirectory is returned when the scan root is not a directory.
	ErrRootNotDirectory = errors.New("index root is not a directory")
	// ErrRootUnlistable is returned when the scan root itself cannot be listed.
	ErrRootUnlistable = errors.New("cannot list index root")
)

// TraversalError reports a directory that could not be listed. It is a soft
// failure: the directory is left out of the index and the scan goes on.
// It satisfies hints.IsHint.
type TraversalError struct {
	Path string
	Err  error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("cannot traverse %s: %v", e.Path, e.Err)
}

func (e *TraversalError) Unwrap() error { return e.Err }
func (e *TraversalError) IsHint() bool  { return true }

// AttributeReadError aborts an index build.
type AttributeReadError struct {
	Path string
	Err  error
}

func (e *AttributeReadError) Error() string {
	return fmt.Sprintf("failed to read attributes of %s: %v", e.Path, e.Err)
}

func (e *AttributeReadError) Unwrap() []error { return []error{ErrAttributeRead, e.Err} }
