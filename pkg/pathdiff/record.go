package pathdiff

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulschiretz/pgl-treesync/pkg/pathtree"
)

// ErrInvariantViolation signals a programming error, such as a record built
// from two directories or from two equal files.
var ErrInvariantViolation = errors.New("invariant violation")

// Record is one difference between the left and the right tree.
type Record struct {
	// Path holds the directory names from the root to the parent of the
	// differing entry. It does not include the entry's own name. Records of
	// the same directory may share the slice, so it must not be modified.
	Path []string
	// Left and Right are the entries on each side; at most one is nil.
	Left  *pathtree.Node
	Right *pathtree.Node

	// Action is assigned by the caller before synchronizing.
	Action Action
	// IsMoved is set by the grouping pass for likely moves.
	IsMoved bool

	diffType DiffType
}

// NewRecord classifies the pair of nodes found at path.
func NewRecord(path []string, left, right *pathtree.Node) (*Record, error) {
	t, err := classify(left, right)
	if err != nil {
		return nil, fmt.Errorf("record at %q: %w", strings.Join(path, "/"), err)
	}
	return &Record{Path: path, Left: left, Right: right, diffType: t}, nil
}

func classify(left, right *pathtree.Node) (DiffType, error) {
	switch {
	case left == nil && right == nil:
		return 0, fmt.Errorf("both nodes are absent: %w", ErrInvariantViolation)
	case left == nil:
		return MissingLeft, nil
	case right == nil:
		return MissingRight, nil
	case left.IsDir() && right.IsDir():
		return 0, fmt.Errorf("both nodes are directories: %w", ErrInvariantViolation)
	case !left.IsDir() && right.IsDir():
		return LeftFileRightDir, nil
	case left.IsDir() && !right.IsDir():
		return LeftDirRightFile, nil
	}

	switch cmp := left.ModTime().Compare(right.ModTime()); {
	case cmp > 0:
		return LeftNewer, nil
	case cmp < 0:
		return RightNewer, nil
	case left.Size() != right.Size():
		return Size, nil
	default:
		return 0, fmt.Errorf("files %q have the same size and modification time: %w", left.Name(), ErrInvariantViolation)
	}
}

// Type returns the classification fixed at construction.
func (r *Record) Type() DiffType { return r.diffType }

// Name returns the name of the differing entry.
func (r *Record) Name() string {
	if r.Left != nil {
		return r.Left.Name()
	}
	return r.Right.Name()
}

// PathString joins Path with slashes.
func (r *Record) PathString() string {
	return strings.Join(r.Path, "/")
}

// Source returns the node that wins under the current action, or nil.
func (r *Record) Source() *pathtree.Node {
	switch r.Action {
	case UseLeft:
		return r.Left
	case UseRight:
		return r.Right
	}
	return nil
}

// Destination returns the node replaced under the current action, or nil.
func (r *Record) Destination() *pathtree.Node {
	switch r.Action {
	case UseLeft:
		return r.Right
	case UseRight:
		return r.Left
	}
	return nil
}

func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteString("DiffRecord[path=")
	sb.WriteString(r.PathString())
	sb.WriteString(", left=")
	sb.WriteString(nodeString(r.Left))
	sb.WriteString(", right=")
	sb.WriteString(nodeString(r.Right))
	sb.WriteString(", diffType=")
	sb.WriteString(r.diffType.String())
	sb.WriteString(", action=")
	sb.WriteString(r.Action.String())
	if r.IsMoved {
		sb.WriteString(", MOVED")
	}
	sb.WriteString("]")
	return sb.String()
}

func nodeString(n *pathtree.Node) string {
	if n == nil {
		return "NONE"
	}
	return n.String()
}
