// Package pathtree holds the in-memory model of an indexed directory tree.
//
// A tree is made of two kinds of Node: files, which carry a size and a
// modification time, and directories, which own an ordered list of children.
// Children are always kept sorted by name with no duplicates, so two trees can
// be merge-compared in a single pass.
package pathtree

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind tells a file node from a directory node.
type Kind int

const (
	File Kind = iota
	Directory
)

func (k Kind) String() string {
	if k == Directory {
		return "d"
	}
	return "f"
}

var (
	// ErrDuplicateName is returned when a child with the same name already exists.
	ErrDuplicateName = errors.New("duplicate child name")
	// ErrNotDirectory is returned when a directory operation is applied to a file.
	ErrNotDirectory = errors.New("node is not a directory")
)

// Node is a file or a directory in an indexed tree.
type Node struct {
	kind     Kind
	name     string
	root     bool
	size     int64
	modTime  time.Time
	children []*Node
}

// NewFile creates a file node. The modification time is truncated to
// milliseconds, the precision of the persisted index format.
func NewFile(name string, size int64, modTime time.Time) *Node {
	return &Node{
		kind:    File,
		name:    name,
		size:    size,
		modTime: modTime.Truncate(time.Millisecond),
	}
}

// NewDirectory creates an empty directory node.
func NewDirectory(name string) *Node {
	return &Node{kind: Directory, name: name}
}

// NewRoot creates the unnamed directory that stands for the scanned root.
func NewRoot() *Node {
	return &Node{kind: Directory, root: true}
}

func (n *Node) Kind() Kind { return n.kind }
func (n *Node) Name() string { return n.name }
func (n *Node) IsDir() bool { return n.kind == Directory }
func (n *Node) IsRoot() bool { return n.root }
func (n *Node) ModTime() time.Time { return n.modTime }

// Size returns the stored size of a file, or the recursive sum of all file
// sizes below a directory. Directory sizes are computed on every call.
func (n *Node) Size() int64 {
	if n.kind == File {
		return n.size
	}
	var total int64
	for _, child := range n.children {
		total += child.Size()
	}
	return total
}

// Children returns the sorted children of a directory. The returned slice
// must not be modified; use Insert and Remove instead.
func (n *Node) Children() []*Node {
	return n.children
}

func compareNames(a, b string) int {
	return strings.Compare(a, b)
}

func (n *Node) search(name string) (int, bool) {
	return slices.BinarySearchFunc(n.children, name, func(c *Node, target string) int {
		return compareNames(c.name, target)
	})
}

// Insert adds child at its sorted position.
func (n *Node) Insert(child *Node) error {
	if n.kind != Directory {
		return fmt.Errorf("insert %q into %q: %w", child.name, n.name, ErrNotDirectory)
	}
	idx, found := n.search(child.name)
	if found {
		return fmt.Errorf("insert %q into %q: %w", child.name, n.name, ErrDuplicateName)
	}
	n.children = slices.Insert(n.children, idx, child)
	return nil
}

// Remove deletes the child with the given name and reports whether it existed.
func (n *Node) Remove(name string) bool {
	if n.kind != Directory {
		return false
	}
	idx, found := n.search(name)
	if !found {
		return false
	}
	n.children = slices.Delete(n.children, idx, idx+1)
	return true
}

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n.kind != Directory {
		return nil
	}
	idx, found := n.search(name)
	if !found {
		return nil
	}
	return n.children[idx]
}

// Lookup walks the given name segments starting at n and returns the node
// reached, or nil when any segment is missing. An empty path returns n.
func (n *Node) Lookup(path []string) *Node {
	current := n
	for _, segment := range path {
		current = current.Child(segment)
		if current == nil {
			return nil
		}
	}
	return current
}

// Copy returns a deep copy that shares nothing with n.
func (n *Node) Copy() *Node {
	c := &Node{
		kind:    n.kind,
		name:    n.name,
		root:    n.root,
		size:    n.size,
		modTime: n.modTime,
	}
	if len(n.children) > 0 {
		c.children = make([]*Node, len(n.children))
		for i, child := range n.children {
			c.children[i] = child.Copy()
		}
	}
	return c
}

// Equal reports whether two files share name, size and modification time.
// Directories are never equal under this rule; use TreeEqual for structure.
func Equal(a, b *Node) bool {
	if a == nil || b == nil || a.kind != File || b.kind != File {
		return false
	}
	return a.name == b.name && a.size == b.size && a.modTime.Equal(b.modTime)
}

// TreeEqual reports whether two subtrees have the same names, nesting,
// file sizes and modification times.
func TreeEqual(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind || a.name != b.name {
		return false
	}
	if a.kind == File {
		return Equal(a, b)
	}
	if len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !TreeEqual(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}

func (n *Node) String() string {
	if n.kind == Directory {
		return fmt.Sprintf("Directory[name=%s]", n.name)
	}
	return fmt.Sprintf("File[name=%s, size=%d, mtime=%s]", n.name, n.size, n.modTime.Format(time.RFC3339Nano))
}
