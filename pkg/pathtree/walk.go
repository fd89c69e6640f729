package pathtree

import "slices"

// WalkFunc is called for every node below the starting node. parent holds the
// names of the directories between the start and the node, not including the
// node itself. Returning a non-nil error stops the walk.
type WalkFunc func(parent []string, n *Node) error

// Walk visits all descendants of n depth first in sorted order. The starting
// node itself is not visited.
func (n *Node) Walk(fn WalkFunc) error {
	return n.walk(nil, fn)
}

func (n *Node) walk(parent []string, fn WalkFunc) error {
	for _, child := range n.children {
		if err := fn(parent, child); err != nil {
			return err
		}
		if child.kind == Directory {
			if err := child.walk(append(slices.Clip(parent), child.name), fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stats summarizes a subtree.
type Stats struct {
	Files       int64
	Directories int64
	Bytes       int64
}

// Stats counts the files, directories and bytes below n.
func (n *Node) Stats() Stats {
	var s Stats
	_ = n.Walk(func(_ []string, c *Node) error {
		if c.kind == Directory {
			s.Directories++
		} else {
			s.Files++
			s.Bytes += c.size
		}
		return nil
	})
	return s
}
