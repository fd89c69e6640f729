// Package indexfile persists indexed trees in a line-oriented text format.
//
// Every node is one line of tab-separated fields, prefixed with its depth
// below the implicit root:
//
//	<depth>\t<name>                          directory
//	<depth>\t<name>\t<size>\t<mtimeMillis>   file
//
// A node at depth D belongs to the closest preceding directory at depth D-1.
// Files may be compressed; the format is chosen from the file extension.
package indexfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paulschiretz/pgl-treesync/pkg/pathtree"
)

const separator = "\t"

// maxLineLength bounds a single index line.
const maxLineLength = 1 << 20

var (
	// ErrMalformedIndex marks input that does not follow the index grammar.
	ErrMalformedIndex = errors.New("malformed index data")
	// ErrInvalidName is returned when a name cannot be represented in the format.
	ErrInvalidName = errors.New("invalid entry name")
)

// validateName rejects names a directory listing can never produce and names
// that would break the line grammar.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\t\n\r") {
		return ErrInvalidName
	}
	return nil
}

// parseDecimal parses a plain base-10 integer. Signs other than a leading
// minus (when negative is set) are rejected.
func parseDecimal(s string, negative bool) (int64, error) {
	digits := s
	if negative {
		digits = strings.TrimPrefix(s, "-")
	}
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, fmt.Errorf("%q is not a decimal number", s)
	}
	return strconv.ParseInt(s, 10, 64)
}

// MalformedIndexError reports the 1-based line where parsing failed.
type MalformedIndexError struct {
	Line   int
	Reason string
	Err    error
}

func (e *MalformedIndexError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("line %d %s", e.Line, e.Reason)
}

func (e *MalformedIndexError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedIndex, e.Err}
	}
	return []error{ErrMalformedIndex}
}

// Write encodes the children of root, depth first in sorted order.
func Write(w io.Writer, root *pathtree.Node) error {
	bw := bufio.NewWriter(w)
	err := root.Walk(func(parent []string, n *pathtree.Node) error {
		name := n.Name()
		if err := validateName(name); err != nil {
			return fmt.Errorf("%q in %q: %w", name, strings.Join(parent, "/"), err)
		}
		depth := strconv.Itoa(len(parent))
		var line string
		if n.IsDir() {
			line = depth + separator + name + "\n"
		} else {
			line = depth + separator + name +
				separator + strconv.FormatInt(n.Size(), 10) +
				separator + strconv.FormatInt(n.ModTime().UnixMilli(), 10) + "\n"
		}
		_, err := bw.WriteString(line)
		return err
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

// Read decodes an index written by Write into a new root.
func Read(r io.Reader) (*pathtree.Node, error) {
	root := pathtree.NewRoot()
	// stack[d] is the directory that receives nodes of depth d.
	stack := []*pathtree.Node{root}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Split(scanner.Text(), separator)

		depth, err := parseDecimal(fields[0], false)
		if err != nil || depth >= int64(len(stack)) {
			return nil, &MalformedIndexError{Line: lineNo, Reason: fmt.Sprintf("contains invalid level %q", fields[0])}
		}
		stack = stack[:depth+1]
		parent := stack[depth]

		if len(fields) > 1 {
			if err := validateName(fields[1]); err != nil {
				return nil, &MalformedIndexError{Line: lineNo, Reason: fmt.Sprintf("has an invalid name %q", fields[1]), Err: err}
			}
		}

		var node *pathtree.Node
		switch len(fields) {
		case 2:
			node = pathtree.NewDirectory(fields[1])
		case 4:
			size, err := parseDecimal(fields[2], false)
			if err != nil {
				return nil, &MalformedIndexError{Line: lineNo, Reason: "has an invalid size", Err: err}
			}
			millis, err := parseDecimal(fields[3], true)
			if err != nil {
				return nil, &MalformedIndexError{Line: lineNo, Reason: "has an invalid modification time", Err: err}
			}
			node = pathtree.NewFile(fields[1], size, time.UnixMilli(millis))
		default:
			return nil, &MalformedIndexError{Line: lineNo, Reason: "is an invalid entry"}
		}

		if err := parent.Insert(node); err != nil {
			return nil, &MalformedIndexError{Line: lineNo, Reason: "repeats an entry", Err: err}
		}
		if node.IsDir() {
			stack = append(stack, node)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading index after line %d: %w", lineNo, err)
	}
	return root, nil
}
