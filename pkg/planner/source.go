package planner

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// SourceKind tells whether one side of a comparison is scanned from disk or
// loaded from a persisted index.
type SourceKind int

const (
	Directory SourceKind = iota
	IndexFile
)

var sourceKindToString = map[SourceKind]string{
	Directory: "directory",
	IndexFile: "index",
}
var stringToSourceKind = map[string]SourceKind{}

func init() {
	stringToSourceKind = util.InvertMap(sourceKindToString)
}

// String returns the string representation of a SourceKind.
func (k SourceKind) String() string {
	if str, ok := sourceKindToString[k]; ok {
		return str
	}
	return fmt.Sprintf("unknown_source_kind(%d)", k)
}

// ParseSourceKind parses a string and returns the corresponding SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	if kind, ok := stringToSourceKind[s]; ok {
		return kind, nil
	}
	return 0, fmt.Errorf("invalid source kind: %q. Must be 'directory' or 'index'", s)
}

// MarshalJSON implements the json.Marshaler interface for SourceKind.
func (k SourceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for SourceKind.
func (k *SourceKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("SourceKind should be a string, got %s", data)
	}
	kind, err := ParseSourceKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Source is one side of a comparison.
type Source struct {
	Path string
	Kind SourceKind
}

// DetectSource stats path and classifies it. Directories are scanned,
// regular files are read as persisted indexes.
func DetectSource(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("cannot access %s: %w", path, err)
	}
	switch {
	case info.IsDir():
		return Source{Path: path, Kind: Directory}, nil
	case info.Mode().IsRegular():
		return Source{Path: path, Kind: IndexFile}, nil
	default:
		return Source{}, fmt.Errorf("%s is neither a directory nor an index file", path)
	}
}
