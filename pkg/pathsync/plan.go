package pathsync

import (
	"encoding/json"
	"fmt"

	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// DefaultBufferSizeKB is the copy buffer size used when a plan leaves it unset.
const DefaultBufferSizeKB = 256

// CopyMode selects how file content is written to the destination.
type CopyMode int

const (
	// Safe writes to a temporary file in the destination directory and
	// renames it into place once the content and metadata are complete.
	Safe CopyMode = iota
	// Direct writes straight to the destination path.
	Direct
)

var copyModeToString = map[CopyMode]string{Safe: "safe", Direct: "direct"}
var stringToCopyMode = util.InvertMap(copyModeToString)

func (c CopyMode) String() string {
	if str, ok := copyModeToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_copy_mode(%d)", c)
}

// ParseCopyMode parses "safe" or "direct".
func ParseCopyMode(s string) (CopyMode, error) {
	if mode, ok := stringToCopyMode[s]; ok {
		return mode, nil
	}
	return 0, fmt.Errorf("invalid copy mode: %q. Must be 'safe' or 'direct'", s)
}

// MarshalJSON implements the json.Marshaler interface for CopyMode.
func (c CopyMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for CopyMode.
func (c *CopyMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("copy mode should be a string, got %s", data)
	}
	mode, err := ParseCopyMode(s)
	if err != nil {
		return err
	}
	*c = mode
	return nil
}

// Plan configures a Synchronizer.
type Plan struct {
	CopyMode     CopyMode
	BufferSizeKB int

	// DryRun logs planned operations without touching disk or trees.
	DryRun bool
}
