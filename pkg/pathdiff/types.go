package pathdiff

import (
	"encoding/json"
	"fmt"

	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// DiffType classifies why two positions in the trees differ.
type DiffType int

const (
	MissingLeft DiffType = iota
	MissingRight
	LeftDirRightFile
	LeftFileRightDir
	LeftNewer
	RightNewer
	Size
)

var diffTypeToString = map[DiffType]string{
	MissingLeft:      "MISSING_LEFT",
	MissingRight:     "MISSING_RIGHT",
	LeftDirRightFile: "LEFT_DIR_RIGHT_FILE",
	LeftFileRightDir: "LEFT_FILE_RIGHT_DIR",
	LeftNewer:        "LEFT_NEWER",
	RightNewer:       "RIGHT_NEWER",
	Size:             "SIZE",
}

var stringToDiffType map[string]DiffType

func (t DiffType) String() string {
	if str, ok := diffTypeToString[t]; ok {
		return str
	}
	return fmt.Sprintf("unknown_diff_type(%d)", int(t))
}

func ParseDiffType(s string) (DiffType, error) {
	if t, ok := stringToDiffType[s]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("invalid diff type: %q", s)
}

// MarshalJSON implements the json.Marshaler interface for DiffType.
func (t DiffType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for DiffType.
func (t *DiffType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("diff type should be a string, got %s", data)
	}
	parsed, err := ParseDiffType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Action is the resolution chosen for a Record.
type Action int

const (
	None Action = iota
	UseLeft
	UseRight
)

var actionToString = map[Action]string{
	None:     "NONE",
	UseLeft:  "USE_LEFT",
	UseRight: "USE_RIGHT",
}

var stringToAction map[string]Action

func (a Action) String() string {
	if str, ok := actionToString[a]; ok {
		return str
	}
	return fmt.Sprintf("unknown_action(%d)", int(a))
}

func ParseAction(s string) (Action, error) {
	if a, ok := stringToAction[s]; ok {
		return a, nil
	}
	return None, fmt.Errorf("invalid action: %q. Must be 'NONE', 'USE_LEFT', or 'USE_RIGHT'", s)
}

// MarshalJSON implements the json.Marshaler interface for Action.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for Action.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("action should be a string, got %s", data)
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Policy assigns actions to a whole diff list at once.
type Policy string

const (
	// PolicyNone leaves every record unresolved.
	PolicyNone Policy = "none"
	// PolicyLeft resolves every record with the left side.
	PolicyLeft Policy = "left"
	// PolicyRight resolves every record with the right side.
	PolicyRight Policy = "right"
	// PolicyNewer resolves LEFT_NEWER and RIGHT_NEWER records with the newer
	// file and leaves everything else unresolved.
	PolicyNewer Policy = "newer"
)

var policyToString = map[Policy]string{
	PolicyNone:  "none",
	PolicyLeft:  "left",
	PolicyRight: "right",
	PolicyNewer: "newer",
}

var stringToPolicy map[string]Policy

func init() {
	stringToDiffType = util.InvertMap(diffTypeToString)
	stringToAction = util.InvertMap(actionToString)
	stringToPolicy = util.InvertMap(policyToString)
}

func (p Policy) String() string {
	if str, ok := policyToString[p]; ok {
		return str
	}
	return fmt.Sprintf("unknown_policy(%s)", string(p))
}

func ParsePolicy(s string) (Policy, error) {
	if p, ok := stringToPolicy[s]; ok {
		return p, nil
	}
	return "", fmt.Errorf("invalid policy: %q. Must be 'none', 'left', 'right', or 'newer'", s)
}

// MarshalJSON implements the json.Marshaler interface for Policy.
func (p Policy) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for Policy.
func (p *Policy) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("policy should be a string, got %s", data)
	}
	parsed, err := ParsePolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
