package pathcompression

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// Format is the compression applied to a stream.
type Format string

const (
	None Format = "none"
	Gzip Format = "gzip"
	Zstd Format = "zstd"
)

var formatToString = map[Format]string{
	None: "none",
	Gzip: "gzip",
	Zstd: "zstd",
}

var formatToExtension = map[Format]string{
	Gzip: ".gz",
	Zstd: ".zst",
}

var stringToFormat map[string]Format
var extensionToFormat map[string]Format

func init() {
	stringToFormat = util.InvertMap(formatToString)
	extensionToFormat = util.InvertMap(formatToExtension)
}

func (f Format) String() string {
	if str, ok := formatToString[f]; ok {
		return str
	}
	return fmt.Sprintf("unknown_compression_format(%s)", string(f))
}

// Extension returns the file extension for f, empty for None.
func (f Format) Extension() string {
	return formatToExtension[f]
}

func ParseFormat(s string) (Format, error) {
	if format, ok := stringToFormat[s]; ok {
		return format, nil
	}
	return "", fmt.Errorf("invalid compression format: %q. Must be 'none', 'gzip', or 'zstd'", s)
}

// FormatFromPath picks the format from a file name: ".gz" is gzip, ".zst"
// is zstd and anything else is uncompressed.
func FormatFromPath(path string) Format {
	if f, ok := extensionToFormat[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return None
}

// MarshalJSON implements the json.Marshaler interface for Format.
func (f Format) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for Format.
func (f *Format) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("compression format should be a string, got %s", data)
	}
	format, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = format
	return nil
}
