package pathcompression

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// Level trades compression speed against output size.
type Level string

const (
	Default Level = "default"
	Fastest Level = "fastest"
	Better  Level = "better"
	Best    Level = "best"
)

// levels lists every Level with its native setting per format.
var levels = map[Level]struct {
	zstd zstd.EncoderLevel
	gzip int
}{
	Default: {zstd.SpeedDefault, pgzip.DefaultCompression},
	Fastest: {zstd.SpeedFastest, pgzip.BestSpeed},
	Better:  {zstd.SpeedBetterCompression, 7},
	Best:    {zstd.SpeedBestCompression, pgzip.BestCompression},
}

// String returns the level name. Unknown levels read as Default.
func (l Level) String() string {
	if _, ok := levels[l]; ok {
		return string(l)
	}
	return string(Default)
}

func (l Level) zstdLevel() zstd.EncoderLevel { return levels[Level(l.String())].zstd }
func (l Level) gzipLevel() int               { return levels[Level(l.String())].gzip }

// ParseLevel parses a level name; an empty string selects Default.
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return Default, nil
	}
	if _, ok := levels[Level(s)]; ok {
		return Level(s), nil
	}
	return "", fmt.Errorf("invalid compression level: %q. Must be 'default', 'fastest', 'better', or 'best'", s)
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("compression level should be a string, got %s", data)
	}
	level, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = level
	return nil
}
