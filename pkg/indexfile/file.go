package indexfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulschiretz/pgl-treesync/pkg/pathcompression"
	"github.com/paulschiretz/pgl-treesync/pkg/pathtree"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// Save writes root to path, compressed according to the path's extension.
// The file is written to a temporary name first and renamed into place.
func Save(path string, root *pathtree.Node, level pathcompression.Level) (retErr error) {
	format := pathcompression.FormatFromPath(path)

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary index file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	cw, err := pathcompression.NewWriter(tmp, format, level)
	if err != nil {
		return err
	}
	if err := Write(cw, root); err != nil {
		return fmt.Errorf("failed to write index %s: %w", path, err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("failed to finish index %s: %w", path, err)
	}
	if err := tmp.Chmod(util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to set permissions on index %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close index %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move index into place at %s: %w", path, err)
	}

	stats := root.Stats()
	plog.Info("Index saved", "path", path, "format", format, "files", stats.Files, "dirs", stats.Directories, "size", util.ByteCountIEC(stats.Bytes))
	return nil
}

// Load reads an index file written by Save.
func Load(path string) (*pathtree.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	defer f.Close()

	cr, err := pathcompression.NewReader(f, pathcompression.FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	defer cr.Close()

	root, err := Read(cr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index %s: %w", path, err)
	}
	return root, nil
}
