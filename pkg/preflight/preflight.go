// Package preflight validates sync roots before any scan or copy starts.
// Apart from the writability probe the checks do not touch the filesystem.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulschiretz/pgl-treesync/pkg/plog"
	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// ErrNestedRoots is returned when one root contains the other.
var ErrNestedRoots = errors.New("roots must not contain each other")

// Run performs the checks selected by p on both roots.
func Run(p Plan, leftRoot, rightRoot string) error {
	if p.RootsAccessible {
		for _, root := range []string{leftRoot, rightRoot} {
			if err := CheckRootAccessible(root); err != nil {
				return err
			}
		}
	}
	if p.PathNesting {
		if err := CheckRootsNotNested(leftRoot, rightRoot); err != nil {
			return err
		}
	}
	if p.RequireMounted {
		for _, root := range []string{leftRoot, rightRoot} {
			if err := platformValidateMountPoint(root); err != nil {
				return err
			}
		}
	}
	if p.RootsWritable {
		for _, root := range []string{leftRoot, rightRoot} {
			if err := CheckRootWritable(root); err != nil {
				return err
			}
		}
	}
	plog.Debug("Preflight checks passed", "left", leftRoot, "right", rightRoot)
	return nil
}

// CheckRootAccessible verifies that root exists and is a directory.
func CheckRootAccessible(root string) error {
	if err := checkVolumeExists(root); err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("root directory %s does not exist", root)
		}
		return fmt.Errorf("cannot stat root directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path %s is not a directory", root)
	}
	return nil
}

// CheckRootsNotNested rejects identical roots and roots where one lies
// inside the other; a sync between them would copy into its own input.
func CheckRootsNotNested(leftRoot, rightRoot string) error {
	left, err := util.AbsPath(leftRoot)
	if err != nil {
		return err
	}
	right, err := util.AbsPath(rightRoot)
	if err != nil {
		return err
	}
	if isWithin(left, right) || isWithin(right, left) {
		return fmt.Errorf("%w: %s and %s", ErrNestedRoots, leftRoot, rightRoot)
	}
	return nil
}

// isWithin reports whether path equals base or lies below it.
func isWithin(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// CheckRootWritable creates and removes a probe file in root.
func CheckRootWritable(root string) error {
	probe := filepath.Join(root, ".pgl-treesync-writetest.tmp")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("root directory %s is not writable: %w", root, err)
	}
	f.Close()
	_ = os.Remove(probe)
	return nil
}
