//go:build windows

package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

// checkVolumeExists verifies that the drive or share of path is present.
func checkVolumeExists(path string) error {
	volume := filepath.VolumeName(path)
	if volume == "" {
		return nil
	}
	root := volume
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return fmt.Errorf("volume root does not exist: %s. Ensure the drive is connected", root)
	}
	return nil
}

// platformValidateMountPoint rejects roots on fixed system drives when a
// removable or network drive was expected.
func platformValidateMountPoint(path string) error {
	if err := checkVolumeExists(path); err != nil {
		return err
	}
	volume := filepath.VolumeName(path)
	if volume == "" {
		return nil
	}
	root, err := windows.UTF16PtrFromString(volume + string(filepath.Separator))
	if err != nil {
		return err
	}
	if windows.GetDriveType(root) == windows.DRIVE_FIXED && strings.EqualFold(volume, os.Getenv("SystemDrive")) {
		return fmt.Errorf("path '%s' is on the system drive. Ensure your external drive is connected", path)
	}
	return nil
}
