package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/paulschiretz/pgl-treesync/pkg/buildinfo"
)

// RunVersion prints the application version and build platform.
func RunVersion(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s version %s (%s, %s/%s)\n",
		buildinfo.Name, buildinfo.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return err
}
