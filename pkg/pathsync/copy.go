package pathsync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/paulschiretz/pgl-treesync/pkg/pathtree"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// metricWriter counts bytes as they are written.
type metricWriter struct {
	w       io.Writer
	metrics Metrics
}

func (mw *metricWriter) Write(p []byte) (n int, err error) {
	n, err = mw.w.Write(p)
	if n > 0 {
		mw.metrics.AddBytesCopied(int64(n))
	}
	return
}

// contextReader stops a copy between reads once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// copyNode copies the entry described by n from absSrc to absDst. Directories
// are copied by following the node's children, so only indexed entries are
// transferred.
func (s *Synchronizer) copyNode(ctx context.Context, n *pathtree.Node, absSrc, absDst string, m Metrics) error {
	if !n.IsDir() {
		if err := s.copyFile(ctx, absSrc, absDst, m); err != nil {
			return err
		}
		m.AddFilesCopied(1)
		return nil
	}

	info, err := os.Stat(absSrc)
	if err != nil {
		return &MutationError{Op: "stat source directory", Path: absSrc, Err: err}
	}
	if !info.IsDir() {
		return &MutationError{Op: "copy directory", Path: absSrc, Err: fmt.Errorf("source is no longer a directory")}
	}
	if err := os.Mkdir(absDst, util.WithUserDirPermissions(info.Mode().Perm())); err != nil {
		return &MutationError{Op: "create directory", Path: absDst, Err: err}
	}
	m.AddDirsCreated(1)

	for _, child := range n.Children() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("copy of %s interrupted: %w", absSrc, err)
		}
		childSrc := filepath.Join(absSrc, child.Name())
		childDst := filepath.Join(absDst, child.Name())
		if err := s.copyNode(ctx, child, childSrc, childDst, m); err != nil {
			return err
		}
	}

	// Restored last, after the children stopped touching the directory.
	if err := os.Chtimes(absDst, info.ModTime(), info.ModTime()); err != nil {
		return &MutationError{Op: "set timestamps on", Path: absDst, Err: err}
	}
	return nil
}

func (s *Synchronizer) copyFile(ctx context.Context, absSrc, absDst string, m Metrics) error {
	in, err := os.Open(absSrc)
	if err != nil {
		return &MutationError{Op: "open source file", Path: absSrc, Err: err}
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return &MutationError{Op: "stat source file", Path: absSrc, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &MutationError{Op: "copy", Path: absSrc, Err: fmt.Errorf("source is no longer a regular file")}
	}

	src := &contextReader{ctx: ctx, r: in}
	if s.plan.CopyMode == Direct {
		return s.copyFileDirect(src, absSrc, absDst, info, m)
	}
	return s.copyFileSafe(src, absSrc, absDst, info, m)
}

// copyFileSafe writes to a temporary file next to the destination and renames
// it into place. A failed or cancelled copy removes the temporary file and
// leaves no partial destination behind.
func (s *Synchronizer) copyFileSafe(src io.Reader, absSrc, absDst string, info os.FileInfo, m Metrics) error {
	absDstDir := filepath.Dir(absDst)
	out, err := os.CreateTemp(absDstDir, ".pgl-treesync-*.tmp")
	if err != nil {
		return &MutationError{Op: "create temporary file in", Path: absDstDir, Err: err}
	}
	defer out.Close()

	absTempPath := out.Name()
	defer func() {
		if absTempPath != "" {
			os.Remove(absTempPath)
		}
	}()

	if err := s.writeContent(out, src, m); err != nil {
		return &MutationError{Op: "copy content of", Path: absSrc, Err: err}
	}
	if err := out.Chmod(util.WithUserWritePermission(info.Mode().Perm())); err != nil {
		return &MutationError{Op: "set permissions on", Path: absTempPath, Err: err}
	}
	// Close before Chtimes; flushing may touch the modification time.
	if err := out.Close(); err != nil {
		return &MutationError{Op: "close", Path: absTempPath, Err: err}
	}
	if err := os.Chtimes(absTempPath, info.ModTime(), info.ModTime()); err != nil {
		return &MutationError{Op: "set timestamps on", Path: absTempPath, Err: err}
	}
	if err := os.Rename(absTempPath, absDst); err != nil {
		return &MutationError{Op: "move into place", Path: absDst, Err: err}
	}
	absTempPath = ""
	return nil
}

// copyFileDirect writes straight to the destination. An interrupted copy
// leaves a partial file behind.
func (s *Synchronizer) copyFileDirect(src io.Reader, absSrc, absDst string, info os.FileInfo, m Metrics) error {
	out, err := os.OpenFile(absDst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, util.WithUserWritePermission(info.Mode().Perm()))
	if err != nil {
		return &MutationError{Op: "open destination file", Path: absDst, Err: err}
	}
	defer out.Close()

	if err := s.writeContent(out, src, m); err != nil {
		return &MutationError{Op: "copy content of", Path: absSrc, Err: err}
	}
	if err := out.Chmod(util.WithUserWritePermission(info.Mode().Perm())); err != nil {
		return &MutationError{Op: "set permissions on", Path: absDst, Err: err}
	}
	if err := out.Close(); err != nil {
		return &MutationError{Op: "close", Path: absDst, Err: err}
	}
	if err := os.Chtimes(absDst, info.ModTime(), info.ModTime()); err != nil {
		return &MutationError{Op: "set timestamps on", Path: absDst, Err: err}
	}
	return nil
}

func (s *Synchronizer) writeContent(out io.Writer, src io.Reader, m Metrics) error {
	bufPtr := s.bufferPool.Get()
	defer s.bufferPool.Put(bufPtr)
	_, err := io.CopyBuffer(&metricWriter{w: out, metrics: m}, src, *bufPtr)
	return err
}

// deleteRecursively removes path and everything below it. A path that does
// not exist is not an error.
func deleteRecursively(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			plog.Debug("Nothing to delete", "path", path)
			return nil
		}
		return &MutationError{Op: "stat", Path: path, Err: err}
	}
	if err := os.RemoveAll(path); err != nil {
		return &MutationError{Op: "delete", Path: path, Err: err}
	}
	return nil
}
