package pathindex

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"

	"github.com/paulschiretz/pgl-treesync/pkg/pathtree"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
)

// Options configures an Indexer.
type Options struct {
	// Excludes are patterns matched against the slash-separated path relative
	// to the scan root. Excluded entries are neither counted nor indexed.
	Excludes []string
}

// Indexer scans a directory tree into a pathtree.
type Indexer struct {
	exclusions exclusionSet
}

// New creates an Indexer. It fails if an exclusion pattern is malformed.
func New(opts Options) (*Indexer, error) {
	set, err := makeExclusionSet(opts.Excludes)
	if err != nil {
		return nil, err
	}
	return &Indexer{exclusions: set}, nil
}

// BuildIndex walks rootPath depth first and returns its tree. counter is
// incremented once for every entry visited, the root included, so another
// goroutine can poll it while the scan runs. counter may be nil.
//
// Directories that cannot be listed are logged and left out. Symlinks and
// special files are logged and left out. A file whose attributes cannot be
// read aborts the build with an *AttributeReadError.
func (ix *Indexer) BuildIndex(ctx context.Context, rootPath string, counter *atomic.Int64) (*pathtree.Node, error) {
	if counter == nil {
		counter = new(atomic.Int64)
	}

	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access index root %s: %w", rootPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", rootPath, ErrRootNotDirectory)
	}

	counter.Add(1)
	root := pathtree.NewRoot()
	entries, err := os.ReadDir(rootPath)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrRootUnlistable, rootPath, err)
	}
	if err := ix.fill(ctx, root, rootPath, "", entries, counter); err != nil {
		return nil, err
	}
	plog.Debug("Index built", "root", rootPath, "entries", counter.Load())
	return root, nil
}

// fill adds the given directory entries to dir. relDir is the slash-separated
// path of dir below the scan root.
func (ix *Indexer) fill(ctx context.Context, dir *pathtree.Node, absDir, relDir string, entries []fs.DirEntry, counter *atomic.Int64) error {
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		name := entry.Name()
		relPath := path.Join(relDir, name)
		if !ix.exclusions.empty() && ix.exclusions.matches(relPath, name) {
			plog.Debug("Excluded from index", "path", relPath)
			continue
		}

		absPath := filepath.Join(absDir, name)
		counter.Add(1)

		child, err := ix.buildNode(ctx, entry, absPath, relPath, counter)
		if err != nil {
			return err
		}
		if child == nil {
			continue
		}
		if err := dir.Insert(child); err != nil {
			return fmt.Errorf("indexing %s: %w", absPath, err)
		}
	}
	return nil
}

// buildNode returns nil without an error for entries that are skipped.
func (ix *Indexer) buildNode(ctx context.Context, entry fs.DirEntry, absPath, relPath string, counter *atomic.Int64) (*pathtree.Node, error) {
	mode := entry.Type()
	switch {
	case mode.IsDir():
		entries, err := os.ReadDir(absPath)
		if err != nil {
			plog.Warn("Skipping directory", "error", &TraversalError{Path: absPath, Err: err})
			return nil, nil
		}
		dir := pathtree.NewDirectory(entry.Name())
		if err := ix.fill(ctx, dir, absPath, relPath, entries, counter); err != nil {
			return nil, err
		}
		return dir, nil

	case mode.IsRegular():
		info, err := entry.Info()
		if err != nil {
			return nil, &AttributeReadError{Path: absPath, Err: err}
		}
		// The entry may have been replaced between listing and stat.
		if !info.Mode().IsRegular() {
			plog.Warn("Skipping entry that changed type during scan", "path", absPath)
			return nil, nil
		}
		return pathtree.NewFile(entry.Name(), info.Size(), info.ModTime()), nil

	default:
		plog.Warn("Skipping entry that is neither file nor directory", "path", absPath, "type", mode.String())
		return nil, nil
	}
}
