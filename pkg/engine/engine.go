// Package engine runs the index, compare and sync workflows on top of the
// indexer, the diff engine and the synchronizer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/paulschiretz/pgl-treesync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-treesync/pkg/hook"
	"github.com/paulschiretz/pgl-treesync/pkg/indexfile"
	"github.com/paulschiretz/pgl-treesync/pkg/lockfile"
	"github.com/paulschiretz/pgl-treesync/pkg/pathdiff"
	"github.com/paulschiretz/pgl-treesync/pkg/pathtree"
	"github.com/paulschiretz/pgl-treesync/pkg/planner"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
	"github.com/paulschiretz/pgl-treesync/pkg/task"
)

// HookRunner runs the commands around a sync.
type HookRunner interface {
	RunPreSync(ctx context.Context, p *hook.Plan, env hook.Env, timestampUTC time.Time) error
	RunPostSync(ctx context.Context, p *hook.Plan, env hook.Env, timestampUTC time.Time) error
}

var _ HookRunner = (*hook.Executor)(nil)

// Runner executes plans. Index and sync runs on the same roots must not
// overlap; sync enforces this with lock files.
type Runner struct {
	indexer      task.Indexer
	synchronizer task.Synchronizer
	hooks        HookRunner
	out          io.Writer
}

// NewRunner creates a Runner. Compare output goes to os.Stdout.
func NewRunner(ix task.Indexer, s task.Synchronizer, hooks HookRunner) *Runner {
	return &Runner{
		indexer:      ix,
		synchronizer: s,
		hooks:        hooks,
		out:          os.Stdout,
	}
}

// SetOutput redirects the record listing printed by compare and sync.
func (r *Runner) SetOutput(w io.Writer) {
	r.out = w
}

// indexTree scans a single root and logs its progress.
func (r *Runner) indexTree(ctx context.Context, root string, interval time.Duration) (*pathtree.Node, error) {
	t := task.StartIndex(ctx, r.indexer, root)
	task.Poll(ctx, interval, t.Done(), func() {
		plog.Info("Indexing", "root", root, "entries", t.EntryCount())
	})
	return t.Wait()
}

// indexBoth scans both roots at once and logs their progress.
func (r *Runner) indexBoth(ctx context.Context, leftRoot, rightRoot string, interval time.Duration) (*pathtree.Node, *pathtree.Node, error) {
	pair := task.IndexBoth(ctx, r.indexer, leftRoot, rightRoot)
	task.Poll(ctx, interval, pair.Done(), func() {
		plog.Info(pair.Status())
	})
	return pair.Wait()
}

// loadTree scans a directory source or reads an index file source.
func (r *Runner) loadTree(ctx context.Context, src planner.Source, interval time.Duration) (*pathtree.Node, error) {
	if src.Kind == planner.IndexFile {
		plog.Info("Loading index", "path", src.Path)
		return indexfile.Load(src.Path)
	}
	return r.indexTree(ctx, src.Path, interval)
}

// acquireRootLock acquires the lock file of root. A nil release function
// with a nil error means another run holds the lock.
func (r *Runner) acquireRootLock(ctx context.Context, root string) (func(), error) {
	appID := fmt.Sprintf("%s:%s", buildinfo.CommandName, root)

	plog.Debug("Attempting to acquire lock", "path", root)
	lock, err := lockfile.Acquire(ctx, root, appID)
	if err != nil {
		var lockErr *lockfile.ErrLockActive
		if errors.As(err, &lockErr) {
			plog.Warn("Operation is already running for this root, skipping run.", "root", root, "details", lockErr.Error())
			return nil, nil
		}
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", root, err)
	}
	plog.Debug("Lock acquired successfully.", "path", lock.Path(), "run_id", lock.RunID())
	return lock.Release, nil
}

// printRecords writes one line per record.
func (r *Runner) printRecords(records []*pathdiff.Record) {
	for _, rec := range records {
		fmt.Fprintln(r.out, rec.String())
	}
}

func logDiffSummary(msg string, records []*pathdiff.Record) {
	s := pathdiff.Summarize(records)
	plog.Info(msg,
		"differences", s.Total,
		"missing_left", s.ByType[pathdiff.MissingLeft],
		"missing_right", s.ByType[pathdiff.MissingRight],
		"left_newer", s.ByType[pathdiff.LeftNewer],
		"right_newer", s.ByType[pathdiff.RightNewer],
		"size", s.ByType[pathdiff.Size],
		"type_conflicts", s.ByType[pathdiff.LeftDirRightFile]+s.ByType[pathdiff.LeftFileRightDir],
		"moved", s.Moved,
		"resolved", s.Pending,
	)
}
