package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulschiretz/pgl-treesync/pkg/hints"
	"github.com/paulschiretz/pgl-treesync/pkg/hook"
	"github.com/paulschiretz/pgl-treesync/pkg/indexfile"
	"github.com/paulschiretz/pgl-treesync/pkg/pathdiff"
	"github.com/paulschiretz/pgl-treesync/pkg/pathsync"
	"github.com/paulschiretz/pgl-treesync/pkg/pathtree"
	"github.com/paulschiretz/pgl-treesync/pkg/planner"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
	"github.com/paulschiretz/pgl-treesync/pkg/preflight"
	"github.com/paulschiretz/pgl-treesync/pkg/task"
	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// --- Workflow overview ---
//
// index:   scan one root and persist the tree.
// compare: obtain both trees (scan or load), diff them and print the records.
// sync:    preflight, lock both roots, pre-sync hooks, scan both roots,
//          diff, resolve by policy, apply, post-sync hooks, re-diff.
//
// Every long running step runs as a task and is polled for progress. A
// cancelled sync stops between records; the trees on disk are then only
// partially synchronized and a fresh compare shows what is left.

// ExecuteIndex scans p.Root and writes the tree to p.Out.
func (r *Runner) ExecuteIndex(ctx context.Context, p *planner.IndexPlan) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := preflight.CheckRootAccessible(p.Root); err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}

	plog.Info("Starting index", "root", p.Root, "out", p.Out)
	root, err := r.indexTree(ctx, p.Root, p.ProgressInterval)
	if err != nil {
		return fmt.Errorf("indexing %s failed: %w", p.Root, err)
	}

	if err := indexfile.Save(p.Out, root, p.CompressionLevel); err != nil {
		return fmt.Errorf("saving index failed: %w", err)
	}
	stats := root.Stats()
	plog.Info("Index completed",
		"out", p.Out,
		"files", stats.Files,
		"dirs", stats.Directories,
		"bytes", util.ByteCountIEC(stats.Bytes),
	)
	return nil
}

// ExecuteCompare diffs the two sources of p and prints the records with the
// actions p.Policy would assign.
func (r *Runner) ExecuteCompare(ctx context.Context, p *planner.ComparePlan) ([]*pathdiff.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if p.Preflight != nil {
		if err := preflight.Run(*p.Preflight, p.Left.Path, p.Right.Path); err != nil {
			return nil, fmt.Errorf("preflight failed: %w", err)
		}
	}

	plog.Info("Starting compare", "left", p.Left.Path, "left_kind", p.Left.Kind, "right", p.Right.Path, "right_kind", p.Right.Kind)
	left, right, err := r.loadTrees(ctx, p)
	if err != nil {
		return nil, err
	}

	build := pathdiff.Build
	if p.Ungrouped {
		build = pathdiff.BuildUngrouped
	}
	records, err := build(left, right)
	if err != nil {
		return nil, fmt.Errorf("diff failed: %w", err)
	}
	pathdiff.ApplyPolicy(records, p.Policy)

	r.printRecords(records)
	logDiffSummary("Compare completed", records)
	return records, nil
}

func (r *Runner) loadTrees(ctx context.Context, p *planner.ComparePlan) (*pathtree.Node, *pathtree.Node, error) {
	if p.Left.Kind == planner.Directory && p.Right.Kind == planner.Directory {
		left, right, err := r.indexBoth(ctx, p.Left.Path, p.Right.Path, p.ProgressInterval)
		if err != nil {
			return nil, nil, fmt.Errorf("indexing failed: %w", err)
		}
		return left, right, nil
	}

	left, err := r.loadTree(ctx, p.Left, p.ProgressInterval)
	if err != nil {
		return nil, nil, fmt.Errorf("loading left %s failed: %w", p.Left.Path, err)
	}
	right, err := r.loadTree(ctx, p.Right, p.ProgressInterval)
	if err != nil {
		return nil, nil, fmt.Errorf("loading right %s failed: %w", p.Right.Path, err)
	}
	return left, right, nil
}

// ExecuteSync brings the two roots of p together according to p.Policy.
func (r *Runner) ExecuteSync(ctx context.Context, p *planner.SyncPlan) (retErr error) {
	// Check for cancellation at the very beginning.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// save the execution timestamp
	timestampUTC := time.Now().UTC()

	if err := preflight.Run(*p.Preflight, p.Left, p.Right); err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}

	// A dry run never writes to the roots, lock files included.
	if !p.DryRun {
		for _, root := range []string{p.Left, p.Right} {
			releaseLock, err := r.acquireRootLock(ctx, root)
			if err != nil {
				return err
			}
			if releaseLock == nil {
				return nil
			}
			defer releaseLock()
		}
	}

	env := hook.Env{LeftRoot: p.Left, RightRoot: p.Right, Policy: p.Policy.String()}

	// --- Pre-Sync Hooks ---
	if err := r.hooks.RunPreSync(ctx, p.Hooks, env, timestampUTC); err != nil {
		if hints.IsHint(err) {
			plog.Debug("Pre-sync hooks skipped", "reason", err)
		} else {
			errMsg := "pre-sync hook failed"
			if errors.Is(err, context.Canceled) {
				errMsg = "pre-sync hook canceled"
			}
			return fmt.Errorf("%s: %w", errMsg, err)
		}
	}

	// --- Post-Sync Hooks (deferred) ---
	// These run even if the sync fails.
	defer func() {
		env.Outcome = "success"
		if retErr != nil {
			env.Outcome = "failure"
		}
		if err := r.hooks.RunPostSync(ctx, p.Hooks, env, timestampUTC); err != nil {
			switch {
			case hints.IsHint(err):
				plog.Debug("Post-sync hooks skipped", "reason", err)
			case errors.Is(err, context.Canceled):
				plog.Info("post-sync hooks skipped due to cancellation.")
			default:
				plog.Warn("post-sync hook failed", "error", err)
			}
		}
	}()

	plog.Info("Starting sync", "left", p.Left, "right", p.Right, "policy", p.Policy, "dry_run", p.DryRun)

	left, right, err := r.indexBoth(ctx, p.Left, p.Right, p.ProgressInterval)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	records, err := pathdiff.Build(left, right)
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}
	logDiffSummary("Comparison finished", records)

	if pathdiff.ApplyPolicy(records, p.Policy) == 0 {
		plog.Info("Nothing to synchronize", "policy", p.Policy, "differences", len(records))
		return nil
	}

	leftSide := pathsync.Side{BasePath: p.Left, Root: left}
	rightSide := pathsync.Side{BasePath: p.Right, Root: right}
	t := task.StartSync(ctx, r.synchronizer, leftSide, rightSide, records)
	task.Poll(ctx, p.ProgressInterval, t.Done(), func() {
		plog.Info(t.Status())
	})
	err = t.Wait()
	t.Metrics().LogSummary("Sync finished")
	if err != nil {
		if errors.Is(err, context.Canceled) {
			plog.Warn("Sync interrupted; the roots are partially synchronized. Run compare to see what is left.")
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	if p.DryRun {
		plog.Info("[DRY RUN] Sync completed, no changes were made")
		return nil
	}

	remaining, err := pathdiff.Build(left, right)
	if err != nil {
		return fmt.Errorf("re-diff failed: %w", err)
	}
	if p.ShowRemainingRecords {
		r.printRecords(remaining)
	}
	logDiffSummary("Sync completed", remaining)
	return nil
}
