package cmd

import (
	"context"
	"os/exec"
	"time"

	"github.com/paulschiretz/pgl-treesync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-treesync/pkg/engine"
	"github.com/paulschiretz/pgl-treesync/pkg/flagparse"
	"github.com/paulschiretz/pgl-treesync/pkg/hook"
	"github.com/paulschiretz/pgl-treesync/pkg/pathindex"
	"github.com/paulschiretz/pgl-treesync/pkg/pathsync"
	"github.com/paulschiretz/pgl-treesync/pkg/planner"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
)

// RunIndex scans a directory and persists its tree.
func RunIndex(ctx context.Context, flagMap map[string]any) error {
	runConfig, err := loadRunConfig(flagparse.Index, flagMap)
	if err != nil {
		return err
	}

	indexPlan, err := planner.GenerateIndexPlan(runConfig)
	if err != nil {
		return err
	}

	indexer, err := pathindex.New(pathindex.Options{Excludes: indexPlan.Excludes})
	if err != nil {
		return err
	}
	runner := engine.NewRunner(indexer, pathsync.NewSynchronizer(pathsync.Plan{}), hook.NewExecutor(exec.CommandContext))

	startTime := time.Now()
	if err := runner.ExecuteIndex(ctx, indexPlan); err != nil {
		return err // The error will be logged with full details by main()
	}
	plog.Info(buildinfo.Name+" index finished successfully.", "duration", time.Since(startTime).Round(time.Millisecond))
	return nil
}
