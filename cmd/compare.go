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

// RunCompare prints the differences between two directories or indexes.
// Differences are not an error.
func RunCompare(ctx context.Context, flagMap map[string]any) error {
	runConfig, err := loadRunConfig(flagparse.Compare, flagMap)
	if err != nil {
		return err
	}

	comparePlan, err := planner.GenerateComparePlan(runConfig)
	if err != nil {
		return err
	}

	indexer, err := pathindex.New(pathindex.Options{Excludes: comparePlan.Excludes})
	if err != nil {
		return err
	}
	runner := engine.NewRunner(indexer, pathsync.NewSynchronizer(pathsync.Plan{DryRun: true}), hook.NewExecutor(exec.CommandContext))

	startTime := time.Now()
	if _, err := runner.ExecuteCompare(ctx, comparePlan); err != nil {
		return err
	}
	plog.Info(buildinfo.Name+" compare finished successfully.", "duration", time.Since(startTime).Round(time.Millisecond))
	return nil
}
