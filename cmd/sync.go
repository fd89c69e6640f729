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

// RunSync synchronizes two directories.
func RunSync(ctx context.Context, flagMap map[string]any) error {
	runConfig, err := loadRunConfig(flagparse.Sync, flagMap)
	if err != nil {
		return err
	}

	// Get the Plan
	syncPlan, err := planner.GenerateSyncPlan(runConfig)
	if err != nil {
		return err
	}

	// Create the runner and feed it with our leaf workers
	indexer, err := pathindex.New(pathindex.Options{Excludes: syncPlan.Excludes})
	if err != nil {
		return err
	}
	runner := engine.NewRunner(
		indexer,
		pathsync.NewSynchronizer(*syncPlan.Sync),
		hook.NewExecutor(exec.CommandContext),
	)

	// Execute the plan
	startTime := time.Now()
	err = runner.ExecuteSync(ctx, syncPlan)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err // The error will be logged with full details by main()
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)
	return nil
}
