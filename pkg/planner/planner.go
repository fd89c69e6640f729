// Package planner turns a validated configuration into the plans the engine
// executes for each command.
package planner

import (
	"fmt"
	"time"

	"github.com/paulschiretz/pgl-treesync/pkg/config"
	"github.com/paulschiretz/pgl-treesync/pkg/hook"
	"github.com/paulschiretz/pgl-treesync/pkg/pathcompression"
	"github.com/paulschiretz/pgl-treesync/pkg/pathdiff"
	"github.com/paulschiretz/pgl-treesync/pkg/pathsync"
	"github.com/paulschiretz/pgl-treesync/pkg/preflight"
)

type IndexPlan struct {
	Root string
	Out  string

	Excludes         []string
	CompressionLevel pathcompression.Level
	ProgressInterval time.Duration
}

type ComparePlan struct {
	Left  Source
	Right Source

	Excludes         []string
	Ungrouped        bool
	Policy           pathdiff.Policy
	ProgressInterval time.Duration

	// Preflight is nil unless both sides are directories.
	Preflight *preflight.Plan
}

type SyncPlan struct {
	Left  string
	Right string

	Excludes             []string
	Policy               pathdiff.Policy
	DryRun               bool
	ShowRemainingRecords bool
	ProgressInterval     time.Duration

	Preflight *preflight.Plan
	Sync      *pathsync.Plan
	Hooks     *hook.Plan
}

func GenerateIndexPlan(cfg config.Config) (*IndexPlan, error) {
	level, err := pathcompression.ParseLevel(cfg.Index.CompressionLevel)
	if err != nil {
		return nil, err
	}
	return &IndexPlan{
		Root:             cfg.Runtime.Root,
		Out:              cfg.Runtime.Out,
		Excludes:         cfg.Index.Excludes(),
		CompressionLevel: level,
		ProgressInterval: cfg.ProgressInterval(),
	}, nil
}

func GenerateComparePlan(cfg config.Config) (*ComparePlan, error) {
	policy, err := pathdiff.ParsePolicy(cfg.Sync.Policy)
	if err != nil {
		return nil, err
	}
	left, err := DetectSource(cfg.Runtime.Left)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	right, err := DetectSource(cfg.Runtime.Right)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	p := &ComparePlan{
		Left:             left,
		Right:            right,
		Excludes:         cfg.Index.Excludes(),
		Ungrouped:        cfg.Runtime.Ungrouped,
		Policy:           policy,
		ProgressInterval: cfg.ProgressInterval(),
	}
	if left.Kind == Directory && right.Kind == Directory {
		// Read-only, so identical or nested roots are fine.
		p.Preflight = &preflight.Plan{RootsAccessible: true}
	}
	return p, nil
}

func GenerateSyncPlan(cfg config.Config) (*SyncPlan, error) {

	// Global Flags
	dryRun := cfg.Runtime.DryRun

	policy, err := pathdiff.ParsePolicy(cfg.Sync.Policy)
	if err != nil {
		return nil, err
	}
	copyMode, err := pathsync.ParseCopyMode(cfg.Sync.CopyMode)
	if err != nil {
		return nil, err
	}

	return &SyncPlan{
		Left:                 cfg.Runtime.Left,
		Right:                cfg.Runtime.Right,
		Excludes:             cfg.Index.Excludes(),
		Policy:               policy,
		DryRun:               dryRun,
		ShowRemainingRecords: cfg.Sync.ShowRemainingRecords,
		ProgressInterval:     cfg.ProgressInterval(),

		Preflight: &preflight.Plan{
			RootsAccessible: true,
			RootsWritable:   !dryRun,
			PathNesting:     true,
			RequireMounted:  cfg.Sync.RequireMountedRoots,
		},
		Sync: &pathsync.Plan{
			CopyMode:     copyMode,
			BufferSizeKB: cfg.Sync.BufferSizeKB,
			DryRun:       dryRun,
		},
		Hooks: &hook.Plan{
			Enabled:          len(cfg.Hooks.PreSync)+len(cfg.Hooks.PostSync) > 0,
			PreSyncCommands:  cfg.Hooks.PreSync,
			PostSyncCommands: cfg.Hooks.PostSync,
			DryRun:           dryRun,
			FailFast:         cfg.Hooks.FailFast,
		},
	}, nil
}
