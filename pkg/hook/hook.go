// Package hook runs user supplied shell commands before and after a sync.
package hook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/paulschiretz/pgl-treesync/pkg/hints"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
)

var (
	ErrNothingToExecute = hints.New("nothing to execute")
	ErrDisabled         = hints.New("hook execution is disabled")
)

// CommandFunc matches exec.CommandContext.
type CommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

// Executor runs hook commands through the platform shell.
type Executor struct {
	commandContext CommandFunc
}

// NewExecutor creates an Executor. Pass exec.CommandContext outside of tests.
func NewExecutor(commandContext CommandFunc) *Executor {
	return &Executor{commandContext: commandContext}
}

// RunPreSync runs p.PreSyncCommands.
func (e *Executor) RunPreSync(ctx context.Context, p *Plan, env Env, timestampUTC time.Time) error {
	return e.run(ctx, "pre-sync", p.PreSyncCommands, p, env, timestampUTC)
}

// RunPostSync runs p.PostSyncCommands.
func (e *Executor) RunPostSync(ctx context.Context, p *Plan, env Env, timestampUTC time.Time) error {
	return e.run(ctx, "post-sync", p.PostSyncCommands, p, env, timestampUTC)
}

func (e *Executor) run(ctx context.Context, stage string, commands []string, p *Plan, env Env, timestampUTC time.Time) error {
	if !p.Enabled {
		return ErrDisabled
	}
	if len(commands) == 0 {
		return ErrNothingToExecute
	}

	plog.Info("Running hook commands", "stage", stage, "count", len(commands))
	environ := append(os.Environ(),
		"PGL_TREESYNC_STAGE="+stage,
		"PGL_TREESYNC_LEFT="+env.LeftRoot,
		"PGL_TREESYNC_RIGHT="+env.RightRoot,
		"PGL_TREESYNC_POLICY="+env.Policy,
		"PGL_TREESYNC_OUTCOME="+env.Outcome,
		"PGL_TREESYNC_TIMESTAMP="+timestampUTC.Format(time.RFC3339),
	)

	for _, command := range commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.DryRun {
			plog.Info("[DRY RUN] Executing command", "stage", stage, "command", command)
			continue
		}
		plog.Info("Executing command", "stage", stage, "command", command)

		cmd := e.createCommand(ctx, command)
		cmd.Env = append(cmd.Env, environ...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			// A killed process reports its signal; surface the cancellation instead.
			if errors.Is(ctx.Err(), context.Canceled) {
				return context.Canceled
			}
			if p.FailFast {
				return fmt.Errorf("%s command '%s' failed: %w", stage, command, err)
			}
			plog.Warn("Hook command failed", "stage", stage, "command", command, "error", err)
		}
	}
	return nil
}
