package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/paulschiretz/pgl-treesync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-treesync/pkg/config"
	"github.com/paulschiretz/pgl-treesync/pkg/flagparse"
	"github.com/paulschiretz/pgl-treesync/pkg/lockfile"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
	"github.com/paulschiretz/pgl-treesync/pkg/preflight"
	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// RunInit writes a configuration file to the -base directory. Without
// -force, an existing file is updated with the flags given and kept
// otherwise; with -force it is replaced by the defaults after confirmation.
func RunInit(ctx context.Context, flagMap map[string]any) error {
	base, ok := flagMap["base"].(string)
	if !ok || base == "" {
		return fmt.Errorf("the -base flag is required for the init operation")
	}
	absBasePath, err := util.AbsPath(base)
	if err != nil {
		return fmt.Errorf("could not determine absolute base path for %s: %w", base, err)
	}

	force, _ := flagMap["force"].(bool)

	var baseConfig config.Config
	if force {
		absConfigFilePath := filepath.Join(absBasePath, config.ConfigFileName)
		if _, err := os.Stat(absConfigFilePath); err == nil {
			fmt.Printf("WARNING: Configuration file already exists at %s.\n", absConfigFilePath)
			fmt.Printf("Using -force will overwrite it with default values. All custom settings will be lost.\n")
			if !PromptForConfirmation("Are you sure you want to continue?", false) {
				plog.Info(buildinfo.Name + " init operation canceled.")
				return nil
			}
		}
		baseConfig = config.NewDefault()
	} else {
		// config.Load returns the defaults if the file simply doesn't exist.
		baseConfig, err = config.Load(absBasePath)
		if err != nil {
			plog.Warn("Could not load existing configuration, starting with defaults.", "reason", err)
			baseConfig = config.NewDefault()
		}
	}
	baseConfig.Base = absBasePath
	// An explicit empty list in an existing file is kept.
	if baseConfig.Index.DefaultExcludes == nil {
		baseConfig.Index.DefaultExcludes = slices.Clone(config.CommonExcludes)
	}

	runConfig := config.MergeConfigWithFlags(flagparse.Init, baseConfig, flagMap)
	runConfig.Base = absBasePath
	if err := runConfig.Validate(flagparse.Init); err != nil {
		return err
	}

	startTime := time.Now()

	if err := preflight.CheckRootAccessible(runConfig.Base); err != nil {
		return fmt.Errorf("initialization preflight failed: %w", err)
	}
	if err := preflight.CheckRootWritable(runConfig.Base); err != nil {
		return fmt.Errorf("initialization preflight failed: %w", err)
	}

	// Keep a sync from reading the file while it is replaced.
	appID := fmt.Sprintf("%s-init:%s", buildinfo.CommandName, runConfig.Base)
	lock, err := lockfile.Acquire(ctx, runConfig.Base, appID)
	if err != nil {
		return fmt.Errorf("failed to acquire lock on base directory: %w", err)
	}
	defer lock.Release()

	if err := config.Generate(runConfig); err != nil {
		return fmt.Errorf("failed to generate config file: %w", err)
	}

	duration := time.Since(startTime).Round(time.Millisecond)
	plog.Info(buildinfo.Name+" configuration successfully initialized.", "duration", duration)
	return nil
}

// PromptForConfirmation prompts the user for a yes/no response.
func PromptForConfirmation(prompt string, defaultYes bool) bool {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Printf("%s %s: ", prompt, suffix)

	var response string
	_, _ = fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))

	if response == "" {
		return defaultYes
	}
	return response == "y" || response == "yes"
}
