package cmd

import (
	"fmt"

	"github.com/paulschiretz/pgl-treesync/pkg/config"
	"github.com/paulschiretz/pgl-treesync/pkg/flagparse"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
)

// loadRunConfig builds the configuration for one run: the file named by
// -config (or the defaults), overlaid with the flags the user set.
func loadRunConfig(command flagparse.Command, flagMap map[string]any) (config.Config, error) {
	baseConfig := config.NewDefault()
	if dir, ok := flagMap["config"].(string); ok && dir != "" {
		loaded, err := config.Load(dir)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load configuration: %w", err)
		}
		baseConfig = loaded
	}

	// Merge the flag values over the loaded config to get the final run config.
	runConfig := config.MergeConfigWithFlags(command, baseConfig, flagMap)

	// CRITICAL: Validate the config for the run
	if err := runConfig.Validate(command); err != nil {
		return config.Config{}, err
	}

	level, err := plog.ParseLevel(runConfig.LogLevel)
	if err != nil {
		return config.Config{}, err
	}
	plog.SetLevel(level)
	plog.SetQuiet(runConfig.Runtime.Quiet)

	runConfig.LogSummary(command)
	return runConfig, nil
}
