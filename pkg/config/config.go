package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulschiretz/pgl-treesync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-treesync/pkg/flagparse"
	"github.com/paulschiretz/pgl-treesync/pkg/lockfile"
	"github.com/paulschiretz/pgl-treesync/pkg/pathcompression"
	"github.com/paulschiretz/pgl-treesync/pkg/pathdiff"
	"github.com/paulschiretz/pgl-treesync/pkg/pathindex"
	"github.com/paulschiretz/pgl-treesync/pkg/pathsync"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// ConfigFileName is the name of the configuration file.
const ConfigFileName = "pgl-treesync.config.json"

// systemExcludes are the files this tool writes into a root. They are always
// excluded from indexing.
var systemExcludes = []string{
	lockfile.LockFileName,
	lockfile.LockFileName + ".*.tmp",
	ConfigFileName,
	".pgl-treesync-*.tmp",
}

// CommonExcludes are OS and editor clutter patterns. They are not applied by
// default; init seeds them into a new configuration file.
var CommonExcludes = []string{
	"*.tmp",
	"*.swp",
	"~*",
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"$Recycle.Bin/",
	"#recycle/",
	"@eaDir/",
}

type IndexConfig struct {
	DefaultExcludes []string `json:"defaultExcludes"`
	// omitempty is not used so the field shows up in generated files.
	UserExcludes     []string `json:"userExcludes"`
	CompressionLevel string   `json:"compressionLevel"`
}

type SyncConfig struct {
	Policy               string `json:"policy"`
	CopyMode             string `json:"copyMode"`
	BufferSizeKB         int    `json:"bufferSizeKB"`
	ProgressIntervalMs   int    `json:"progressIntervalMs"`
	RequireMountedRoots  bool   `json:"requireMountedRoots"`
	ShowRemainingRecords bool   `json:"showRemainingRecords"`
}

type HooksConfig struct {
	// SECURITY: hook commands run as provided through the system shell.
	PreSync  []string `json:"preSync"`
	PostSync []string `json:"postSync"`
	FailFast bool     `json:"failFast"`
}

// RuntimeConfig holds the per-invocation settings that never go to the file.
type RuntimeConfig struct {
	Root      string
	Out       string
	Left      string
	Right     string
	DryRun    bool
	Quiet     bool
	Ungrouped bool
	Force     bool
}

type Config struct {
	Version  string        `json:"version"`
	Base     string        `json:"-"`
	Runtime  RuntimeConfig `json:"-"`
	LogLevel string        `json:"logLevel"`
	Index    IndexConfig   `json:"index"`
	Sync     SyncConfig    `json:"sync"`
	Hooks    HooksConfig   `json:"hooks"`
}

// NewDefault returns the built-in configuration.
func NewDefault() Config {
	return Config{
		Version:  buildinfo.Version,
		LogLevel: "info",
		Index: IndexConfig{
			UserExcludes:     []string{},
			CompressionLevel: pathcompression.Default.String(),
		},
		Sync: SyncConfig{
			Policy:             pathdiff.PolicyNewer.String(),
			CopyMode:           pathsync.Safe.String(),
			BufferSizeKB:       pathsync.DefaultBufferSizeKB,
			ProgressIntervalMs: 500,
		},
		Hooks: HooksConfig{
			PreSync:  []string{},
			PostSync: []string{},
		},
	}
}

// Load reads ConfigFileName from dir on top of the defaults. A missing file
// yields the defaults.
func Load(dir string) (Config, error) {
	absDir, err := util.AbsPath(dir)
	if err != nil {
		return Config{}, fmt.Errorf("could not determine absolute path for config directory %s: %w", dir, err)
	}
	configPath := filepath.Join(absDir, ConfigFileName)

	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := NewDefault()
			cfg.Base = absDir
			return cfg, nil
		}
		return Config{}, fmt.Errorf("error opening config file %s: %w", configPath, err)
	}
	defer file.Close()

	plog.Info("Loading configuration", "path", configPath)
	cfg := NewDefault()
	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}
	cfg.Base = absDir
	cfg.Version = buildinfo.Version
	return cfg, nil
}

// Generate writes cfg to ConfigFileName in cfg.Base.
func Generate(cfg Config) error {
	if cfg.Base == "" {
		return fmt.Errorf("config base directory cannot be empty")
	}
	configPath := filepath.Join(cfg.Base, ConfigFileName)
	jsonData, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config to JSON: %w", err)
	}
	if err := os.WriteFile(configPath, jsonData, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	plog.Info("Successfully saved config file", "path", configPath)
	return nil
}

// Validate checks the values for the given command and cleans runtime paths.
func (c *Config) Validate(command flagparse.Command) error {
	if _, err := plog.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := pathdiff.ParsePolicy(c.Sync.Policy); err != nil {
		return fmt.Errorf("sync.policy: %w", err)
	}
	if _, err := pathsync.ParseCopyMode(c.Sync.CopyMode); err != nil {
		return fmt.Errorf("sync.copyMode: %w", err)
	}
	if _, err := pathcompression.ParseLevel(c.Index.CompressionLevel); err != nil {
		return fmt.Errorf("index.compressionLevel: %w", err)
	}
	if c.Sync.BufferSizeKB <= 0 {
		return fmt.Errorf("sync.bufferSizeKB must be greater than 0")
	}
	if c.Sync.ProgressIntervalMs <= 0 {
		return fmt.Errorf("sync.progressIntervalMs must be greater than 0")
	}
	if _, err := pathindex.New(pathindex.Options{Excludes: c.Index.Excludes()}); err != nil {
		return fmt.Errorf("index excludes: %w", err)
	}

	var required []struct{ name, value string }
	switch command {
	case flagparse.Index:
		required = []struct{ name, value string }{{"root", c.Runtime.Root}, {"out", c.Runtime.Out}}
	case flagparse.Compare, flagparse.Sync:
		required = []struct{ name, value string }{{"left", c.Runtime.Left}, {"right", c.Runtime.Right}}
	case flagparse.Init:
		required = []struct{ name, value string }{{"base", c.Base}}
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("-%s is required for the %s command", r.name, command)
		}
	}

	for _, p := range []*string{&c.Runtime.Root, &c.Runtime.Out, &c.Runtime.Left, &c.Runtime.Right, &c.Base} {
		if *p == "" {
			continue
		}
		expanded, err := util.ExpandPath(*p)
		if err != nil {
			return fmt.Errorf("could not expand path %s: %w", *p, err)
		}
		*p = filepath.Clean(expanded)
	}
	return nil
}

// ProgressInterval returns the poll interval for running tasks.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Sync.ProgressIntervalMs) * time.Millisecond
}

// LogSummary logs the effective configuration.
func (c *Config) LogSummary(command flagparse.Command) {
	logArgs := []any{
		"command", command.String(),
		"log_level", c.LogLevel,
	}
	switch command {
	case flagparse.Index:
		logArgs = append(logArgs, "root", c.Runtime.Root, "out", c.Runtime.Out, "compression_level", c.Index.CompressionLevel)
	case flagparse.Compare:
		logArgs = append(logArgs, "left", c.Runtime.Left, "right", c.Runtime.Right, "ungrouped", c.Runtime.Ungrouped)
	case flagparse.Sync:
		logArgs = append(logArgs,
			"left", c.Runtime.Left,
			"right", c.Runtime.Right,
			"policy", c.Sync.Policy,
			"copy_mode", c.Sync.CopyMode,
			"buffer_size_kb", c.Sync.BufferSizeKB,
			"dry_run", c.Runtime.DryRun,
		)
		if len(c.Hooks.PreSync) > 0 {
			logArgs = append(logArgs, "pre_sync_hooks", strings.Join(c.Hooks.PreSync, "; "))
		}
		if len(c.Hooks.PostSync) > 0 {
			logArgs = append(logArgs, "post_sync_hooks", strings.Join(c.Hooks.PostSync, "; "))
		}
	}
	if len(c.Index.UserExcludes) > 0 {
		logArgs = append(logArgs, "exclude", strings.Join(c.Index.UserExcludes, ", "))
	}
	plog.Info("Configuration loaded", logArgs...)
}

// Excludes merges system, default and user patterns without duplicates.
func (ic IndexConfig) Excludes() []string {
	return util.MergeAndDeduplicate(systemExcludes, ic.DefaultExcludes, ic.UserExcludes)
}

// MergeConfigWithFlags overlays the explicitly set flags on base.
func MergeConfigWithFlags(command flagparse.Command, base Config, setFlags map[string]any) Config {
	merged := base

	for name, value := range setFlags {
		switch name {
		case "log-level":
			merged.LogLevel = value.(string)
		case "quiet":
			merged.Runtime.Quiet = value.(bool)
		case "exclude":
			merged.Index.UserExcludes = value.([]string)
		case "root":
			merged.Runtime.Root = value.(string)
		case "out":
			merged.Runtime.Out = value.(string)
		case "compression-level":
			merged.Index.CompressionLevel = value.(string)
		case "left":
			merged.Runtime.Left = value.(string)
		case "right":
			merged.Runtime.Right = value.(string)
		case "policy":
			merged.Sync.Policy = value.(string)
		case "ungrouped":
			merged.Runtime.Ungrouped = value.(bool)
		case "dry-run":
			merged.Runtime.DryRun = value.(bool)
		case "copy-mode":
			merged.Sync.CopyMode = value.(string)
		case "buffer-size-kb":
			merged.Sync.BufferSizeKB = value.(int)
		case "fail-fast":
			merged.Hooks.FailFast = value.(bool)
		case "require-mounted":
			merged.Sync.RequireMountedRoots = value.(bool)
		case "pre-sync-hooks":
			merged.Hooks.PreSync = value.([]string)
		case "post-sync-hooks":
			merged.Hooks.PostSync = value.([]string)
		case "force":
			merged.Runtime.Force = value.(bool)
		case "base":
			if command == flagparse.Init {
				merged.Base = value.(string)
			}
		case "config":
			// Consumed before the file is loaded.
		default:
			plog.Debug("unhandled flag in MergeConfigWithFlags", "flag", name)
		}
	}
	return merged
}
