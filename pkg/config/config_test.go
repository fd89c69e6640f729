package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/paulschiretz/pgl-treesync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-treesync/pkg/flagparse"
	"github.com/paulschiretz/pgl-treesync/pkg/lockfile"
	"github.com/paulschiretz/pgl-treesync/pkg/pathindex"
)

func TestConfig_Validate(t *testing.T) {
	newValidConfig := func() Config {
		cfg := NewDefault()
		cfg.Runtime.Left = "/data/left"
		cfg.Runtime.Right = "/data/right/"
		return cfg
	}

	t.Run("Valid Config", func(t *testing.T) {
		cfg := newValidConfig()
		if err := cfg.Validate(flagparse.Sync); err != nil {
			t.Fatalf("expected valid config, got: %v", err)
		}
		if cfg.Runtime.Right != filepath.Clean("/data/right/") {
			t.Errorf("expected cleaned path, got %q", cfg.Runtime.Right)
		}
	})

	testCases := []struct {
		name    string
		command flagparse.Command
		mutate  func(*Config)
	}{
		{"Missing left", flagparse.Sync, func(c *Config) { c.Runtime.Left = "" }},
		{"Missing right for compare", flagparse.Compare, func(c *Config) { c.Runtime.Right = "" }},
		{"Missing root for index", flagparse.Index, func(c *Config) { c.Runtime.Out = "x.idx" }},
		{"Missing out for index", flagparse.Index, func(c *Config) { c.Runtime.Root = "/data" }},
		{"Missing base for init", flagparse.Init, func(c *Config) {}},
		{"Invalid policy", flagparse.Sync, func(c *Config) { c.Sync.Policy = "mirror" }},
		{"Invalid copy mode", flagparse.Sync, func(c *Config) { c.Sync.CopyMode = "fast" }},
		{"Invalid compression level", flagparse.Sync, func(c *Config) { c.Index.CompressionLevel = "max" }},
		{"Invalid log level", flagparse.Sync, func(c *Config) { c.LogLevel = "verbose" }},
		{"Zero buffer", flagparse.Sync, func(c *Config) { c.Sync.BufferSizeKB = 0 }},
		{"Zero progress interval", flagparse.Sync, func(c *Config) { c.Sync.ProgressIntervalMs = 0 }},
		{"Invalid glob", flagparse.Sync, func(c *Config) { c.Index.UserExcludes = []string{"**/[a"} }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newValidConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(tc.command); err == nil {
				t.Error("expected a validation error, got nil")
			}
		})
	}
}

func TestLoadAndGenerate(t *testing.T) {
	t.Run("Missing file yields defaults", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		want := NewDefault()
		want.Base = dir
		if !reflect.DeepEqual(cfg, want) {
			t.Errorf("expected defaults, got %+v", cfg)
		}
	})

	t.Run("Round trip", func(t *testing.T) {
		dir := t.TempDir()
		cfg := NewDefault()
		cfg.Base = dir
		cfg.Sync.Policy = "left"
		cfg.Hooks.PreSync = []string{"echo hi"}
		cfg.Runtime.Left = "/never/saved"
		if err := Generate(cfg); err != nil {
			t.Fatalf("Generate: %v", err)
		}

		loaded, err := Load(dir)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if loaded.Sync.Policy != "left" || !slices.Equal(loaded.Hooks.PreSync, []string{"echo hi"}) {
			t.Errorf("unexpected loaded config: %+v", loaded)
		}
		if loaded.Runtime.Left != "" {
			t.Error("runtime settings must not be persisted")
		}
		if loaded.Version != buildinfo.Version {
			t.Errorf("expected version %q, got %q", buildinfo.Version, loaded.Version)
		}
	})

	t.Run("Partial file keeps defaults", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`{"sync":{"copyMode":"direct"}}`), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Sync.CopyMode != "direct" || cfg.Sync.BufferSizeKB != NewDefault().Sync.BufferSizeKB {
			t.Errorf("unexpected merge result: %+v", cfg.Sync)
		}
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`{"sync":`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(dir); err == nil {
			t.Error("expected a parse error")
		}
	})

	t.Run("Unknown field", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`{"retention":{}}`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(dir); err == nil {
			t.Error("expected an error for an unknown field")
		}
	})
}

func TestExcludes(t *testing.T) {
	ic := IndexConfig{
		DefaultExcludes: []string{"*.tmp", "a"},
		UserExcludes:    []string{"a", "b"},
	}
	want := append(slices.Clone(systemExcludes), "*.tmp", "a", "b")
	if got := ic.Excludes(); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDefaultExcludesOnlyCoverOwnFiles(t *testing.T) {
	excludes := NewDefault().Index.Excludes()
	ix, err := pathindex.New(pathindex.Options{Excludes: excludes})
	if err != nil {
		t.Fatalf("pathindex.New: %v", err)
	}

	base := t.TempDir()
	for _, name := range []string{
		"report.tmp", "~draft.txt", ".DS_Store", "plain.txt",
		lockfile.LockFileName, lockfile.LockFileName + ".42.tmp",
		ConfigFileName, ".pgl-treesync-123.tmp", ".pgl-treesync-writetest.tmp",
	} {
		if err := os.WriteFile(filepath.Join(base, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	root, err := ix.BuildIndex(context.Background(), base, nil)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	var got []string
	for _, c := range root.Children() {
		got = append(got, c.Name())
	}
	want := []string{".DS_Store", "plain.txt", "report.tmp", "~draft.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeConfigWithFlags(t *testing.T) {
	base := NewDefault()
	flags := map[string]any{
		"left":            "/l",
		"right":           "/r",
		"policy":          "right",
		"dry-run":         true,
		"copy-mode":       "direct",
		"buffer-size-kb":  64,
		"exclude":         []string{"x"},
		"pre-sync-hooks":  []string{"a"},
		"post-sync-hooks": []string{"b"},
		"fail-fast":       true,
		"quiet":           true,
		"base":            "/ignored",
		"config":          "/cfg",
	}
	merged := MergeConfigWithFlags(flagparse.Sync, base, flags)

	if merged.Runtime.Left != "/l" || merged.Runtime.Right != "/r" || !merged.Runtime.DryRun || !merged.Runtime.Quiet {
		t.Errorf("unexpected runtime: %+v", merged.Runtime)
	}
	if merged.Sync.Policy != "right" || merged.Sync.CopyMode != "direct" || merged.Sync.BufferSizeKB != 64 {
		t.Errorf("unexpected sync settings: %+v", merged.Sync)
	}
	if !slices.Equal(merged.Index.UserExcludes, []string{"x"}) || !merged.Hooks.FailFast {
		t.Errorf("unexpected merge: %+v %+v", merged.Index, merged.Hooks)
	}
	if merged.Base != "" {
		t.Errorf("expected -base to apply to init only, got %q", merged.Base)
	}
	if base.Sync.Policy != NewDefault().Sync.Policy {
		t.Error("base config must not be modified")
	}

	initMerged := MergeConfigWithFlags(flagparse.Init, base, map[string]any{"base": "/cfg", "force": true})
	if initMerged.Base != "/cfg" || !initMerged.Runtime.Force {
		t.Errorf("unexpected init merge: base=%q force=%v", initMerged.Base, initMerged.Runtime.Force)
	}
}

func TestProgressInterval(t *testing.T) {
	cfg := NewDefault()
	if got := cfg.ProgressInterval(); got != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", got)
	}
}
