package engine_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulschiretz/pgl-treesync/pkg/config"
	"github.com/paulschiretz/pgl-treesync/pkg/engine"
	"github.com/paulschiretz/pgl-treesync/pkg/hook"
	"github.com/paulschiretz/pgl-treesync/pkg/indexfile"
	"github.com/paulschiretz/pgl-treesync/pkg/lockfile"
	"github.com/paulschiretz/pgl-treesync/pkg/pathdiff"
	"github.com/paulschiretz/pgl-treesync/pkg/pathindex"
	"github.com/paulschiretz/pgl-treesync/pkg/pathsync"
	"github.com/paulschiretz/pgl-treesync/pkg/pathtree"
	"github.com/paulschiretz/pgl-treesync/pkg/planner"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
)

// --- Mocks ---

type mockHooks struct {
	preErr  error
	postErr error
	calls   []string
	outcome string
}

func (m *mockHooks) RunPreSync(ctx context.Context, p *hook.Plan, env hook.Env, timestampUTC time.Time) error {
	m.calls = append(m.calls, "pre-sync")
	return m.preErr
}

func (m *mockHooks) RunPostSync(ctx context.Context, p *hook.Plan, env hook.Env, timestampUTC time.Time) error {
	m.calls = append(m.calls, "post-sync")
	m.outcome = env.Outcome
	return m.postErr
}

type failingSynchronizer struct {
	err error
}

func (f *failingSynchronizer) Synchronize(ctx context.Context, left, right pathsync.Side, records []*pathdiff.Record, m pathsync.Metrics) error {
	return f.err
}

// --- Helpers ---

var (
	older = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	newer = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
)

type testFile struct {
	content string
	mtime   time.Time
}

func createFiles(t *testing.T, base string, files map[string]testFile) {
	t.Helper()
	for rel, f := range files {
		full := filepath.Join(base, filepath.FromSlash(rel))
		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(full, 0755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(f.content), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(full, f.mtime, f.mtime); err != nil {
			t.Fatal(err)
		}
	}
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var logBuf bytes.Buffer
	plog.SetOutput(&logBuf)
	t.Cleanup(func() { plog.SetOutput(os.Stderr) })
	return &logBuf
}

func testConfig(left, right string) config.Config {
	cfg := config.NewDefault()
	cfg.Runtime.Left = left
	cfg.Runtime.Right = right
	cfg.Sync.ProgressIntervalMs = 10
	return cfg
}

func newIndexer(t *testing.T, excludes []string) *pathindex.Indexer {
	t.Helper()
	ix, err := pathindex.New(pathindex.Options{Excludes: excludes})
	if err != nil {
		t.Fatalf("pathindex.New: %v", err)
	}
	return ix
}

func newSyncRunner(t *testing.T, p *planner.SyncPlan, hooks engine.HookRunner) (*engine.Runner, *bytes.Buffer) {
	t.Helper()
	runner := engine.NewRunner(newIndexer(t, p.Excludes), pathsync.NewSynchronizer(*p.Sync), hooks)
	var out bytes.Buffer
	runner.SetOutput(&out)
	return runner, &out
}

func syncPlan(t *testing.T, cfg config.Config) *planner.SyncPlan {
	t.Helper()
	p, err := planner.GenerateSyncPlan(cfg)
	if err != nil {
		t.Fatalf("GenerateSyncPlan: %v", err)
	}
	return p
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func assertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected %s not to exist, stat error: %v", path, err)
	}
}

// --- Tests ---

func TestExecuteIndex(t *testing.T) {
	captureLogs(t)
	root := t.TempDir()
	createFiles(t, root, map[string]testFile{
		"a.txt":          {content: "alpha", mtime: older},
		"sub/b.txt":      {content: "bravo!", mtime: newer},
		"sub/keep.tmp":   {content: "x", mtime: older},
		"~draft.txt":     {content: "d", mtime: older},
		"empty/":         {},
		"sub/deeper/c.d": {content: "c", mtime: older},
	})

	for _, out := range []string{"tree.idx", "tree.idx.gz", "tree.idx.zst"} {
		t.Run(out, func(t *testing.T) {
			cfg := config.NewDefault()
			cfg.Runtime.Root = root
			cfg.Runtime.Out = filepath.Join(t.TempDir(), out)
			cfg.Sync.ProgressIntervalMs = 10
			p, err := planner.GenerateIndexPlan(cfg)
			if err != nil {
				t.Fatalf("GenerateIndexPlan: %v", err)
			}
			ix := newIndexer(t, p.Excludes)
			runner := engine.NewRunner(ix, pathsync.NewSynchronizer(pathsync.Plan{}), &mockHooks{})

			if err := runner.ExecuteIndex(context.Background(), p); err != nil {
				t.Fatalf("ExecuteIndex: %v", err)
			}

			loaded, err := indexfile.Load(p.Out)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			scanned, err := ix.BuildIndex(context.Background(), root, nil)
			if err != nil {
				t.Fatalf("BuildIndex: %v", err)
			}
			if !pathtree.TreeEqual(loaded, scanned) {
				t.Errorf("Persisted tree differs from scan:\n%s\nvs\n%s", loaded, scanned)
			}
			for _, path := range [][]string{{"sub", "keep.tmp"}, {"~draft.txt"}} {
				if loaded.Lookup(path) == nil {
					t.Errorf("Expected %v to be indexed with the default config", path)
				}
			}
		})
	}

	t.Run("Missing Root", func(t *testing.T) {
		p := &planner.IndexPlan{
			Root:             filepath.Join(root, "missing"),
			Out:              filepath.Join(t.TempDir(), "x.idx"),
			ProgressInterval: 10 * time.Millisecond,
		}
		runner := engine.NewRunner(newIndexer(t, nil), pathsync.NewSynchronizer(pathsync.Plan{}), &mockHooks{})
		if err := runner.ExecuteIndex(context.Background(), p); err == nil {
			t.Error("Expected error for a missing root, got nil")
		}
		assertNotExists(t, p.Out)
	})
}

func TestExecuteCompare(t *testing.T) {
	captureLogs(t)
	left := t.TempDir()
	right := t.TempDir()
	createFiles(t, left, map[string]testFile{
		"same.txt": {content: "same", mtime: older},
		"only-l":   {content: "l", mtime: older},
		"changed":  {content: "new content", mtime: newer},
		"old/x.a":  {content: "moved", mtime: older},
		"new/":     {},
	})
	createFiles(t, right, map[string]testFile{
		"same.txt": {content: "same", mtime: older},
		"changed":  {content: "old", mtime: older},
		"new/x.a":  {content: "moved", mtime: older},
		"old/":     {},
	})

	run := func(t *testing.T, leftPath, rightPath string, ungrouped bool) ([]*pathdiff.Record, string) {
		t.Helper()
		cfg := testConfig(leftPath, rightPath)
		cfg.Runtime.Ungrouped = ungrouped
		p, err := planner.GenerateComparePlan(cfg)
		if err != nil {
			t.Fatalf("GenerateComparePlan: %v", err)
		}
		runner := engine.NewRunner(newIndexer(t, p.Excludes), pathsync.NewSynchronizer(pathsync.Plan{}), &mockHooks{})
		var out bytes.Buffer
		runner.SetOutput(&out)
		records, err := runner.ExecuteCompare(context.Background(), p)
		if err != nil {
			t.Fatalf("ExecuteCompare: %v", err)
		}
		return records, out.String()
	}

	t.Run("Two Directories", func(t *testing.T) {
		records, out := run(t, left, right, false)
		s := pathdiff.Summarize(records)
		if s.Total != 4 {
			t.Fatalf("Expected 4 records, got %d:\n%s", s.Total, out)
		}
		if s.ByType[pathdiff.LeftNewer] != 1 {
			t.Errorf("Expected 1 LEFT_NEWER record, got %d", s.ByType[pathdiff.LeftNewer])
		}
		if s.Moved != 2 {
			t.Errorf("Expected the x.a pair to be grouped as moved, got %d moved", s.Moved)
		}
		if s.Pending != 1 {
			t.Errorf("Expected the newer policy to resolve 1 record, got %d", s.Pending)
		}
		if lines := strings.Count(out, "\n"); lines != 4 {
			t.Errorf("Expected 4 printed records, got %d:\n%s", lines, out)
		}
		if !strings.Contains(out, "action=USE_LEFT") {
			t.Errorf("Expected policy preview in output, got:\n%s", out)
		}
	})

	t.Run("Ungrouped", func(t *testing.T) {
		records, _ := run(t, left, right, true)
		if s := pathdiff.Summarize(records); s.Moved != 0 {
			t.Errorf("Expected no moved records without grouping, got %d", s.Moved)
		}
	})

	t.Run("Directory Against Its Own Index", func(t *testing.T) {
		indexPath := filepath.Join(t.TempDir(), "right.idx.gz")
		tree, err := newIndexer(t, nil).BuildIndex(context.Background(), right, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := indexfile.Save(indexPath, tree, "default"); err != nil {
			t.Fatal(err)
		}
		records, out := run(t, right, indexPath, false)
		if len(records) != 0 {
			t.Errorf("Expected no differences, got:\n%s", out)
		}
	})

	t.Run("Directory Against Itself", func(t *testing.T) {
		records, out := run(t, left, left, false)
		if len(records) != 0 {
			t.Errorf("Expected no differences, got:\n%s", out)
		}
	})

	t.Run("Nested Roots", func(t *testing.T) {
		records, _ := run(t, left, filepath.Join(left, "old"), false)
		if len(records) == 0 {
			t.Error("Expected differences between a root and its subdirectory")
		}
	})
}

func TestExecuteSync(t *testing.T) {
	t.Run("Newer Policy", func(t *testing.T) {
		logs := captureLogs(t)
		left := t.TempDir()
		right := t.TempDir()
		createFiles(t, left, map[string]testFile{
			"doc.txt":   {content: "fresh", mtime: newer},
			"only-left": {content: "l", mtime: older},
		})
		createFiles(t, right, map[string]testFile{
			"doc.txt":    {content: "stale!", mtime: older},
			"sub/r.txt":  {content: "r", mtime: newer},
			"sub/r2.txt": {content: "r2", mtime: older},
		})

		cfg := testConfig(left, right)
		cfg.Sync.ShowRemainingRecords = true
		hooks := &mockHooks{postErr: hook.ErrNothingToExecute}
		runner, out := newSyncRunner(t, syncPlan(t, cfg), hooks)

		if err := runner.ExecuteSync(context.Background(), syncPlan(t, cfg)); err != nil {
			t.Fatalf("ExecuteSync: %v", err)
		}

		if got := readFile(t, filepath.Join(right, "doc.txt")); got != "fresh" {
			t.Errorf("Expected right doc.txt to be replaced, got %q", got)
		}
		info, err := os.Stat(filepath.Join(right, "doc.txt"))
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().Equal(newer) {
			t.Errorf("Expected mtime %v, got %v", newer, info.ModTime())
		}
		assertNotExists(t, filepath.Join(right, "only-left"))
		assertNotExists(t, filepath.Join(left, lockfile.LockFileName))
		assertNotExists(t, filepath.Join(right, lockfile.LockFileName))

		if strings.Join(hooks.calls, ",") != "pre-sync,post-sync" {
			t.Errorf("Unexpected hook calls: %v", hooks.calls)
		}
		if hooks.outcome != "success" {
			t.Errorf("Expected outcome success, got %q", hooks.outcome)
		}
		// only-left and the right-only sub directory stay unresolved.
		if lines := strings.Count(out.String(), "\n"); lines != 2 {
			t.Errorf("Expected 2 remaining records, got:\n%s", out.String())
		}
		if !strings.Contains(logs.String(), "Synchronizing: 100%") {
			t.Errorf("Expected final progress status in logs, got:\n%s", logs.String())
		}
		if !strings.Contains(logs.String(), `msg="Sync completed"`) {
			t.Errorf("Expected completion message in logs, got:\n%s", logs.String())
		}
	})

	t.Run("Left Policy Mirrors Left", func(t *testing.T) {
		captureLogs(t)
		left := t.TempDir()
		right := t.TempDir()
		createFiles(t, left, map[string]testFile{
			"a/b/c.txt":  {content: "c", mtime: older},
			"keep.txt":   {content: "keep", mtime: older},
			"report.tmp": {content: "r", mtime: older},
		})
		createFiles(t, right, map[string]testFile{
			"keep.txt":  {content: "keep", mtime: older},
			"extra/":    {},
			"extra.txt": {content: "x", mtime: newer},
		})
		cfg := testConfig(left, right)
		cfg.Sync.Policy = "left"
		runner, _ := newSyncRunner(t, syncPlan(t, cfg), &mockHooks{})

		if err := runner.ExecuteSync(context.Background(), syncPlan(t, cfg)); err != nil {
			t.Fatalf("ExecuteSync: %v", err)
		}
		if got := readFile(t, filepath.Join(right, "a", "b", "c.txt")); got != "c" {
			t.Errorf("Expected a/b/c.txt on the right, got %q", got)
		}
		if got := readFile(t, filepath.Join(right, "report.tmp")); got != "r" {
			t.Errorf("Expected report.tmp on the right, got %q", got)
		}
		assertNotExists(t, filepath.Join(right, "extra"))
		assertNotExists(t, filepath.Join(right, "extra.txt"))

		defaults := config.NewDefault()
		ix := newIndexer(t, defaults.Index.Excludes())
		l, err := ix.BuildIndex(context.Background(), left, nil)
		if err != nil {
			t.Fatal(err)
		}
		r, err := ix.BuildIndex(context.Background(), right, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !pathtree.TreeEqual(l, r) {
			t.Errorf("Expected equal trees after mirroring:\n%s\nvs\n%s", l, r)
		}
	})

	t.Run("Dry Run", func(t *testing.T) {
		logs := captureLogs(t)
		left := t.TempDir()
		right := t.TempDir()
		createFiles(t, left, map[string]testFile{"new.txt": {content: "n", mtime: newer}})
		createFiles(t, right, map[string]testFile{"new.txt": {content: "o", mtime: older}})
		cfg := testConfig(left, right)
		cfg.Runtime.DryRun = true
		runner, _ := newSyncRunner(t, syncPlan(t, cfg), &mockHooks{})

		if err := runner.ExecuteSync(context.Background(), syncPlan(t, cfg)); err != nil {
			t.Fatalf("ExecuteSync: %v", err)
		}
		if got := readFile(t, filepath.Join(right, "new.txt")); got != "o" {
			t.Errorf("Expected dry run to leave right untouched, got %q", got)
		}
		if !strings.Contains(logs.String(), "[DRY RUN]") {
			t.Errorf("Expected dry run messages, got:\n%s", logs.String())
		}
	})

	t.Run("Nothing To Synchronize", func(t *testing.T) {
		captureLogs(t)
		left := t.TempDir()
		right := t.TempDir()
		createFiles(t, left, map[string]testFile{"l.txt": {content: "l", mtime: older}})
		cfg := testConfig(left, right)
		cfg.Sync.Policy = "none"
		hooks := &mockHooks{}
		runner, _ := newSyncRunner(t, syncPlan(t, cfg), hooks)

		if err := runner.ExecuteSync(context.Background(), syncPlan(t, cfg)); err != nil {
			t.Fatalf("ExecuteSync: %v", err)
		}
		assertNotExists(t, filepath.Join(right, "l.txt"))
		if hooks.outcome != "success" {
			t.Errorf("Expected post-sync hooks with outcome success, got %q", hooks.outcome)
		}
	})

	t.Run("Lock Held", func(t *testing.T) {
		logs := captureLogs(t)
		left := t.TempDir()
		right := t.TempDir()
		createFiles(t, left, map[string]testFile{"l.txt": {content: "l", mtime: older}})
		lock, err := lockfile.Acquire(context.Background(), right, "other-run")
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		defer lock.Release()

		cfg := testConfig(left, right)
		cfg.Sync.Policy = "left"
		hooks := &mockHooks{}
		runner, _ := newSyncRunner(t, syncPlan(t, cfg), hooks)

		if err := runner.ExecuteSync(context.Background(), syncPlan(t, cfg)); err != nil {
			t.Fatalf("Expected graceful exit, got %v", err)
		}
		assertNotExists(t, filepath.Join(right, "l.txt"))
		assertNotExists(t, filepath.Join(left, lockfile.LockFileName))
		if len(hooks.calls) != 0 {
			t.Errorf("Expected no hooks to run, got %v", hooks.calls)
		}
		if !strings.Contains(logs.String(), "already running") {
			t.Errorf("Expected lock warning, got:\n%s", logs.String())
		}
	})

	t.Run("Pre-Sync Hook Failure", func(t *testing.T) {
		captureLogs(t)
		left := t.TempDir()
		right := t.TempDir()
		createFiles(t, left, map[string]testFile{"l.txt": {content: "l", mtime: older}})
		cfg := testConfig(left, right)
		cfg.Sync.Policy = "left"
		hookErr := errors.New("exit status 1")
		hooks := &mockHooks{preErr: hookErr}
		runner, _ := newSyncRunner(t, syncPlan(t, cfg), hooks)

		err := runner.ExecuteSync(context.Background(), syncPlan(t, cfg))
		if !errors.Is(err, hookErr) {
			t.Fatalf("Expected hook error, got %v", err)
		}
		assertNotExists(t, filepath.Join(right, "l.txt"))
		if strings.Join(hooks.calls, ",") != "pre-sync" {
			t.Errorf("Expected post-sync hooks to be skipped, got %v", hooks.calls)
		}
	})

	t.Run("Synchronizer Failure Reports Outcome", func(t *testing.T) {
		captureLogs(t)
		left := t.TempDir()
		right := t.TempDir()
		createFiles(t, left, map[string]testFile{"l.txt": {content: "l", mtime: older}})
		cfg := testConfig(left, right)
		cfg.Sync.Policy = "left"
		p := syncPlan(t, cfg)
		syncErr := &pathsync.MutationError{Op: "copy", Path: "l.txt", Err: os.ErrPermission}
		hooks := &mockHooks{}
		runner := engine.NewRunner(newIndexer(t, p.Excludes), &failingSynchronizer{err: syncErr}, hooks)

		err := runner.ExecuteSync(context.Background(), p)
		if !errors.Is(err, pathsync.ErrFilesystemMutation) {
			t.Fatalf("Expected ErrFilesystemMutation, got %v", err)
		}
		if hooks.outcome != "failure" {
			t.Errorf("Expected outcome failure, got %q", hooks.outcome)
		}
		assertNotExists(t, filepath.Join(right, lockfile.LockFileName))
	})

	t.Run("Cancelled", func(t *testing.T) {
		captureLogs(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cfg := testConfig(t.TempDir(), t.TempDir())
		hooks := &mockHooks{}
		runner, _ := newSyncRunner(t, syncPlan(t, cfg), hooks)
		if err := runner.ExecuteSync(ctx, syncPlan(t, cfg)); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		if len(hooks.calls) != 0 {
			t.Errorf("Expected no hooks to run, got %v", hooks.calls)
		}
	})
}

// The lock files written during a sync must never show up as differences.
func TestExecuteSyncIgnoresOwnLockFiles(t *testing.T) {
	captureLogs(t)
	left := t.TempDir()
	right := t.TempDir()
	cfg := testConfig(left, right)
	cfg.Sync.Policy = "left"

	var seen atomic.Int64
	p := syncPlan(t, cfg)
	runner := engine.NewRunner(newIndexer(t, p.Excludes), &countingSynchronizer{seen: &seen}, &mockHooks{})
	if err := runner.ExecuteSync(context.Background(), p); err != nil {
		t.Fatalf("ExecuteSync: %v", err)
	}
	if seen.Load() != 0 {
		t.Errorf("Expected no records for empty roots, synchronizer saw %d", seen.Load())
	}
}

type countingSynchronizer struct {
	seen *atomic.Int64
}

func (c *countingSynchronizer) Synchronize(ctx context.Context, left, right pathsync.Side, records []*pathdiff.Record, m pathsync.Metrics) error {
	c.seen.Add(int64(len(records)))
	return nil
}
