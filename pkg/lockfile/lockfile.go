// Package lockfile guards a sync root against concurrent runs.
//
// A lock is a small JSON file in the root directory, created with O_EXCL and
// refreshed by a heartbeat. A lock whose heartbeat is older than the stale
// timeout may be taken over; takeovers replace the file by rename and are
// confirmed by reading back the run ID.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paulschiretz/pgl-treesync/pkg/plog"
	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// LockFileName is created in every locked root. The indexer excludes it.
const LockFileName = ".~pgl-treesync.lock"

// LockContent is the JSON body of a lock file.
type LockContent struct {
	PID        int64     `json:"pid"`
	Hostname   string    `json:"hostname"`
	RunID      string    `json:"runID"`
	AppID      string    `json:"appID"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// ErrLockActive reports a lock held by a live run.
type ErrLockActive struct {
	PID       int64
	Hostname  string
	AppID     string
	TimeSince time.Duration
}

func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("lock is active, held by PID %d on host '%s' (App: %s), last updated %s ago",
		e.PID, e.Hostname, e.AppID, e.TimeSince.Truncate(time.Second))
}

var (
	// ErrLostRace is returned when another process won a stale lock takeover.
	ErrLostRace = errors.New("lost race during stale lock takeover")
	// ErrCorruptLockFile marks a lock file that stays empty or unparsable.
	ErrCorruptLockFile = errors.New("lock file is corrupt or empty")
)

// Overridden in tests.
var (
	heartbeatInterval = time.Minute
	staleTimeout      = 3 * heartbeatInterval
	acquireAttempts   = 3
	retryDelay        = 100 * time.Millisecond
)

// Lock is a held lock. Release it when the run ends.
type Lock struct {
	path string

	mu      sync.Mutex
	content LockContent
	stop    context.CancelFunc
	stopped chan struct{}
	held    bool
}

// Acquire locks dirPath for appID. It returns *ErrLockActive when a live run
// holds the lock. ctx bounds the acquisition only; the heartbeat runs until
// Release.
func Acquire(ctx context.Context, dirPath, appID string) (*Lock, error) {
	path := filepath.Join(dirPath, LockFileName)

	for i := 0; i < acquireAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := newContent(appID)
		if err != nil {
			return nil, err
		}

		err = create(path, content)
		if err == nil {
			return start(path, content), nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to access lock file: %w", err)
		}

		existing, readErr := readContent(path)
		switch {
		case readErr == nil:
			age := time.Since(existing.LastUpdate)
			if age < staleTimeout {
				return nil, &ErrLockActive{PID: existing.PID, Hostname: existing.Hostname, AppID: existing.AppID, TimeSince: age}
			}
			plog.Warn("Found stale lock, attempting takeover", "path", path, "pid", existing.PID, "age", age.Truncate(time.Second))
		case errors.Is(readErr, ErrCorruptLockFile):
			plog.Warn("Found corrupt lock file, treating as stale", "path", path, "error", readErr)
		case os.IsNotExist(readErr):
			// Released between our create and read.
			continue
		default:
			time.Sleep(retryDelay)
			continue
		}

		if err := takeOver(path, content); err != nil {
			if errors.Is(err, ErrLostRace) {
				plog.Debug("Lock takeover race lost, retrying", "path", path)
			} else {
				plog.Warn("Lock takeover failed, retrying", "path", path, "error", err)
			}
			time.Sleep(retryDelay)
			continue
		}
		return start(path, content), nil
	}
	return nil, fmt.Errorf("failed to acquire lock %s after %d attempts", path, acquireAttempts)
}

func newContent(appID string) (LockContent, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return LockContent{}, fmt.Errorf("failed to read hostname: %w", err)
	}
	return LockContent{
		PID:        int64(os.Getpid()),
		Hostname:   hostname,
		RunID:      uuid.NewString(),
		AppID:      appID,
		LastUpdate: time.Now().UTC(),
	}, nil
}

// create writes a new lock file and fails with an os.IsExist error when one
// is already present.
func create(path string, content LockContent) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.UserWritableFilePerms)
	if err != nil {
		return err
	}
	werr := encode(f, content)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(path)
		return werr
	}
	return nil
}

func takeOver(path string, content LockContent) error {
	if err := replace(path, content); err != nil {
		return err
	}
	current, err := readContent(path)
	if err != nil {
		return fmt.Errorf("failed to read back lock file after takeover: %w", err)
	}
	if current.RunID != content.RunID {
		return ErrLostRace
	}
	plog.Debug("Took over stale lock", "path", path)
	return nil
}

func start(path string, content LockContent) *Lock {
	removeLeftoverTemps(path)

	ctx, cancel := context.WithCancel(context.Background())
	l := &Lock{
		path:    path,
		content: content,
		stop:    cancel,
		stopped: make(chan struct{}),
		held:    true,
	}
	go l.heartbeat(ctx)
	plog.Debug("Lock acquired", "path", path, "run_id", content.RunID)
	return l
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// RunID identifies this lock holder.
func (l *Lock) RunID() string { return l.content.RunID }

// Release stops the heartbeat and removes the lock file. Calling it again
// has no effect.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	l.held = false
	l.stop()
	<-l.stopped

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		plog.Warn("Failed to remove lock file", "path", l.path, "error", err)
		return
	}
	plog.Debug("Lock released", "path", l.path)
}

func (l *Lock) heartbeat(ctx context.Context) {
	defer close(l.stopped)
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	content := l.content
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			content.LastUpdate = time.Now().UTC()
			if err := replace(l.path, content); err != nil {
				// Retried on the next tick.
				plog.Warn("Failed to refresh lock file", "path", l.path, "error", err)
			}
		}
	}
}

// replace atomically swaps the lock file for one holding content.
func replace(path string, content LockContent) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp lock file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			plog.Warn("Failed to remove temporary lock file", "path", tmpPath, "error", err)
		}
	}()

	if err := encode(tmp, content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp lock file: %w", err)
	}
	// Windows refuses to rename open files.
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp lock file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp lock file: %w", err)
	}
	return nil
}

// removeLeftoverTemps deletes temp files from crashed heartbeats. Files
// younger than the stale timeout may belong to a live writer and are kept.
func removeLeftoverTemps(path string) {
	pattern := filepath.Join(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		plog.Warn("Failed to list temporary lock files", "pattern", pattern, "error", err)
		return
	}
	cutoff := time.Now().Add(-staleTimeout)
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		plog.Debug("Removing leftover temporary lock file", "path", match)
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			plog.Warn("Failed to remove leftover temporary lock file", "path", match, "error", err)
		}
	}
}

func encode(w io.Writer, content LockContent) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock content: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write lock content: %w", err)
	}
	return nil
}

// readContent reads the lock file, retrying briefly when it is empty or
// unparsable since another process may be mid-write.
func readContent(path string) (LockContent, error) {
	var badErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(50 * time.Millisecond)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return LockContent{}, err
		}
		if len(data) == 0 {
			badErr = errors.New("lock file is empty")
			continue
		}
		var content LockContent
		if badErr = json.Unmarshal(data, &content); badErr == nil {
			return content, nil
		}
	}
	return LockContent{}, fmt.Errorf("%w: %v", ErrCorruptLockFile, badErr)
}
