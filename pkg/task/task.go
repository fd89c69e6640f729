// Package task runs indexing and synchronization in the background and
// exposes their progress counters for polling.
package task

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/paulschiretz/pgl-treesync/pkg/pathdiff"
	"github.com/paulschiretz/pgl-treesync/pkg/pathsync"
	"github.com/paulschiretz/pgl-treesync/pkg/pathtree"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// DefaultPollInterval is how often callers sample a running task.
const DefaultPollInterval = 500 * time.Millisecond

// Indexer builds the tree of a directory, counting visited entries.
type Indexer interface {
	BuildIndex(ctx context.Context, rootPath string, counter *atomic.Int64) (*pathtree.Node, error)
}

// Synchronizer applies diff records to a pair of trees.
type Synchronizer interface {
	Synchronize(ctx context.Context, left, right pathsync.Side, records []*pathdiff.Record, m pathsync.Metrics) error
}

// IndexTask is a running or finished index build.
type IndexTask struct {
	id      string
	root    string
	counter atomic.Int64
	cancel  context.CancelFunc
	done    chan struct{}

	result *pathtree.Node
	err    error
}

// StartIndex starts indexing root in a new goroutine.
func StartIndex(ctx context.Context, ix Indexer, root string) *IndexTask {
	ctx, cancel := context.WithCancel(ctx)
	t := &IndexTask{
		id:     uuid.NewString(),
		root:   root,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	plog.Debug("Index task started", "task_id", t.id, "root", root)
	go func() {
		defer close(t.done)
		defer cancel()
		t.result, t.err = ix.BuildIndex(ctx, root, &t.counter)
		plog.Debug("Index task finished", "task_id", t.id, "entries", t.counter.Load(), "error", t.err)
	}()
	return t
}

func (t *IndexTask) ID() string            { return t.id }
func (t *IndexTask) Root() string          { return t.root }
func (t *IndexTask) EntryCount() int64     { return t.counter.Load() }
func (t *IndexTask) Done() <-chan struct{} { return t.done }
func (t *IndexTask) Cancel()               { t.cancel() }

// Wait blocks until the task finishes and returns its tree.
func (t *IndexTask) Wait() (*pathtree.Node, error) {
	<-t.done
	return t.result, t.err
}

// IndexPair indexes the left and right roots at the same time.
type IndexPair struct {
	Left  *IndexTask
	Right *IndexTask

	done chan struct{}
	err  error
}

// IndexBoth starts indexing both roots concurrently. The first failure
// cancels the other side.
func IndexBoth(ctx context.Context, ix Indexer, leftRoot, rightRoot string) *IndexPair {
	g, gctx := errgroup.WithContext(ctx)
	p := &IndexPair{
		Left:  StartIndex(gctx, ix, leftRoot),
		Right: StartIndex(gctx, ix, rightRoot),
		done:  make(chan struct{}),
	}
	g.Go(func() error {
		if _, err := p.Left.Wait(); err != nil {
			return fmt.Errorf("indexing left %s: %w", leftRoot, err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := p.Right.Wait(); err != nil {
			return fmt.Errorf("indexing right %s: %w", rightRoot, err)
		}
		return nil
	})
	go func() {
		p.err = g.Wait()
		close(p.done)
	}()
	return p
}

func (p *IndexPair) Done() <-chan struct{} { return p.done }

// Cancel stops both sides.
func (p *IndexPair) Cancel() {
	p.Left.Cancel()
	p.Right.Cancel()
}

// Wait returns both trees once both sides have finished.
func (p *IndexPair) Wait() (left, right *pathtree.Node, err error) {
	<-p.done
	if p.err != nil {
		return nil, nil, p.err
	}
	left, _ = p.Left.Wait()
	right, _ = p.Right.Wait()
	return left, right, nil
}

// Status describes the progress of both scans.
func (p *IndexPair) Status() string {
	return fmt.Sprintf("Comparing: left:%d / right:%d", p.Left.EntryCount(), p.Right.EntryCount())
}

// SyncTask is a running or finished synchronization.
type SyncTask struct {
	id      string
	metrics *pathsync.SyncMetrics
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// StartSync applies records in a new goroutine.
func StartSync(ctx context.Context, s Synchronizer, left, right pathsync.Side, records []*pathdiff.Record) *SyncTask {
	ctx, cancel := context.WithCancel(ctx)
	t := &SyncTask{
		id:      uuid.NewString(),
		metrics: pathsync.NewSyncMetrics(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	plog.Debug("Sync task started", "task_id", t.id, "records", len(records))
	go func() {
		defer close(t.done)
		defer cancel()
		t.err = s.Synchronize(ctx, left, right, records, t.metrics)
		plog.Debug("Sync task finished", "task_id", t.id, "error", t.err)
	}()
	return t
}

func (t *SyncTask) ID() string                     { return t.id }
func (t *SyncTask) BytesCopied() int64             { return t.metrics.BytesCopied.Load() }
func (t *SyncTask) TotalBytes() int64              { return t.metrics.TotalBytes.Load() }
func (t *SyncTask) Metrics() *pathsync.SyncMetrics { return t.metrics }
func (t *SyncTask) Done() <-chan struct{}          { return t.done }
func (t *SyncTask) Cancel()                        { t.cancel() }

// Percent is the share of the total already copied. An empty total counts as complete.
func (t *SyncTask) Percent() int64 {
	return util.Percent(t.BytesCopied(), t.TotalBytes())
}

// Wait blocks until the task finishes.
func (t *SyncTask) Wait() error {
	<-t.done
	return t.err
}

// Status describes the progress of the copy.
func (t *SyncTask) Status() string {
	return fmt.Sprintf("Synchronizing: %d%% %s / %s",
		t.Percent(), util.ByteCountIEC(t.BytesCopied()), util.ByteCountIEC(t.TotalBytes()))
}

// Poll calls fn every interval until done is closed or ctx is cancelled,
// then once more.
func Poll(ctx context.Context, interval time.Duration, done <-chan struct{}, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			fn()
			return
		case <-ctx.Done():
			fn()
			return
		case <-ticker.C:
			fn()
		}
	}
}
