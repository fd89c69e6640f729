// Package pathsync applies resolved differences to two directory trees.
//
// For every record with an action the destination entry is deleted from disk
// and from its tree, then the source entry is copied on disk and a copy of
// its node is inserted into the destination tree. Parents are looked up from
// the tree roots by the record's path when the record is applied.
package pathsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulschiretz/pgl-treesync/pkg/pathdiff"
	"github.com/paulschiretz/pgl-treesync/pkg/pathtree"
	"github.com/paulschiretz/pgl-treesync/pkg/plog"
	"github.com/paulschiretz/pgl-treesync/pkg/pool"
	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// Side is one of the two trees being synchronized.
type Side struct {
	// BasePath is the directory on disk that Root was indexed from.
	BasePath string
	Root     *pathtree.Node
}

// Synchronizer applies diff records. It keeps no state between calls and
// must not be used concurrently on the same pair of trees.
type Synchronizer struct {
	plan       Plan
	bufferPool *pool.BufferPool
}

// NewSynchronizer creates a Synchronizer for the given plan.
func NewSynchronizer(p Plan) *Synchronizer {
	bufSize := p.BufferSizeKB * 1024
	if bufSize <= 0 {
		bufSize = DefaultBufferSizeKB * 1024
	}
	return &Synchronizer{
		plan:       p,
		bufferPool: pool.NewBufferPool(bufSize),
	}
}

// TotalBytes sums the sizes of the source nodes of all records with an action.
func TotalBytes(records []*pathdiff.Record) int64 {
	var total int64
	for _, rec := range records {
		if src := rec.Source(); src != nil {
			total += src.Size()
		}
	}
	return total
}

// Synchronize applies every record whose action is not None, in order.
//
// The first filesystem error stops the call. Records applied before it stay
// applied and nothing is rolled back; callers should build a fresh diff to
// learn the resulting state. The same holds for cancellation.
func (s *Synchronizer) Synchronize(ctx context.Context, left, right Side, records []*pathdiff.Record, m Metrics) error {
	if m == nil {
		m = &NoopMetrics{}
	}
	m.AddTotalBytes(TotalBytes(records))

	for _, rec := range records {
		if rec.Action == pathdiff.None {
			continue
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("synchronization interrupted: %w", ctx.Err())
		default:
		}

		src, dst := left, right
		if rec.Action == pathdiff.UseRight {
			src, dst = right, left
		}
		if err := s.apply(ctx, rec, src, dst, m); err != nil {
			return err
		}
		m.AddRecordsApplied(1)
	}
	return nil
}

func (s *Synchronizer) apply(ctx context.Context, rec *pathdiff.Record, src, dst Side, m Metrics) error {
	srcNode, dstNode := rec.Source(), rec.Destination()

	dstParent := dst.Root.Lookup(rec.Path)
	if dstParent == nil || !dstParent.IsDir() {
		return fmt.Errorf("destination directory %q not found in tree: %w", rec.PathString(), pathdiff.ErrInvariantViolation)
	}
	absDst := resolve(dst.BasePath, rec)

	if dstNode != nil {
		if s.plan.DryRun {
			plog.Info("[DRY RUN] Would delete", "path", absDst)
		} else {
			plog.Info("Deleting", "path", absDst)
			if err := deleteRecursively(absDst); err != nil {
				return err
			}
			dstParent.Remove(dstNode.Name())
			m.AddEntriesDeleted(1)
		}
	}

	if srcNode != nil {
		absSrc := resolve(src.BasePath, rec)
		if s.plan.DryRun {
			plog.Info("[DRY RUN] Would copy", "source", absSrc, "target", absDst, "size", util.ByteCountIEC(srcNode.Size()))
			return nil
		}
		plog.Info("Copying", "source", absSrc, "target", absDst)
		if err := os.MkdirAll(filepath.Dir(absDst), util.UserWritableDirPerms); err != nil {
			return &MutationError{Op: "create parent of", Path: absDst, Err: err}
		}
		if err := s.copyNode(ctx, srcNode, absSrc, absDst, m); err != nil {
			return err
		}
		if err := dstParent.Insert(srcNode.Copy()); err != nil {
			return fmt.Errorf("updating tree at %q: %w", rec.PathString(), err)
		}
	}
	return nil
}

// resolve returns the on-disk path of the record's entry below base.
func resolve(base string, rec *pathdiff.Record) string {
	return filepath.Join(util.JoinSegments(base, rec.Path...), rec.Name())
}
