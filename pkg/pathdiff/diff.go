// Package pathdiff compares two indexed trees and describes their differences
// as an ordered list of records that a caller can resolve one by one.
package pathdiff

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/paulschiretz/pgl-treesync/pkg/pathtree"
)

// Build merge-compares the children of two directories, recursing into
// directories present on both sides. The result is sorted by path and name,
// and same-named entries missing on opposite sides are grouped next to each
// other and flagged as moved.
func Build(left, right *pathtree.Node) ([]*Record, error) {
	records, err := BuildUngrouped(left, right)
	if err != nil {
		return nil, err
	}
	return groupMoves(records), nil
}

// BuildUngrouped runs the merge and the sort without the move grouping pass.
func BuildUngrouped(left, right *pathtree.Node) ([]*Record, error) {
	if left == nil || right == nil || !left.IsDir() || !right.IsDir() {
		return nil, fmt.Errorf("diff requires two directories: %w", ErrInvariantViolation)
	}
	var records []*Record
	if err := merge(nil, left, right, &records); err != nil {
		return nil, err
	}
	sortRecords(records)
	return records, nil
}

// merge walks both sorted child lists in lock-step.
func merge(path []string, left, right *pathtree.Node, out *[]*Record) error {
	lc, rc := left.Children(), right.Children()
	i, j := 0, 0

	emit := func(l, r *pathtree.Node) error {
		rec, err := NewRecord(path, l, r)
		if err != nil {
			return err
		}
		*out = append(*out, rec)
		return nil
	}

	for i < len(lc) || j < len(rc) {
		if j >= len(rc) || (i < len(lc) && lc[i].Name() < rc[j].Name()) {
			if err := emit(lc[i], nil); err != nil {
				return err
			}
			i++
			continue
		}
		if i >= len(lc) || rc[j].Name() < lc[i].Name() {
			if err := emit(nil, rc[j]); err != nil {
				return err
			}
			j++
			continue
		}

		l, r := lc[i], rc[j]
		switch {
		case l.IsDir() && r.IsDir():
			if err := merge(append(slices.Clip(path), l.Name()), l, r, out); err != nil {
				return err
			}
		case !pathtree.Equal(l, r):
			if err := emit(l, r); err != nil {
				return err
			}
		}
		i++
		j++
	}
	return nil
}

// comparePaths orders paths component by component; a missing component
// sorts as the empty string.
func comparePaths(a, b []string) int {
	for i, n := 0, max(len(a), len(b)); i < n; i++ {
		var pa, pb string
		if i < len(a) {
			pa = a[i]
		}
		if i < len(b) {
			pb = b[i]
		}
		if c := cmp.Compare(pa, pb); c != 0 {
			return c
		}
	}
	return 0
}

func sortRecords(records []*Record) {
	slices.SortStableFunc(records, func(a, b *Record) int {
		if c := comparePaths(a.Path, b.Path); c != 0 {
			return c
		}
		return cmp.Compare(a.Name(), b.Name())
	})
}

// extractSameName removes and returns every record in *source with the
// given name and type, keeping the order of both lists.
func extractSameName(name string, t DiffType, source *[]*Record) []*Record {
	var matched []*Record
	kept := (*source)[:0]
	for _, rec := range *source {
		if rec.diffType == t && rec.Name() == name {
			matched = append(matched, rec)
		} else {
			kept = append(kept, rec)
		}
	}
	*source = kept
	return matched
}

// groupMoves emits, for every MISSING_* record that has a same-named
// counterpart missing on the other side, all matching MISSING_RIGHT records
// followed by all matching MISSING_LEFT records. Every record of such a group
// is flagged as moved. All other records keep their sorted position.
func groupMoves(sorted []*Record) []*Record {
	remaining := slices.Clone(sorted)
	result := make([]*Record, 0, len(sorted))

	for len(remaining) > 0 {
		seed := remaining[0]
		remaining = remaining[1:]

		var opposite DiffType
		switch seed.diffType {
		case MissingRight:
			opposite = MissingLeft
		case MissingLeft:
			opposite = MissingRight
		default:
			result = append(result, seed)
			continue
		}

		counterparts := extractSameName(seed.Name(), opposite, &remaining)
		if len(counterparts) == 0 {
			result = append(result, seed)
			continue
		}
		sameSide := append([]*Record{seed}, extractSameName(seed.Name(), seed.diffType, &remaining)...)

		missingRight, missingLeft := sameSide, counterparts
		if seed.diffType == MissingLeft {
			missingRight, missingLeft = counterparts, sameSide
		}
		for _, rec := range missingRight {
			rec.IsMoved = true
			result = append(result, rec)
		}
		for _, rec := range missingLeft {
			rec.IsMoved = true
			result = append(result, rec)
		}
	}
	return result
}
