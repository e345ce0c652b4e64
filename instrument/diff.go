package instrument

import (
	"fmt"

	"github.com/timzifer/qlab/snapshot"
)

// DiffSnapshots compares two instrument snapshots and returns every
// parameter field that was added, removed or changed between them.
func DiffSnapshots(before, after Snapshot) ([]snapshot.Difference, error) {
	left, err := snapshotTree(before)
	if err != nil {
		return nil, err
	}
	right, err := snapshotTree(after)
	if err != nil {
		return nil, err
	}
	_, diffs := snapshot.Compare(left, right, "before", "after")
	return diffs, nil
}

func snapshotTree(s Snapshot) (map[string]interface{}, error) {
	tree, err := snapshot.Normalize(s)
	if err != nil {
		return nil, fmt.Errorf("normalize snapshot %s: %w", s.Name, err)
	}
	m, ok := tree.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("snapshot %s: unexpected shape %T", s.Name, tree)
	}
	return m, nil
}
