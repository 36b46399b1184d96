package sk

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// LoadSnapshots lists backupDir and returns the directories whose names are
// snapshot timestamps, sorted ascending. With a non-empty suffix only entries
// ending in suffix are considered, and the suffix is stripped before parsing;
// this is how expired snapshots awaiting purge are found.
func LoadSnapshots(b Backend, backupDir string, suffix string) ([]Snapshot, error) {
	entries, err := b.List(backupDir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", backupDir, err)
	}

	var snaps []Snapshot
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		name := e.Name
		if suffix != "" {
			if !strings.HasSuffix(name, suffix) {
				continue
			}
			name = strings.TrimSuffix(name, suffix)
		}
		ts, ok := ParseTimestamp(name)
		if !ok {
			continue
		}
		snaps = append(snaps, Snapshot{
			Timestamp: ts,
			Path:      path.Join(backupDir, e.Name),
			Expired:   suffix != "",
		})
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.Before(snaps[j].Timestamp)
	})
	return snaps, nil
}
