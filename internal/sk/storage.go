package sk

// Storage captures what differs between plain directories and btrfs
// subvolumes. Methods return argv lists; the caller runs them through the
// Backend so they execute where the backup directory lives.
type Storage interface {
	// CreateCurrent returns the commands that create a missing working copy.
	CreateCurrent(current string) [][]string

	// SyncArgs returns extra rsync arguments given the latest snapshot, if any.
	SyncArgs(latest *Snapshot) []string

	// Promote returns the commands that turn the working copy into dest.
	Promote(current, dest string) [][]string

	// Expire returns the phase-one commands for a snapshot leaving retention.
	Expire(s Snapshot) [][]string

	// Purge returns the commands that remove a snapshot already marked expired.
	Purge(s Snapshot) [][]string

	// MarksExpired reports whether Expire only renames, leaving a purge phase.
	MarksExpired() bool
}

// NewStorage returns the Storage for the configured layout.
func NewStorage(subvolume bool) Storage {
	if subvolume {
		return SubvolumeStorage{}
	}
	return PlainStorage{}
}

// PlainStorage keeps snapshots as ordinary directories. Unchanged files are
// hard-linked against the previous snapshot by rsync.
type PlainStorage struct{}

func (PlainStorage) CreateCurrent(string) [][]string { return nil }

func (PlainStorage) SyncArgs(latest *Snapshot) []string {
	if latest == nil {
		return nil
	}
	return []string{"--link-dest=" + latest.Path}
}

func (PlainStorage) Promote(current, dest string) [][]string {
	return [][]string{{"mv", current, dest}}
}

func (PlainStorage) Expire(s Snapshot) [][]string {
	return [][]string{{"mv", s.Path, s.Path + ExpiredSuffix}}
}

func (PlainStorage) Purge(s Snapshot) [][]string {
	return [][]string{{"rm", "-rf", s.Path}}
}

func (PlainStorage) MarksExpired() bool { return true }

// SubvolumeStorage keeps "current" as a btrfs subvolume and snapshots it
// read-only. Subvolume deletion is atomic, so there is no expired state.
type SubvolumeStorage struct{}

func (SubvolumeStorage) CreateCurrent(current string) [][]string {
	return [][]string{{"btrfs", "subvolume", "create", current}}
}

func (SubvolumeStorage) SyncArgs(*Snapshot) []string { return nil }

func (SubvolumeStorage) Promote(current, dest string) [][]string {
	return [][]string{{"btrfs", "subvolume", "snapshot", "-r", current, dest}}
}

func (SubvolumeStorage) Expire(s Snapshot) [][]string {
	return [][]string{
		{"btrfs", "property", "set", "-ts", s.Path, "ro", "false"},
		{"btrfs", "subvolume", "delete", s.Path},
	}
}

func (SubvolumeStorage) Purge(Snapshot) [][]string { return nil }

func (SubvolumeStorage) MarksExpired() bool { return false }
