package sk_test

import (
	"bytes"
	"path"
	"testing"
	"time"

	"snapkeep/internal/sk"
	"snapkeep/internal/testutil"
)

// snapshotsAt builds an ascending snapshot list in dir for the given times.
func snapshotsAt(dir string, times ...time.Time) []sk.Snapshot {
	snaps := make([]sk.Snapshot, len(times))
	for i, t := range times {
		snaps[i] = sk.Snapshot{Timestamp: t, Path: path.Join(dir, sk.FormatTimestamp(t))}
	}
	return snaps
}

// dailyBefore returns times now-n days .. now-1 day, oldest first.
func dailyBefore(now time.Time, n int) []time.Time {
	times := make([]time.Time, 0, n)
	for k := n; k >= 1; k-- {
		times = append(times, now.AddDate(0, 0, -k))
	}
	return times
}

func names(snaps []sk.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.Name()
	}
	return out
}

type fixture struct {
	backend  *testutil.MemoryBackend
	runner   *testutil.RecordingRunner
	notifier *testutil.RecordingNotifier
	clock    *testutil.StubClock
	out      *bytes.Buffer
	svc      *sk.SKService
}

// newFixture wires an SKService over an in-memory backend whose root
// "/backup" already exists.
func newFixture(t *testing.T, subvolume bool, db sk.Database) *fixture {
	t.Helper()

	b := testutil.NewMemoryBackend()
	b.AddDir("/backup")

	f := &fixture{
		backend:  b,
		runner:   testutil.NewRecordingRunner(b),
		notifier: &testutil.RecordingNotifier{},
		clock:    testutil.FixedClock(),
		out:      &bytes.Buffer{},
	}
	f.svc = sk.NewSKService(b, f.runner, sk.NewStorage(subvolume), db, sk.NewNopLogger(), f.notifier, f.clock, f.out, "/backup")
	return f
}

func homeTarget() sk.Target {
	return sk.Target{
		Name:         "home",
		Source:       "/home/alice",
		BackupDir:    "/backup/home",
		Interval:     "1 day",
		MinSnapshots: 2,
	}
}

// addSnapshots creates snapshot directories for the given times.
func (f *fixture) addSnapshots(dir string, times ...time.Time) {
	for _, t := range times {
		f.backend.AddDir(path.Join(dir, sk.FormatTimestamp(t)))
	}
}
