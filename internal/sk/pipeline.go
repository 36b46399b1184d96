package sk

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// throttleSlack is subtracted from the interval so that a schedule firing
// slightly early still produces a snapshot.
const throttleSlack = 5 * time.Minute

// rsyncVanishedExit is rsync's "some source files vanished" status. Live
// trees change during a transfer, so it counts as success.
const rsyncVanishedExit = 24

func (s *SKService) backupTarget(ctx context.Context, t Target, opts RunOptions) Outcome {
	start := s.clock.Now()
	name := FormatTimestamp(opts.Now)

	recent, err := s.isRecent(t, opts)
	if err != nil {
		return failed(t.Name, err)
	}
	if recent {
		return skipped(t.Name, "recent")
	}

	log, err := s.openRunLog(t, name, opts.DryRun)
	if err != nil {
		return failed(t.Name, err)
	}
	defer s.closeRunLog(t, log)

	if err := s.preCheck(ctx, t, log); err != nil {
		return failed(t.Name, err)
	}

	if err := s.snapshot(ctx, t, name, opts, log); err != nil {
		fmt.Fprintf(log, "error: %v\n", err)
		return failed(t.Name, err)
	}

	return Outcome{
		Target:   t.Name,
		Status:   StatusCompleted,
		Snapshot: name,
		Elapsed:  s.clock.Now().Sub(start),
		Detail:   name,
	}
}

// isRecent reports whether the last-success marker is newer than the
// target's interval allows. Force always returns false.
func (s *SKService) isRecent(t Target, opts RunOptions) (bool, error) {
	if opts.Force {
		return false, nil
	}

	interval, err := ParseAge(t.Interval)
	if err != nil {
		s.warn(t.Name, fmt.Errorf("invalid interval %q, using %s: %w", t.Interval, DefaultInterval, err))
		interval = DefaultInterval
	}

	st, err := s.backend.Stat(path.Join(t.BackupDir, LastMarkerName))
	if err != nil {
		return false, fmt.Errorf("checking last-success marker: %w", err)
	}
	if !st.Exists {
		return false, nil
	}

	threshold := interval.Before(opts.Now).Add(throttleSlack)
	return st.ModTime.After(threshold), nil
}

// preCheck runs the target's gating command through the local shell.
// It runs even under dry-run.
func (s *SKService) preCheck(ctx context.Context, t Target, log io.Writer) error {
	if strings.TrimSpace(t.PreCheck) == "" {
		return nil
	}
	code, err := s.run(ctx, []string{"sh", "-c", t.PreCheck}, log, false)
	if err != nil {
		return fmt.Errorf("running pre-check: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("pre-check exited with status %d", code)
	}
	return nil
}

// snapshot synchronizes the source into the working copy and promotes it to
// a snapshot named name.
func (s *SKService) snapshot(ctx context.Context, t Target, name string, opts RunOptions, log io.Writer) error {
	current := path.Join(t.BackupDir, CurrentName)
	dest := path.Join(t.BackupDir, name)

	snaps, err := s.prepareBackupDir(t, opts.DryRun)
	if err != nil {
		return err
	}
	for _, sn := range snaps {
		if sn.Name() == name {
			return fmt.Errorf("snapshot %s already exists", name)
		}
	}
	var latest *Snapshot
	if len(snaps) > 0 {
		latest = &snaps[len(snaps)-1]
	}

	st, err := s.backend.Stat(current)
	if err != nil {
		return fmt.Errorf("checking %s: %w", current, err)
	}
	if !st.Exists {
		for _, argv := range s.storage.CreateCurrent(current) {
			if err := s.execute(ctx, argv, log, opts.DryRun); err != nil {
				return fmt.Errorf("creating %s: %w", CurrentName, err)
			}
		}
	}

	if err := s.sync(ctx, t, current, latest, log, opts.DryRun); err != nil {
		return err
	}

	for _, argv := range s.storage.Promote(current, dest) {
		if err := s.execute(ctx, argv, log, opts.DryRun); err != nil {
			return fmt.Errorf("promoting %s: %w", CurrentName, err)
		}
	}

	return s.markSuccess(t, opts)
}

// prepareBackupDir makes sure the backup directory exists and returns its
// snapshots. Under dry-run a missing directory is reported as empty.
func (s *SKService) prepareBackupDir(t Target, dryRun bool) ([]Snapshot, error) {
	st, err := s.backend.Stat(t.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("checking backup directory: %w", err)
	}
	if st.Exists {
		return LoadSnapshots(s.backend, t.BackupDir, "")
	}
	if dryRun {
		fmt.Fprintf(s.out, "[dry-run] mkdir -p %s\n", t.BackupDir)
		return nil, nil
	}
	if err := s.backend.MkdirAll(t.BackupDir); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	return nil, nil
}

func (s *SKService) sync(ctx context.Context, t Target, current string, latest *Snapshot, log io.Writer, dryRun bool) error {
	argv := []string{"rsync", "-a", "--delete"}
	argv = append(argv, s.backend.SyncTransport()...)
	for _, rule := range t.FilterRules {
		argv = append(argv, "--filter="+rule)
	}
	argv = append(argv, s.storage.SyncArgs(latest)...)
	argv = append(argv, withTrailingSlash(t.Source), withTrailingSlash(s.backend.SyncDestination(current)))

	code, err := s.run(ctx, argv, log, dryRun)
	if err != nil {
		return fmt.Errorf("running rsync: %w", err)
	}
	if code != 0 && code != rsyncVanishedExit {
		return fmt.Errorf("rsync exited with status %d", code)
	}
	if code == rsyncVanishedExit {
		s.logger.Info("rsync reported vanished source files", "target", t.Name)
	}
	return nil
}

// markSuccess stamps the last-success marker with the run's timestamp.
func (s *SKService) markSuccess(t Target, opts RunOptions) error {
	marker := path.Join(t.BackupDir, LastMarkerName)
	if opts.DryRun {
		fmt.Fprintf(s.out, "[dry-run] touch %s\n", marker)
		return nil
	}

	st, err := s.backend.Stat(marker)
	if err != nil {
		return fmt.Errorf("checking last-success marker: %w", err)
	}
	if !st.Exists {
		if err := s.backend.WriteEmptyFile(marker); err != nil {
			return fmt.Errorf("creating last-success marker: %w", err)
		}
	}
	if err := s.backend.Touch(marker, opts.Now); err != nil {
		return fmt.Errorf("updating last-success marker: %w", err)
	}
	return nil
}

func withTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
