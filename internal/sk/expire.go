package sk

import (
	"context"
	"errors"
	"fmt"
	"io"
)

func (s *SKService) expireTarget(ctx context.Context, t Target, opts RunOptions) Outcome {
	start := s.clock.Now()

	st, err := s.backend.Stat(t.BackupDir)
	if err != nil {
		return failed(t.Name, fmt.Errorf("checking backup directory: %w", err))
	}
	if !st.Exists {
		return skipped(t.Name, "no backup directory")
	}

	snaps, err := LoadSnapshots(s.backend, t.BackupDir, "")
	if err != nil {
		return failed(t.Name, err)
	}
	decision := Decide(snaps, t.Policy, t.MinSnapshots, opts.Now)

	log, err := s.openRunLog(t, "expire-"+FormatTimestamp(opts.Now), opts.DryRun)
	if err != nil {
		return failed(t.Name, err)
	}
	defer s.closeRunLog(t, log)

	var errs []error
	expired := 0
	for _, sn := range decision.Expire {
		if opts.DryRun {
			fmt.Fprintf(s.out, "[dry-run] expire %s\n", sn.Path)
			continue
		}
		if err := s.expireSnapshot(ctx, sn, log); err != nil {
			s.logger.Error("expiring snapshot failed", "target", t.Name, "snapshot", sn.Name(), "error", err)
			errs = append(errs, fmt.Errorf("expiring %s: %w", sn.Name(), err))
			continue
		}
		expired++
	}

	purged := 0
	if s.storage.MarksExpired() {
		var perrs []error
		purged, perrs = s.purge(ctx, t, decision.Expire, log, opts.DryRun)
		errs = append(errs, perrs...)
	}

	if len(errs) > 0 {
		return failed(t.Name, errors.Join(errs...))
	}

	detail := fmt.Sprintf("%d retained, %d expired", len(decision.Retain), expired)
	if s.storage.MarksExpired() {
		detail += fmt.Sprintf(", %d purged", purged)
	}
	if opts.DryRun {
		detail = fmt.Sprintf("%d retained, %d would expire", len(decision.Retain), len(decision.Expire))
	}
	return Outcome{
		Target:  t.Name,
		Status:  StatusCompleted,
		Elapsed: s.clock.Now().Sub(start),
		Detail:  detail,
	}
}

func (s *SKService) expireSnapshot(ctx context.Context, sn Snapshot, log io.Writer) error {
	for _, argv := range s.storage.Expire(sn) {
		if err := s.execute(ctx, argv, log, false); err != nil {
			return err
		}
	}
	return nil
}

// purge removes every snapshot marked expired in the target's backup
// directory, including ones left behind by an earlier interrupted run.
// Each failure is isolated.
func (s *SKService) purge(ctx context.Context, t Target, pending []Snapshot, log io.Writer, dryRun bool) (int, []error) {
	marked, err := LoadSnapshots(s.backend, t.BackupDir, ExpiredSuffix)
	if err != nil {
		return 0, []error{fmt.Errorf("listing expired snapshots: %w", err)}
	}

	if dryRun {
		for _, sn := range pending {
			fmt.Fprintf(s.out, "[dry-run] purge %s%s\n", sn.Path, ExpiredSuffix)
		}
		for _, sn := range marked {
			fmt.Fprintf(s.out, "[dry-run] purge %s\n", sn.Path)
		}
		return 0, nil
	}

	var errs []error
	purged := 0
	for _, sn := range marked {
		ok := true
		for _, argv := range s.storage.Purge(sn) {
			if err := s.execute(ctx, argv, log, false); err != nil {
				s.logger.Error("purging snapshot failed", "target", t.Name, "path", sn.Path, "error", err)
				errs = append(errs, fmt.Errorf("purging %s: %w", sn.Path, err))
				ok = false
				break
			}
		}
		if ok {
			purged++
		}
	}
	return purged, errs
}
