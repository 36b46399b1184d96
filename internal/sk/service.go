package sk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBackupRootUnavailable is returned when the backup root cannot be reached
// or is not a directory. It aborts the whole invocation.
var ErrBackupRootUnavailable = errors.New("backup root unavailable")

// SKService is the orchestration layer that runs list, backup and expire
// across the configured targets. Targets are processed sequentially and each
// target's failure is isolated from the others.
type SKService struct {
	backend    Backend
	runner     CommandRunner
	storage    Storage
	database   Database
	logger     Logger
	notifier   Notifier
	clock      Clock
	out        io.Writer
	backupRoot string
}

// NewSKService creates a new SKService with the provided dependencies.
// database may be nil, in which case no run history is recorded. out receives
// dry-run command listings.
func NewSKService(backend Backend, runner CommandRunner, storage Storage, database Database, logger Logger, notifier Notifier, clock Clock, out io.Writer, backupRoot string) *SKService {
	return &SKService{
		backend:    backend,
		runner:     runner,
		storage:    storage,
		database:   database,
		logger:     logger,
		notifier:   notifier,
		clock:      clock,
		out:        out,
		backupRoot: backupRoot,
	}
}

// Listing is the snapshot list of one target.
type Listing struct {
	Target    string
	Snapshots []Snapshot
	Err       error
}

// List loads the snapshots of every target. A target whose backup directory
// does not exist yet has an empty listing.
func (s *SKService) List(targets []Target) ([]Listing, error) {
	if err := s.checkBackupRoot(); err != nil {
		return nil, err
	}

	listings := make([]Listing, 0, len(targets))
	for _, t := range targets {
		l := Listing{Target: t.Name}
		st, err := s.backend.Stat(t.BackupDir)
		switch {
		case err != nil:
			l.Err = fmt.Errorf("checking backup directory: %w", err)
		case st.Exists:
			l.Snapshots, l.Err = LoadSnapshots(s.backend, t.BackupDir, "")
		}
		if l.Err != nil {
			s.notifier.Notify(LevelError, t.Name, l.Err.Error())
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// Backup runs one synchronization-and-snapshot cycle for every target.
// The returned error is only set for conditions that abort the invocation;
// per-target failures are reported in the outcomes.
func (s *SKService) Backup(ctx context.Context, targets []Target, opts RunOptions) ([]Outcome, error) {
	if err := s.checkBackupRoot(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(targets))
	for _, t := range targets {
		o := s.backupTarget(ctx, t, opts)
		s.report(o, opts)
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// Expire applies the retention policy of every target.
func (s *SKService) Expire(ctx context.Context, targets []Target, opts RunOptions) ([]Outcome, error) {
	if err := s.checkBackupRoot(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(targets))
	for _, t := range targets {
		o := s.expireTarget(ctx, t, opts)
		s.report(o, opts)
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// GetHistory returns the most recent target results, newest first.
func (s *SKService) GetHistory(limit int) ([]*HistoryEntry, error) {
	if s.database == nil {
		return nil, fmt.Errorf("run history is not configured")
	}
	entries, err := s.database.ListResults(limit)
	if err != nil {
		return nil, fmt.Errorf("listing run history: %w", err)
	}
	return entries, nil
}

func (s *SKService) checkBackupRoot() error {
	st, err := s.backend.Stat(s.backupRoot)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBackupRootUnavailable, s.backupRoot, err)
	}
	if !st.Exists || !st.IsDir {
		return fmt.Errorf("%w: %s is not a directory", ErrBackupRootUnavailable, s.backupRoot)
	}
	return nil
}

// report logs, notifies and records one target's outcome.
func (s *SKService) report(o Outcome, opts RunOptions) {
	level := LevelInfo
	if o.Status == StatusError {
		level = LevelError
		s.logger.Error("target failed", "target", o.Target, "error", o.Err)
	} else {
		s.logger.Info("target finished", "target", o.Target, "status", string(o.Status), "elapsed", o.Elapsed)
	}
	s.notifier.Notify(level, o.Target, o.Message())

	if opts.RunID == 0 || s.database == nil {
		return
	}
	if err := s.database.RecordResult(opts.RunID, o, s.clock.Now()); err != nil {
		s.logger.Warn("recording run history failed", "target", o.Target, "error", err)
	}
}

// warn reports a degraded-but-continuing condition.
func (s *SKService) warn(target string, err error) {
	s.logger.Warn(err.Error(), "target", target)
	s.notifier.Notify(LevelWarn, target, err.Error())
}

// run executes argv on the local host, or prints it under dry-run.
func (s *SKService) run(ctx context.Context, argv []string, log io.Writer, dryRun bool) (int, error) {
	line := strings.Join(argv, " ")
	if dryRun {
		fmt.Fprintf(s.out, "[dry-run] %s\n", line)
		return 0, nil
	}
	s.logger.Debug("running command", "command", line)
	fmt.Fprintf(log, "$ %s\n", line)
	return s.runner.Run(ctx, argv, log)
}

// execute runs argv where the backup directory lives and converts a non-zero
// exit status into an error.
func (s *SKService) execute(ctx context.Context, argv []string, log io.Writer, dryRun bool) error {
	code, err := s.run(ctx, s.backend.Command(argv), log, dryRun)
	return commandError(argv[0], code, err)
}

func commandError(name string, code int, err error) error {
	if err != nil {
		return fmt.Errorf("running %s: %w", name, err)
	}
	if code != 0 {
		return fmt.Errorf("%s exited with status %d", name, code)
	}
	return nil
}
