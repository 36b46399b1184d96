package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"snapkeep/internal/backend"
	"snapkeep/internal/config"
	"snapkeep/internal/database"
	"snapkeep/internal/encryption"
	"snapkeep/internal/lock"
	"snapkeep/internal/sk"
	"snapkeep/internal/vault"
)

// Modes recorded in the run history.
const (
	ModeList    = "list"
	ModeBackup  = "backup"
	ModeExpire  = "expire"
	ModeHistory = "history"
)

// Options controls how an SKApp is built for one CLI invocation.
type Options struct {
	// Mode identifies the CLI command being run, e.g. ModeBackup.
	Mode string
	// Out receives per-target status lines and dry-run listings.
	Out     io.Writer
	Verbose bool
}

// RunRequest carries the CLI flags of a backup or expire run.
type RunRequest struct {
	Targets []string
	Now     string
	DryRun  bool
	Force   bool
}

// SKApp is the application layer between the CLI and SKService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw flag values, and manages the history lifecycle on Close.
type SKApp struct {
	cfg       *config.Config
	backend   sk.Backend
	db        sk.Database
	vault     sk.Vault
	encryptor sk.Encryptor
	service   *sk.SKService
	notifier  sk.Notifier
	logger    sk.Logger
	clock     sk.Clock
	op        *Operation
	logFile   *os.File
}

// deps are the collaborators NewSKApp builds from config. Tests supply
// their own.
type deps struct {
	backend   sk.Backend
	runner    sk.CommandRunner
	db        sk.Database
	vault     sk.Vault
	encryptor sk.Encryptor
	logger    sk.Logger
	logFile   *os.File
	clock     sk.Clock
	runID     string
}

// NewSKApp creates a fully wired SKApp from the given config.
// The caller must call Close when done.
func NewSKApp(cfg *config.Config, opts Options) (*SKApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := deps{
		runner: backend.ExecRunner{},
		clock:  sk.RealClock{},
		runID:  sk.UUIDGenerator{}.New(),
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger, logFile, err := newLogger(cfg.LogDir, d.runID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	d.logger, d.logFile = &slogAdapter{l: logger}, logFile

	closeOnErr := func(err error) (*SKApp, error) {
		if d.db != nil {
			d.db.Close()
		}
		if d.backend != nil {
			d.backend.Close()
		}
		logFile.Close()
		return nil, err
	}

	if d.backend, err = backend.NewFromConfig(cfg.Remote); err != nil {
		return closeOnErr(fmt.Errorf("connecting to backup storage: %w", err))
	}
	if d.db, err = database.NewDatabaseFromConfig(cfg.History); err != nil {
		return closeOnErr(fmt.Errorf("opening run history: %w", err))
	}
	if d.vault, err = vault.NewVaultFromConfig(cfg.Vault); err != nil {
		return closeOnErr(fmt.Errorf("creating vault: %w", err))
	}
	if d.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption); err != nil {
		return closeOnErr(fmt.Errorf("creating encryptor: %w", err))
	}

	return newSKApp(cfg, opts, d), nil
}

func newSKApp(cfg *config.Config, opts Options, d deps) *SKApp {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	notifier := multiNotifier{NewConsoleNotifier(out)}
	if cfg.NotifyCommand != "" {
		notifier = append(notifier, NewCommandNotifier(d.runner, cfg.NotifyCommand, d.logger))
	}

	storage := sk.NewStorage(cfg.Storage == config.StorageSubvolume)
	svc := sk.NewSKService(d.backend, d.runner, storage, d.db, d.logger, notifier, d.clock, out, cfg.BackupRoot)

	return &SKApp{
		cfg:       cfg,
		backend:   d.backend,
		db:        d.db,
		vault:     d.vault,
		encryptor: d.encryptor,
		service:   svc,
		notifier:  notifier,
		logger:    d.logger,
		clock:     d.clock,
		op:        NewOperation(opts.Mode, d.runID),
		logFile:   d.logFile,
	}
}

// targets builds the selected targets and reports configuration warnings.
func (a *SKApp) targets(only []string) ([]sk.Target, error) {
	targets, warnings, err := BuildTargets(a.cfg, only)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		a.logger.Warn(w.Err.Error(), "target", w.Target)
		a.notifier.Notify(sk.LevelWarn, w.Target, w.Err.Error())
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets configured")
	}
	return targets, nil
}

// persistOperation saves the operation to the run history, giving it an
// auto-increment ID. It is a no-op without a history database.
func (a *SKApp) persistOperation() error {
	if a.op.Persisted() || a.db == nil {
		return nil
	}
	run, err := a.db.CreateRun(a.op.RunID, a.op.Mode, a.clock.Now())
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	a.op.ID = run.ID
	return nil
}

// List returns the snapshots of the selected targets.
func (a *SKApp) List(only []string) ([]sk.Listing, error) {
	targets, err := a.targets(only)
	if err != nil {
		return nil, err
	}
	return a.service.List(targets)
}

// Backup takes a snapshot of every selected target that is due.
func (a *SKApp) Backup(ctx context.Context, req RunRequest) ([]sk.Outcome, error) {
	return a.mutate(ctx, req, a.service.Backup)
}

// Expire applies the retention policy of every selected target.
func (a *SKApp) Expire(ctx context.Context, req RunRequest) ([]sk.Outcome, error) {
	return a.mutate(ctx, req, a.service.Expire)
}

type runFunc func(context.Context, []sk.Target, sk.RunOptions) ([]sk.Outcome, error)

// mutate runs fn under the execution lock. Dry runs are not recorded. A fatal
// error fails the run and is sent to the notifier before it is returned.
func (a *SKApp) mutate(ctx context.Context, req RunRequest, fn runFunc) ([]sk.Outcome, error) {
	outcomes, err := a.runLocked(ctx, req, fn)
	if err != nil {
		a.op.Fail()
		a.logger.Error("run aborted", "error", err)
		a.notifier.Notify(sk.LevelError, a.op.Mode, err.Error())
		return nil, err
	}
	for _, o := range outcomes {
		if o.Status == sk.StatusError {
			a.op.Fail()
		}
	}
	return outcomes, nil
}

func (a *SKApp) runLocked(ctx context.Context, req RunRequest, fn runFunc) ([]sk.Outcome, error) {
	now, err := ResolveNow(req.Now, a.clock)
	if err != nil {
		return nil, err
	}
	targets, err := a.targets(req.Targets)
	if err != nil {
		return nil, err
	}

	l, err := lock.Acquire(a.lockPath())
	if err != nil {
		return nil, err
	}
	defer l.Release()

	opts := sk.RunOptions{Now: now, DryRun: req.DryRun, Force: req.Force}
	if !req.DryRun {
		if err := a.persistOperation(); err != nil {
			return nil, err
		}
		opts.RunID = a.op.ID
	}

	a.logger.Info("run started", "mode", a.op.Mode, "targets", len(targets), "dry_run", req.DryRun)
	return fn(ctx, targets, opts)
}

func (a *SKApp) lockPath() string {
	if a.cfg.LockFile != "" {
		return a.cfg.LockFile
	}
	return filepath.Join(a.cfg.BaseDir, "snapkeep.lock")
}

// GetHistory returns the most recent target results.
func (a *SKApp) GetHistory(limit int) ([]*sk.HistoryEntry, error) {
	return a.service.GetHistory(limit)
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the run record, copies the history
// database and stores the copy in the vault. For non-persisted operations:
// just closes the database.
func (a *SKApp) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.op.Persisted() {
		if err := a.db.FinishRun(a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			keep(fmt.Errorf("finishing run: %w", err))
		}
		if a.vault != nil {
			keep(a.archiveHistory())
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			keep(fmt.Errorf("closing database: %w", err))
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			keep(fmt.Errorf("closing backup storage: %w", err))
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// archiveHistory copies the history database, encrypts the copy and stores
// it in the vault.
func (a *SKApp) archiveHistory() error {
	dir, err := os.MkdirTemp("", "snapkeep-history-*")
	if err != nil {
		return fmt.Errorf("creating temp dir for history archive: %w", err)
	}
	defer os.RemoveAll(dir)

	plain := filepath.Join(dir, database.HistoryFileName)
	if err := a.db.BackupTo(plain); err != nil {
		return fmt.Errorf("copying run history: %w", err)
	}

	sealed := plain + a.encryptor.Extension()
	if err := encryptFile(a.encryptor, plain, sealed); err != nil {
		return err
	}

	f, err := os.Open(sealed)
	if err != nil {
		return fmt.Errorf("opening history archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat history archive: %w", err)
	}

	if err := a.vault.Put(archiveName(a.encryptor), f, info.Size()); err != nil {
		return fmt.Errorf("uploading history archive to vault: %w", err)
	}
	a.logger.Info("history archived", "name", archiveName(a.encryptor), "size", info.Size())
	return nil
}

// archiveName is the vault name of the history archive.
func archiveName(enc sk.Encryptor) string {
	return database.HistoryFileName + enc.Extension()
}

func encryptFile(enc sk.Encryptor, src, dst string) error {
	if src == dst {
		return nil
	}
	if !enc.IsConfigured() {
		return fmt.Errorf("encryption keys are not set up; run 'snapkeep config keys'")
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening run history copy: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating history archive: %w", err)
	}
	if err := enc.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting history archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("writing history archive: %w", err)
	}
	return nil
}
