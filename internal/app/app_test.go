package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"snapkeep/internal/config"
	"snapkeep/internal/database"
	"snapkeep/internal/lock"
	"snapkeep/internal/sk"
	"snapkeep/internal/testutil"
	"snapkeep/internal/vault"
)

type testApp struct {
	*SKApp
	backend *testutil.MemoryBackend
	runner  *testutil.RecordingRunner
	vault   *vault.MemoryVault
	out     *bytes.Buffer
}

func newTestApp(t *testing.T, mode string) *testApp {
	t.Helper()

	cfg := config.NewConfig(t.TempDir(), "/backup")
	cfg.Targets = []config.TargetConfig{{Name: "home", Source: "/home/alice"}}

	b := testutil.NewMemoryBackend()
	b.AddDir("/backup")
	runner := testutil.NewRecordingRunner(b)
	v := testutil.NewTestVault()
	out := &bytes.Buffer{}

	a := newSKApp(cfg, Options{Mode: mode, Out: out}, deps{
		backend:   b,
		runner:    runner,
		db:        testutil.NewTestDatabase(t),
		vault:     v,
		encryptor: testutil.NewTestEncryptor(),
		logger:    sk.NewNopLogger(),
		clock:     testutil.FixedClock(),
		runID:     "run-1",
	})
	return &testApp{SKApp: a, backend: b, runner: runner, vault: v, out: out}
}

func TestSKApp_BackupRecordsAndArchivesHistory(t *testing.T) {
	a := newTestApp(t, ModeBackup)

	outcomes, err := a.Backup(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != sk.StatusCompleted {
		t.Fatalf("outcomes = %+v, want one completed", outcomes)
	}
	if !a.op.Persisted() {
		t.Fatal("backup run was not recorded")
	}
	if !strings.Contains(a.out.String(), "home: completed") {
		t.Errorf("console output = %q, want the home outcome", a.out.String())
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if names := a.vault.Names(); len(names) != 1 || names[0] != "history.db.test" {
		t.Fatalf("vault items = %v, want [history.db.test]", names)
	}

	dest := filepath.Join(t.TempDir(), "restored", database.HistoryFileName)
	if err := restoreHistory(a.vault, testutil.NewTestEncryptor(), "", dest); err != nil {
		t.Fatalf("restoreHistory() error = %v", err)
	}

	restored, err := database.NewSQLiteDatabase(dest)
	if err != nil {
		t.Fatalf("opening restored history: %v", err)
	}
	defer restored.Close()

	entries, err := restored.ListResults(10)
	if err != nil {
		t.Fatalf("ListResults() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Target != "home" || entries[0].RunID != "run-1" {
		t.Errorf("restored entries = %+v, want the home result of run-1", entries)
	}

	run, err := restored.FindRun(1)
	if err != nil || run == nil {
		t.Fatalf("FindRun(1) = %v, %v", run, err)
	}
	if run.Status != RunSuccess || run.FinishedAt.IsZero() {
		t.Errorf("restored run = %+v, want finished with success", run)
	}
}

func TestSKApp_DryRunIsNotRecorded(t *testing.T) {
	a := newTestApp(t, ModeBackup)

	if _, err := a.Backup(context.Background(), RunRequest{DryRun: true}); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if a.op.Persisted() {
		t.Error("dry run was recorded")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if names := a.vault.Names(); len(names) != 0 {
		t.Errorf("vault items = %v, want none", names)
	}
	if !strings.Contains(a.out.String(), "[dry-run] rsync") {
		t.Errorf("output = %q, want dry-run listing", a.out.String())
	}
}

func TestSKApp_FailedTargetFailsTheRun(t *testing.T) {
	a := newTestApp(t, ModeBackup)
	a.runner.ExitCode = testutil.ExitWhen("rsync", "", 12)

	outcomes, err := a.Backup(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if outcomes[0].Status != sk.StatusError {
		t.Fatalf("Status = %s, want error", outcomes[0].Status)
	}
	if a.op.Status != RunError {
		t.Errorf("op.Status = %q, want %q", a.op.Status, RunError)
	}
}

func TestSKApp_FatalConditions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, a *testApp)
		req     RunRequest
		wantErr error
	}{
		{
			name: "unparsable now",
			req:  RunRequest{Now: "tomorrow-ish"},
		},
		{
			name: "unknown target",
			req:  RunRequest{Targets: []string{"var"}},
		},
		{
			name: "lock held",
			setup: func(t *testing.T, a *testApp) {
				l, err := lock.Acquire(a.lockPath())
				if err != nil {
					t.Fatalf("Acquire() error = %v", err)
				}
				t.Cleanup(func() { l.Release() })
			},
			wantErr: lock.ErrLocked,
		},
		{
			name: "backup root missing",
			setup: func(t *testing.T, a *testApp) {
				a.cfg.BackupRoot = "/missing"
				a.service = sk.NewSKService(a.backend, a.runner, sk.NewStorage(false), nil, sk.NewNopLogger(), sk.NopNotifier{}, testutil.FixedClock(), a.out, "/missing")
			},
			wantErr: sk.ErrBackupRootUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, ModeExpire)
			notifier := &testutil.RecordingNotifier{}
			a.notifier = notifier
			if tt.setup != nil {
				tt.setup(t, a)
			}

			_, err := a.Expire(context.Background(), tt.req)
			if err == nil {
				t.Fatal("Expire() error = nil, want a fatal error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expire() error = %v, want %v", err, tt.wantErr)
			}
			if n := len(a.runner.Commands()); n != 0 {
				t.Errorf("ran %d commands", n)
			}
			if a.op.Status != RunError {
				t.Errorf("op.Status = %q, want %q", a.op.Status, RunError)
			}

			sent := notifier.AtLevel(sk.LevelError)
			if len(sent) != 1 {
				t.Fatalf("error notifications = %d, want 1", len(sent))
			}
			if sent[0].Subject != ModeExpire || sent[0].Message != err.Error() {
				t.Errorf("notification = %+v, want %s: %v", sent[0], ModeExpire, err)
			}
		})
	}
}

func TestSKApp_RetentionWarningsAreReported(t *testing.T) {
	a := newTestApp(t, ModeExpire)
	a.cfg.Retention = map[string]string{"daily": "a while"}

	if _, err := a.Expire(context.Background(), RunRequest{}); err != nil {
		t.Fatalf("Expire() error = %v", err)
	}
	if !strings.Contains(a.out.String(), "warning") || !strings.Contains(a.out.String(), "daily") {
		t.Errorf("output = %q, want a retention warning", a.out.String())
	}
}

func TestSKApp_List(t *testing.T) {
	a := newTestApp(t, ModeList)
	a.backend.AddDir("/backup/home/20240101-000000-000")

	listings, err := a.List(nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listings) != 1 || len(listings[0].Snapshots) != 1 {
		t.Errorf("listings = %+v, want one snapshot for home", listings)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if a.op.Persisted() {
		t.Error("list was recorded")
	}
}

func TestRestoreHistory_NoVault(t *testing.T) {
	cfg := config.NewConfig(t.TempDir(), "/backup")

	if err := RestoreHistory(cfg, "", filepath.Join(t.TempDir(), "h.db")); err == nil {
		t.Error("RestoreHistory() error = nil, want no vault error")
	}
}

func TestRestoreHistory_MissingArchive(t *testing.T) {
	err := restoreHistory(testutil.NewTestVault(), testutil.NewTestEncryptor(), "", filepath.Join(t.TempDir(), "h.db"))
	if err == nil {
		t.Error("restoreHistory() error = nil, want missing archive error")
	}
}

func TestDefaultHistoryPath(t *testing.T) {
	cfg := config.NewConfig("/var/lib/snapkeep", "/backup")
	if got := DefaultHistoryPath(cfg); got != "/var/lib/snapkeep/db/history.db" {
		t.Errorf("DefaultHistoryPath() = %q", got)
	}

	cfg.History.Type = "none"
	if got := DefaultHistoryPath(cfg); got != "" {
		t.Errorf("DefaultHistoryPath() = %q, want empty", got)
	}
}

func TestSetupKeys(t *testing.T) {
	cfg := config.NewConfig(t.TempDir(), "/backup")
	cfg.Encryption.Type = "age"

	if err := SetupKeys(cfg, "correct horse"); err != nil {
		t.Fatalf("SetupKeys() error = %v", err)
	}
	if err := SetupKeys(cfg, "correct horse"); err == nil {
		t.Error("second SetupKeys() error = nil, want refusal to overwrite keys")
	}
}
