package app

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"snapkeep/internal/config"
	"snapkeep/internal/database"
	"snapkeep/internal/encryption"
	"snapkeep/internal/sk"
	"snapkeep/internal/vault"
)

// DefaultHistoryPath returns where the sqlite run history lives, or "" when
// the history is not stored in a file.
func DefaultHistoryPath(cfg *config.Config) string {
	if cfg.History.Type != "sqlite" || cfg.History.DataDir == "" {
		return ""
	}
	return filepath.Join(cfg.History.DataDir, database.HistoryFileName)
}

// RestoreHistory fetches the history archive from the configured vault,
// decrypts it with the private key unlocked by passphrase and replaces dest.
// No snapkeep run may have dest open.
func RestoreHistory(cfg *config.Config, passphrase, dest string) error {
	v, err := vault.NewVaultFromConfig(cfg.Vault)
	if err != nil {
		return fmt.Errorf("creating vault: %w", err)
	}
	if v == nil {
		return fmt.Errorf("no vault configured")
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	return restoreHistory(v, enc, passphrase, dest)
}

func restoreHistory(v sk.Vault, enc sk.Encryptor, passphrase, dest string) error {
	dc, err := enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}

	var sealed bytes.Buffer
	if err := v.Get(archiveName(enc), &sealed); err != nil {
		return fmt.Errorf("fetching history archive: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".history-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := dc.Decrypt(&sealed, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("decrypting history archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing restored history: %w", err)
	}

	// Opening the copy applies any migrations it is missing.
	db, err := database.NewSQLiteDatabase(tmpPath)
	if err != nil {
		return fmt.Errorf("restored history is not usable: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing restored history: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("replacing %s: %w", dest, err)
	}
	return nil
}

// SetupKeys generates the key pair used to encrypt history archives.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption keys: %w", err)
	}
	return nil
}
