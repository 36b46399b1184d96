package database

import (
	"fmt"
	"os"
	"path/filepath"

	"snapkeep/internal/config"
	"snapkeep/internal/sk"
)

// HistoryFileName is the sqlite file holding the run history.
const HistoryFileName = "history.db"

// NewDatabaseFromConfig creates the run history database for the config
// type. Type "none" returns a nil Database and no error.
func NewDatabaseFromConfig(cfg config.HistoryConfig) (sk.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite history")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating history data directory: %w", err)
		}
		return openSQLite(filepath.Join(cfg.DataDir, HistoryFileName))
	case "memory":
		return openSQLite(":memory:")
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}

// openSQLite keeps a failed open from surfacing as a non-nil interface.
func openSQLite(path string) (sk.Database, error) {
	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}
