package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Storage layouts for snapshot directories.
const (
	StoragePlain     = "plain"
	StorageSubvolume = "subvolume"
)

// DefaultInterval is the backup interval used when the config sets none.
const DefaultInterval = "1 day"

// Config represents the main configuration for snapkeep.
type Config struct {
	BaseDir  string `toml:"base_dir"`
	LogDir   string `toml:"log_dir"`
	LockFile string `toml:"lock_file"`

	// BackupRoot holds one backup directory per target unless a target
	// overrides it. It must exist before any run.
	BackupRoot string `toml:"backup_root"`
	Storage    string `toml:"storage"` // "plain" (default) or "subvolume"

	// Defaults applied to every target. An unset MinSnapshots leaves the
	// built-in floor in place.
	Interval     string            `toml:"interval"`
	MinSnapshots *int              `toml:"min_snapshots,omitempty"`
	FilterRules  []string          `toml:"filter_rules"`
	Retention    map[string]string `toml:"retention"`

	// NotifyCommand, when set, is run through sh -c for every notification
	// with the level, subject and message as $1, $2 and $3.
	NotifyCommand string `toml:"notify_command,omitempty"`

	Remote     RemoteConfig     `toml:"remote"`
	History    HistoryConfig    `toml:"history"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
	Targets    []TargetConfig   `toml:"targets"`
}

// RemoteConfig selects remote storage. An empty Host means local storage.
type RemoteConfig struct {
	Host           string `toml:"host,omitempty"`
	User           string `toml:"user,omitempty"`
	Port           int    `toml:"port,omitempty"`
	IdentityFile   string `toml:"identity_file,omitempty"`
	KnownHostsFile string `toml:"known_hosts_file,omitempty"`
}

// Enabled reports whether snapshots live on a remote host.
func (r RemoteConfig) Enabled() bool {
	return r.Host != ""
}

// HistoryConfig represents configuration for the run history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HistoryConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig represents where run history archives are stored.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "none", "memory", "s3" or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for history archives.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// TargetConfig is one source tree to snapshot. Empty fields inherit the
// global defaults.
type TargetConfig struct {
	Name         string            `toml:"name"`
	Source       string            `toml:"source"`
	BackupDir    string            `toml:"backup_dir,omitempty"`
	Interval     string            `toml:"interval,omitempty"`
	FilterRules  []string          `toml:"filter_rules,omitempty"`
	PreCheck     string            `toml:"pre_check,omitempty"`
	MinSnapshots *int              `toml:"min_snapshots,omitempty"`
	Retention    map[string]string `toml:"retention,omitempty"`
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(baseDir, backupRoot string) *Config {
	return &Config{
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		LockFile:   filepath.Join(baseDir, "snapkeep.lock"),
		BackupRoot: backupRoot,
		Storage:    StoragePlain,
		Interval:   DefaultInterval,
		Retention: map[string]string{
			"daily":   "7 days",
			"weekly":  "2 months",
			"monthly": "forever",
		},
		History: HistoryConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Vault: VaultConfig{Type: "none"},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "snapkeep.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "snapkeep.key"),
		},
	}
}

// ApplyDefaults fills the settings a hand-written file may leave out. baseDir
// is used when the file sets no base_dir; the other paths derive from it.
func (c *Config) ApplyDefaults(baseDir string) {
	if c.BaseDir == "" {
		c.BaseDir = baseDir
	}
	if c.Storage == "" {
		c.Storage = StoragePlain
	}
	if c.Interval == "" {
		c.Interval = DefaultInterval
	}
	if c.BaseDir == "" {
		return
	}

	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.BaseDir, "log")
	}
	if c.LockFile == "" {
		c.LockFile = filepath.Join(c.BaseDir, "snapkeep.lock")
	}
	if c.History.Type == "sqlite" && c.History.DataDir == "" {
		c.History.DataDir = filepath.Join(c.BaseDir, "db")
	}
	if c.Encryption.PublicKeyPath == "" {
		c.Encryption.PublicKeyPath = filepath.Join(c.BaseDir, "keys", "snapkeep.pub")
	}
	if c.Encryption.PrivateKeyPath == "" {
		c.Encryption.PrivateKeyPath = filepath.Join(c.BaseDir, "keys", "snapkeep.key")
	}
}

// Validate reports every structural problem in the configuration at once.
// Retention and interval expressions are checked later, where a bad value
// degrades to a warning instead of failing the run.
func (c *Config) Validate() error {
	var errs []error

	if c.BaseDir == "" {
		errs = append(errs, fmt.Errorf("base_dir is required"))
	}
	if c.LogDir == "" {
		errs = append(errs, fmt.Errorf("log_dir is required"))
	}
	if c.BackupRoot == "" {
		errs = append(errs, fmt.Errorf("backup_root is required"))
	}
	switch c.Storage {
	case "", StoragePlain, StorageSubvolume:
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q (want %q or %q)", c.Storage, StoragePlain, StorageSubvolume))
	}
	if c.MinSnapshots != nil && *c.MinSnapshots < 0 {
		errs = append(errs, fmt.Errorf("min_snapshots must not be negative"))
	}
	if c.Remote.Enabled() && c.Remote.User == "" {
		errs = append(errs, fmt.Errorf("remote.user is required when remote.host is set"))
	}

	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: name is required", i))
		} else if seen[t.Name] {
			errs = append(errs, fmt.Errorf("targets[%d]: duplicate name %q", i, t.Name))
		}
		seen[t.Name] = true

		if t.Source == "" {
			errs = append(errs, fmt.Errorf("target %q: source is required", t.Name))
		}
		if t.MinSnapshots != nil && *t.MinSnapshots < 0 {
			errs = append(errs, fmt.Errorf("target %q: min_snapshots must not be negative", t.Name))
		}
	}

	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. An existing file is never
// overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
