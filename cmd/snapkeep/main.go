package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"snapkeep/internal/app"
	"snapkeep/internal/config"
	"snapkeep/internal/sk"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file from the default location.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	cfg.ApplyDefaults(defaults["base_dir"])
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates an SKApp. The caller must defer app.Close().
func newApp(cmd *cobra.Command, mode string) (*app.SKApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewSKApp(cfg, app.Options{Mode: mode, Out: cmd.OutOrStdout(), Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// runRequest collects the persistent run flags.
func runRequest(cmd *cobra.Command) app.RunRequest {
	targets, _ := cmd.Flags().GetStringSlice("target")
	now, _ := cmd.Flags().GetString("now")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	return app.RunRequest{Targets: targets, Now: now, DryRun: dryRun}
}

// closeApp closes a and reports a close failure without masking err.
func closeApp(a *app.SKApp, err *error) {
	cerr := a.Close()
	if cerr == nil {
		return
	}
	if *err == nil {
		*err = cerr
		return
	}
	fmt.Fprintf(os.Stderr, "warning: %v\n", cerr)
}

// failures turns per-target errors into the command's exit status.
func failures(outcomes []sk.Outcome) error {
	var failed []string
	for _, o := range outcomes {
		if o.Status == sk.StatusError {
			failed = append(failed, o.Target)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d target(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "snapkeep",
	Short:        "Rotating rsync and btrfs snapshots",
	SilenceUsage: true,
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots per target",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, app.ModeList)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		targets, _ := cmd.Flags().GetStringSlice("target")
		listings, err := a.List(targets)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, l := range listings {
			fmt.Fprintf(out, "%s:\n", l.Target)
			if l.Err != nil {
				fmt.Fprintf(out, "  error: %v\n", l.Err)
				continue
			}
			if len(l.Snapshots) == 0 {
				fmt.Fprintln(out, "  no snapshots")
				continue
			}
			for _, s := range l.Snapshots {
				fmt.Fprintf(out, "  %s  %s\n", s.Name(), s.Timestamp.Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Sync every due target and snapshot it",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, app.ModeBackup)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		req := runRequest(cmd)
		req.Force, _ = cmd.Flags().GetBool("force")

		outcomes, err := a.Backup(context.Background(), req)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		return failures(outcomes)
	},
}

// expire command
var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Remove snapshots that fall outside the retention policy",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, app.ModeExpire)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		outcomes, err := a.Expire(context.Background(), runRequest(cmd))
		if err != nil {
			return fmt.Errorf("expire failed: %w", err)
		}
		return failures(outcomes)
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recorded target results",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, app.ModeHistory)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		entries, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}

		for _, e := range entries {
			fmt.Fprintf(out, "%s  %-7s  %-12s  %-9s  %s\n",
				e.RecordedAt.Format("2006-01-02 15:04:05"),
				e.Mode,
				e.Target,
				e.Status,
				e.Message,
			)
		}
		return nil
	},
}

var historyRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the run history from the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		dest, _ := cmd.Flags().GetString("output")
		if dest == "" {
			dest = app.DefaultHistoryPath(cfg)
		}
		if dest == "" {
			return fmt.Errorf("history is not stored in a file; pass --output")
		}

		var passphrase string
		if cfg.Encryption.Type == "age" {
			if passphrase, err = readPassphrase("Passphrase: "); err != nil {
				return err
			}
		}

		if err := app.RestoreHistory(cfg, passphrase, dest); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run history restored to %s\n", dest)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		backupRoot, _ := cmd.Flags().GetString("backup-root")
		cfg := config.NewConfig(defaults["base_dir"], backupRoot)

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration initialized at %s\n", defaults["config_path"])
		fmt.Fprintf(out, "Base Dir:    %s\n", defaults["base_dir"])
		fmt.Fprintf(out, "Backup Root: %s\n", backupRoot)
		fmt.Fprintln(out, "Add [[targets]] entries before the first backup.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration from %s:\n\n", path)
		fmt.Fprintf(out, "Base Dir:    %s\n", cfg.BaseDir)
		fmt.Fprintf(out, "Log Dir:     %s\n", cfg.LogDir)
		fmt.Fprintf(out, "Backup Root: %s\n", cfg.BackupRoot)
		fmt.Fprintf(out, "Storage:     %s\n", cfg.Storage)
		if cfg.Remote.Enabled() {
			fmt.Fprintf(out, "Remote:      %s@%s\n", cfg.Remote.User, cfg.Remote.Host)
		}
		fmt.Fprintf(out, "History:     %s\n", cfg.History.Type)
		fmt.Fprintf(out, "Vault:       %s\n", cfg.Vault.Type)
		fmt.Fprintln(out, "\nTargets:")
		targets, _, err := app.BuildTargets(cfg, nil)
		if err != nil {
			return err
		}
		for _, t := range targets {
			fmt.Fprintf(out, "  %-12s %s -> %s (every %s, keep >= %d)\n", t.Name, t.Source, t.BackupDir, t.Interval, t.MinSnapshots)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(out, "\nProblems:\n%v\n", err)
		}
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the key pair that encrypts history archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := app.SetupKeys(cfg, passphrase); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

func init() {
	// persistent run flags
	rootCmd.PersistentFlags().Bool("dry-run", false, "Print the commands that would change snapshots instead of running them")
	rootCmd.PersistentFlags().String("now", "", "Run as if the current time were this (snapshot name or local date/time)")
	rootCmd.PersistentFlags().StringSlice("target", nil, "Only process the named target (repeatable)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log external commands")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("backup-root", "/backup", "Directory holding one backup directory per target")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// history subcommands
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of results to show")
	historyCmd.AddCommand(historyRestoreCmd)
	historyRestoreCmd.Flags().StringP("output", "o", "", "Write the restored history here instead of the configured location")

	// root commands
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().BoolP("force", "f", false, "Ignore the interval and snapshot every target now")
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}
