package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rxguard-go/internal/app"
	"rxguard-go/internal/config"
	"rxguard-go/internal/crypto"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the --config flag value, falling back to
// the environment/XDG default.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	defaults, err := app.GetDefaults()
	if err != nil {
		return "", fmt.Errorf("getting defaults: %w", err)
	}
	return defaults.ConfigPath, nil
}

// newApp reads the config and creates a GuardApp. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.GuardApp, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	a, err := app.New(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "rxguard",
	Short: "Encrypted deduplicating backup with ransomware detection",
}

var (
	initRepoDir  string
	initDataDirs []string
	initCanaries int
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the repository, master key, and canaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir, err := filepath.Abs(initRepoDir)
		if err != nil {
			return fmt.Errorf("resolving repo dir: %w", err)
		}
		dataDirs := make([]string, len(initDataDirs))
		for i, d := range initDataDirs {
			abs, err := filepath.Abs(d)
			if err != nil {
				return fmt.Errorf("resolving data dir %s: %w", d, err)
			}
			dataDirs[i] = abs
		}

		cfg := config.NewConfig(repoDir, dataDirs)
		cfg.Canary.PerDirectory = initCanaries

		if err := app.Init(cfg); err != nil {
			return fmt.Errorf("initializing repository: %w", err)
		}

		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		if err := config.Init(path, cfg); err != nil {
			return err
		}

		fmt.Printf("Initialized repository at %s\n", repoDir)
		fmt.Printf("Config: %s\n", path)
		return nil
	},
}

var snapshotLabel string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Create a snapshot of the watched directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Snapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.CreateSnapshot(snapshotLabel)
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot %s created with %d files\n", snap.ID, len(snap.Files))
		return nil
	},
}

var listFiles bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("List")
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.ListSnapshots()
		if err != nil {
			return err
		}
		for _, id := range ids {
			if !listFiles {
				fmt.Println(id)
				continue
			}
			snap, err := a.LoadSnapshot(id)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%d files)\n", id, len(snap.Files))
			for i, fe := range snap.Files {
				if i == 50 {
					fmt.Println("  ...")
					break
				}
				fmt.Printf("  %s chunks=%d\n", fe.Path, len(fe.Chunks))
			}
		}
		return nil
	},
}

var (
	restoreSnapshot string
	restoreDest     string
	restorePaths    []string
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a snapshot to a destination directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Restore(restoreSnapshot, restoreDest, restorePaths)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %d files from %s to %s\n", len(result.Restored), restoreSnapshot, restoreDest)
		for _, f := range result.Failures {
			fmt.Printf("  failed: %s: %v\n", f.Path, f.Err)
		}
		if len(result.Failures) > 0 {
			return fmt.Errorf("%d files failed to restore", len(result.Failures))
		}
		return nil
	},
}

var verifySnapshot string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify manifests and chunk presence",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Verify")
		if err != nil {
			return err
		}
		defer a.Close()

		files, missing, err := a.Verify(verifySnapshot)
		if err != nil {
			return err
		}
		if missing == 0 {
			fmt.Printf("OK: %d files, no missing chunks\n", files)
			return nil
		}
		fmt.Printf("WARN: %d files, missing chunks: %d\n", files, missing)
		return nil
	},
}

var canaryCmd = &cobra.Command{
	Use:   "canary",
	Short: "Manage decoy files",
}

var canaryPerDir int

var canaryDeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a fresh canary set (replaces the previous one)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CanaryDeploy")
		if err != nil {
			return err
		}
		defer a.Close()

		canaries, err := a.DeployCanaries(canaryPerDir)
		if err != nil {
			return err
		}
		fmt.Printf("Deployed %d canaries\n", len(canaries))
		return nil
	},
}

var canaryCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check canaries for tampering",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CanaryCheck")
		if err != nil {
			return err
		}
		defer a.Close()

		tampered, err := a.CheckCanaries()
		if err != nil {
			return err
		}
		if tampered == 0 {
			fmt.Println("OK: no tampered canaries")
			return nil
		}
		fmt.Printf("WARN: %d tampered canaries\n", tampered)
		return nil
	},
}

var protectCmd = &cobra.Command{
	Use:   "protect",
	Short: "Run the realtime watcher; snapshots automatically on alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Protect")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.Protect(ctx)
	},
}

var alertsLimit int

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show recent detection alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Alerts")
		if err != nil {
			return err
		}
		defer a.Close()

		alerts, err := a.RecentAlerts(alertsLimit)
		if err != nil {
			return err
		}
		for _, al := range alerts {
			status := "snapshot=" + al.SnapshotID
			if !al.SnapshotOK {
				status = "snapshot failed: " + al.Error
			}
			fmt.Printf("%s  signals=%v events=%d %s\n",
				al.DetectedAt.Format("2006-01-02T15:04:05Z"), al.Signals, al.EventCount, status)
		}
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the master key",
}

var keyExportOut string

var keyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a passphrase-protected recovery copy of the master key",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("KeyExport")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := promptPassphrase(true)
		if err != nil {
			return err
		}

		f, err := os.OpenFile(keyExportOut, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()

		if err := a.ExportKey(passphrase, f); err != nil {
			return err
		}
		fmt.Printf("Master key exported to %s\n", keyExportOut)
		return nil
	},
}

var keyImportIn string

var keyImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Restore the master key from a recovery copy",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Deliberately avoids newApp: constructing the app would
		// bootstrap a fresh key at the configured path first.
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.ReadFromFile(path)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		passphrase, err := promptPassphrase(false)
		if err != nil {
			return err
		}

		f, err := os.Open(keyImportIn)
		if err != nil {
			return fmt.Errorf("opening key file: %w", err)
		}
		defer f.Close()

		if err := crypto.ImportKey(f, passphrase, cfg.KeyFile); err != nil {
			return err
		}
		fmt.Printf("Master key restored to %s\n", cfg.KeyFile)
		return nil
	},
}

var (
	simulateTarget string
	simulateCount  int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate suspicious activity (non-destructive)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Simulate")
		if err != nil {
			return err
		}
		defer a.Close()

		modified, err := a.Simulate(simulateTarget, simulateCount)
		if err != nil {
			return err
		}
		fmt.Printf("Simulated modification of %d files (non-destructive copies with .locked)\n", modified)
		return nil
	},
}

// promptPassphrase reads a passphrase from the terminal without echo.
// When confirm is true the passphrase must be entered twice.
func promptPassphrase(confirm bool) (string, error) {
	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	if !confirm {
		return string(first), nil
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(first), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: $RXGUARD_CONFIG_PATH or ~/.config/rxguard.toml)")

	initCmd.Flags().StringVar(&initRepoDir, "repo", "", "repository directory")
	initCmd.Flags().StringSliceVar(&initDataDirs, "data", nil, "one or more data directories to protect")
	initCmd.Flags().IntVar(&initCanaries, "canaries", 3, "number of canaries per data directory")
	initCmd.MarkFlagRequired("repo")
	initCmd.MarkFlagRequired("data")

	snapshotCmd.Flags().StringVar(&snapshotLabel, "label", "", "optional snapshot label")

	listCmd.Flags().BoolVar(&listFiles, "files", false, "show files in each snapshot")

	restoreCmd.Flags().StringVar(&restoreSnapshot, "snapshot", "", "snapshot id")
	restoreCmd.Flags().StringVar(&restoreDest, "dest", "", "destination directory")
	restoreCmd.Flags().StringSliceVar(&restorePaths, "paths", nil, "optional path prefixes to include")
	restoreCmd.MarkFlagRequired("snapshot")
	restoreCmd.MarkFlagRequired("dest")

	verifyCmd.Flags().StringVar(&verifySnapshot, "snapshot", "", "specific snapshot id to verify")

	canaryDeployCmd.Flags().IntVar(&canaryPerDir, "per-dir", 3, "canaries per data directory")
	canaryCmd.AddCommand(canaryDeployCmd, canaryCheckCmd)

	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "maximum alerts to show")

	keyExportCmd.Flags().StringVar(&keyExportOut, "out", "", "output file for the wrapped key")
	keyExportCmd.MarkFlagRequired("out")
	keyImportCmd.Flags().StringVar(&keyImportIn, "in", "", "wrapped key file to import")
	keyImportCmd.MarkFlagRequired("in")
	keyCmd.AddCommand(keyExportCmd, keyImportCmd)

	simulateCmd.Flags().StringVar(&simulateTarget, "target", "", "specific directory to simulate in")
	simulateCmd.Flags().IntVar(&simulateCount, "count", 200, "number of files to affect")

	rootCmd.AddCommand(initCmd, snapshotCmd, listCmd, restoreCmd, verifyCmd,
		canaryCmd, protectCmd, alertsCmd, keyCmd, simulateCmd)
}
