// Package app is the application layer between the CLI and the core
// components. It constructs everything from config, manages the log
// and alert-database lifecycle, and exposes the operations the CLI
// dispatches to.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"rxguard-go/internal/alertlog"
	"rxguard-go/internal/canary"
	"rxguard-go/internal/chunkstore"
	"rxguard-go/internal/config"
	"rxguard-go/internal/crypto"
	"rxguard-go/internal/guard"
	"rxguard-go/internal/repo"
	"rxguard-go/internal/watcher"
)

// GuardApp wires the configured components together for one CLI
// invocation. The caller must call Close when done.
type GuardApp struct {
	cfg     *config.Config
	logger  guard.Logger
	logFile *os.File

	masterKey []byte
	store     chunkstore.Store
	repo      *repo.Repo
	canary    *canary.Manager
	alerts    *alertlog.Store
}

// New creates a fully wired GuardApp from the given config. operation
// identifies the CLI command being run (e.g. "Snapshot", "Protect") and
// tags every log line of the invocation.
func New(cfg *config.Config, operation string) (*GuardApp, error) {
	opID := fmt.Sprintf("%s-%s", operation, time.Now().UTC().Format("20060102T150405Z"))
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	masterKey, err := crypto.LoadOrCreateMasterKey(cfg.KeyFile)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	store, err := chunkstore.NewFilesystemStore(cfg.ChunksDir)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating chunk store: %w", err)
	}

	alerts, err := alertlog.Open(cfg.AlertDBPath)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening alert log: %w", err)
	}

	clock := guard.RealClock{}
	r := repo.New(cfg.DataDirs, cfg.RepoDir, cfg.ManifestDir, cfg.Snapshot.ChunkSizeBytes,
		store, masterKey, logger, clock)
	cm := canary.NewManager(cfg.DataDirs, cfg.CanaryDir, logger)

	return &GuardApp{
		cfg:       cfg,
		logger:    logger,
		logFile:   logFile,
		masterKey: masterKey,
		store:     store,
		repo:      r,
		canary:    cm,
		alerts:    alerts,
	}, nil
}

// Init creates the repository layout for a new configuration: key,
// chunk, manifest, canary and log directories, the master key itself,
// and the initial canary deployment. It is called once by `rxguard init`.
func Init(cfg *config.Config) error {
	for _, dir := range []string{cfg.RepoDir, cfg.ManifestDir, cfg.ChunksDir, cfg.CanaryDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if _, err := crypto.LoadOrCreateMasterKey(cfg.KeyFile); err != nil {
		return err
	}

	a, err := New(cfg, "Init")
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.canary.Deploy(cfg.Canary.PerDirectory); err != nil {
		return fmt.Errorf("deploying canaries: %w", err)
	}
	return nil
}

// CreateSnapshot creates a snapshot with an optional label.
func (a *GuardApp) CreateSnapshot(label string) (*repo.Snapshot, error) {
	return a.repo.CreateSnapshot(label)
}

// ListSnapshots returns all snapshot ids in chronological order.
func (a *GuardApp) ListSnapshots() ([]string, error) {
	return a.repo.ListSnapshots()
}

// LoadSnapshot loads one snapshot manifest.
func (a *GuardApp) LoadSnapshot(id string) (*repo.Snapshot, error) {
	return a.repo.LoadSnapshot(id)
}

// Restore reconstructs a snapshot under destDir, optionally filtered to
// recorded paths starting with one of the prefixes.
func (a *GuardApp) Restore(id, destDir string, prefixes []string) (*repo.RestoreResult, error) {
	return a.repo.Restore(id, destDir, prefixes)
}

// Verify checks chunk presence for one snapshot, or all when id is empty.
func (a *GuardApp) Verify(id string) (files, missing int, err error) {
	return a.repo.Verify(id)
}

// DeployCanaries replaces the tracked canary set with a fresh
// deployment of perDir decoys per data directory.
func (a *GuardApp) DeployCanaries(perDir int) ([]canary.Canary, error) {
	return a.canary.Deploy(perDir)
}

// CheckCanaries returns the number of tampered canaries.
func (a *GuardApp) CheckCanaries() (int, error) {
	return a.canary.Check()
}

// RecentAlerts returns the newest recorded alerts.
func (a *GuardApp) RecentAlerts(limit int) ([]*alertlog.Alert, error) {
	return a.alerts.Recent(limit)
}

// Protect runs the detection/response loop until ctx is cancelled.
func (a *GuardApp) Protect(ctx context.Context) error {
	w := watcher.New(watcher.Options{
		DataDirs:             a.cfg.DataDirs,
		SurgeThreshold:       a.cfg.Watcher.SurgeThresholdPerMinute,
		EntropyThreshold:     a.cfg.Watcher.EntropyThreshold,
		SuspiciousExtensions: a.cfg.Watcher.SuspiciousExtensions,
		Cooldown:             time.Duration(a.cfg.Watcher.CooldownSeconds) * time.Second,
	}, a.repo, a.canary, a.alerts, a.logger, guard.RealClock{}, guard.UUIDGenerator{})
	return w.Run(ctx)
}

// ExportKey writes a passphrase-protected copy of the master key to w.
func (a *GuardApp) ExportKey(passphrase string, w io.Writer) error {
	return crypto.ExportKey(a.masterKey, passphrase, w)
}

// Close releases the alert database and log file.
func (a *GuardApp) Close() error {
	var firstErr error
	if err := a.alerts.Close(); err != nil {
		firstErr = fmt.Errorf("closing alert log: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
