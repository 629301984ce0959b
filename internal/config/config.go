package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for rxguard.
type Config struct {
	// RepoDir is the root of the backup repository (chunks, manifests,
	// key, canary metadata, logs all live beneath it).
	RepoDir string `toml:"repo_dir"`
	// DataDirs are the watched directories being defended.
	DataDirs []string `toml:"data_dirs"`

	KeyFile     string `toml:"key_file"`
	ManifestDir string `toml:"manifest_dir"`
	ChunksDir   string `toml:"chunks_dir"`
	CanaryDir   string `toml:"canary_dir"`
	LogDir      string `toml:"log_dir"`
	AlertDBPath string `toml:"alert_db_path"`

	Snapshot SnapshotConfig `toml:"snapshot"`
	Canary   CanaryConfig   `toml:"canary"`
	Watcher  WatcherConfig  `toml:"watcher"`
}

// SnapshotConfig holds chunking parameters.
type SnapshotConfig struct {
	// ChunkSizeBytes is the fixed window size files are split into.
	ChunkSizeBytes int `toml:"chunk_size_bytes"`
}

// CanaryConfig holds decoy deployment parameters.
type CanaryConfig struct {
	PerDirectory int `toml:"per_directory"`
}

// WatcherConfig holds detection thresholds for the activity watcher.
type WatcherConfig struct {
	// SurgeThresholdPerMinute is the event count in the trailing
	// 60-second window that flags the surge signal.
	SurgeThresholdPerMinute int `toml:"surge_threshold_per_minute"`
	// EntropyThreshold is the Shannon entropy (bits/byte) at or above
	// which a sampled file flags the high-entropy signal.
	EntropyThreshold float64 `toml:"entropy_threshold"`
	// SuspiciousExtensions are file suffixes that flag on any change.
	SuspiciousExtensions []string `toml:"suspicious_extensions"`
	// CooldownSeconds is how long the loop sleeps after an alert.
	CooldownSeconds int `toml:"cooldown_seconds"`
}

// NewConfig creates a Config for the given repository root and data
// directories, with default layout and detection thresholds.
func NewConfig(repoDir string, dataDirs []string) *Config {
	return &Config{
		RepoDir:     repoDir,
		DataDirs:    dataDirs,
		KeyFile:     filepath.Join(repoDir, "keys", "master.key"),
		ManifestDir: filepath.Join(repoDir, "manifests"),
		ChunksDir:   filepath.Join(repoDir, "chunks"),
		CanaryDir:   filepath.Join(repoDir, "canaries"),
		LogDir:      filepath.Join(repoDir, "logs"),
		AlertDBPath: filepath.Join(repoDir, "alerts.db"),
		Snapshot: SnapshotConfig{
			ChunkSizeBytes: 4 * 1024 * 1024,
		},
		Canary: CanaryConfig{
			PerDirectory: 3,
		},
		Watcher: WatcherConfig{
			SurgeThresholdPerMinute: 200,
			EntropyThreshold:        6.5,
			SuspiciousExtensions:    []string{".locked", ".crypt", ".crypto", ".encrypted", ".enc"},
			CooldownSeconds:         5,
		},
	}
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

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// Init initializes a new config file at the specified path.
// It refuses to overwrite an existing config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
