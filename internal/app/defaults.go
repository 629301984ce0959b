package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults holds the resolved application default paths.
type Defaults struct {
	// ConfigPath is the config file location.
	ConfigPath string
	// RepoDir is the backup repository directory.
	RepoDir string
}

// GetDefaults returns application default paths, checking environment
// variables first.
// Environment variables:
//   - RXGUARD_CONFIG_PATH: config file location (default: ~/.config/rxguard.toml)
//   - RXGUARD_HOME: repository directory (default: ~/.local/share/rxguard)
func GetDefaults() (Defaults, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return Defaults{}, err
	}

	repoDir, err := getRepoDir()
	if err != nil {
		return Defaults{}, err
	}

	return Defaults{ConfigPath: configPath, RepoDir: repoDir}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("RXGUARD_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "rxguard.toml"), nil
}

func getRepoDir() (string, error) {
	if path := os.Getenv("RXGUARD_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "rxguard"), nil
}
