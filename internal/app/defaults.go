package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - REQSTORE_CONFIG_PATH: config file location (default: ~/.config/reqstore.toml)
//   - REQSTORE_HOME: base directory for reqstore data (default: ~/.local/share/reqstore)
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome("REQSTORE_CONFIG_PATH", ".config", "reqstore.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome("REQSTORE_HOME", ".local", "share", "reqstore")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the value of key when set, otherwise the path below the
// user's home directory.
func envOrHome(key string, elem ...string) (string, error) {
	if path := os.Getenv(key); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
