// Package config provides configuration directory management for the
// sshconsole binary.
package config

import (
	"os"
	"path/filepath"
)

// GetConfigDir returns the configuration directory for sshconsole.
// It follows platform-specific conventions:
// - Windows: %APPDATA%\sshconsole
// - Unix-like: $XDG_CONFIG_HOME/sshconsole or $HOME/.config/sshconsole
func GetConfigDir() (string, error) {
	var configDir string

	// Check for XDG_CONFIG_HOME first (cross-platform standard)
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		configDir = filepath.Join(xdgConfig, "sshconsole")
	} else if appData := os.Getenv("APPDATA"); appData != "" {
		// Windows: use APPDATA
		configDir = filepath.Join(appData, "sshconsole")
	} else if homeDir, err := os.UserHomeDir(); err == nil {
		// Unix-like: use ~/.config/sshconsole
		configDir = filepath.Join(homeDir, ".config", "sshconsole")
	} else {
		return "", err
	}

	// Ensure the directory exists
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return configDir, nil
}

// GetUserDBPath returns the full path to the user database file.
func GetUserDBPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "users.json"), nil
}

// GetHostKeyPath returns the full path to the server host key file.
func GetHostKeyPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "host_key"), nil
}

// GetAuthorizedKeysPath returns the full path to the authorized_keys file
// consumed for public-key authentication.
func GetAuthorizedKeysPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "authorized_keys"), nil
}
