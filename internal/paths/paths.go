// Package paths resolves where the store keeps its configuration and data.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppDirName is the directory created under the platform config and data
// roots.
const AppDirName = "neurodata"

// Environment variables that override the platform defaults.
const (
	EnvConfigDir = "NEURODATA_CONFIG_DIR"
	EnvDataDir   = "NEURODATA_DATA_DIR"
)

// platformDir holds platform lookups that tests can replace.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform config directory.
//
// Linux:   $XDG_CONFIG_HOME/neurodata (fallback ~/.config/neurodata)
// macOS:   ~/Library/Application Support/neurodata
// Windows: %APPDATA%/neurodata
func DefaultConfigDir() (string, error) {
	return xdgOrUserDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory.
//
// Linux:   $XDG_DATA_HOME/neurodata (fallback ~/.local/share/neurodata)
// macOS and Windows share the config location.
func DefaultDataDir() (string, error) {
	return xdgOrUserDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgOrUserDir(xdgVar, homeRel string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppDirName), nil
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, AppDirName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, AppDirName), nil
}

// ResolveConfigDir returns the config directory: explicit, then
// NEURODATA_CONFIG_DIR, then DefaultConfigDir. Explicit and environment
// values are made absolute.
func ResolveConfigDir(explicit string) (string, error) {
	return resolve(DefaultConfigDir, EnvConfigDir, explicit)
}

// ResolveDataDir returns the data directory: explicit, then the value from
// config.yaml, then NEURODATA_DATA_DIR, then DefaultDataDir.
func ResolveDataDir(explicit, configValue string) (string, error) {
	return resolve(DefaultDataDir, EnvDataDir, explicit, configValue)
}

func resolve(fallback func() (string, error), env string, candidates ...string) (string, error) {
	for _, c := range candidates {
		if c != "" {
			return filepath.Abs(c)
		}
	}
	if v := os.Getenv(env); v != "" {
		return filepath.Abs(v)
	}
	return fallback()
}
