// Package paths resolves where fieldsurvey keeps its configuration file and
// its local cache.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories.
const AppName = "fieldsurvey"

// ConfigFileName is the configuration file inside the config directory.
const ConfigFileName = "config.yaml"

// Environment variables that override directory locations. EnvDataDir is
// read through viper as the data_dir key.
const (
	EnvConfigDir = "FIELDSURVEY_CONFIG_DIR"
	EnvDataDir   = "FIELDSURVEY_DATA_DIR"
)

// platformDir holds platform lookups so tests can replace them.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// userDir returns <base>/fieldsurvey. On Linux base is $<xdgVar> or
// ~/<fallback...>; elsewhere it is os.UserConfigDir.
func userDir(xdgVar string, fallback ...string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, fallback...), AppName)...), nil
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/fieldsurvey (fallback ~/.config/fieldsurvey)
// macOS:   ~/Library/Application Support/fieldsurvey
// Windows: %APPDATA%/fieldsurvey
func DefaultConfigDir() (string, error) {
	return userDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory.
//
// Linux:   $XDG_DATA_HOME/fieldsurvey (fallback ~/.local/share/fieldsurvey)
// Others:  same as DefaultConfigDir
func DefaultDataDir() (string, error) {
	return userDir("XDG_DATA_HOME", ".local", "share")
}

// ResolveConfigDir returns the configuration directory: flag, then
// FIELDSURVEY_CONFIG_DIR, then the platform default.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory: flag, then the configured
// data_dir value, then the platform default.
func ResolveDataDir(flag, configured string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configured != "" {
		return filepath.Abs(configured)
	}
	return DefaultDataDir()
}

// ConfigFile returns the path of the configuration file in configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}
