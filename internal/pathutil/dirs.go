package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppName is the directory name used under the XDG base directories.
const AppName = "tabtime"

// DataDir returns the directory holding tabtime's stores.
//
// Uses $XDG_DATA_HOME/tabtime, falling back to ~/.local/share/tabtime.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, AppName), nil
}

// ConfigDir returns the directory holding tabtime's config file.
//
// Uses os.UserConfigDir(), which honours $XDG_CONFIG_HOME.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
