// Package pathutil resolves tabtime's data and config directories and keeps
// configured store files inside them.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscapesDataDir is returned when a store file would live outside the
// data directory.
var ErrEscapesDataDir = errors.New("store file escapes data directory")

// StoreFile resolves name, a store file configured relative to dataDir, to
// an absolute path with symlinks resolved.
//
// Absolute names are accepted only when they land inside dataDir. The file
// and any missing parent directories need not exist yet, but name must not
// refer to an existing directory.
//
//	path, err := StoreFile(dataDir, "stores/tabtime.db")
func StoreFile(dataDir, name string) (string, error) {
	switch {
	case strings.TrimSpace(name) == "":
		return "", errors.New("store file name is empty")
	case strings.ContainsRune(name, 0):
		return "", errors.New("store file name contains a NUL byte")
	}

	root, err := filepath.EvalSymlinks(dataDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}

	target := name
	if !filepath.IsAbs(target) {
		target = filepath.Join(dataDir, target)
	}
	resolved, err := resolvePartial(filepath.Clean(target))
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrEscapesDataDir, name)
	}
	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return "", fmt.Errorf("store file %s is a directory", name)
	}
	return resolved, nil
}

// resolvePartial resolves symlinks in the longest existing prefix of path
// and appends the components that do not exist yet.
func resolvePartial(path string) (string, error) {
	var missing []string
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve %s: %w", current, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
