package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscapesRoot marks traversal attempts out of the project folder.
var ErrPathEscapesRoot = errors.New("path escapes project folder")

func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	// Expand `~` to the user's home directory
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// Resolve relative paths (.., .) and return an absolute path
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return filepath.Clean(absPath), nil
}

func EnsureParent(path string) error {
	dir := filepath.Dir(path)
	return EnsureDir(dir)
}

func EnsureDir(path string) error {
	// already exists
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.MkdirAll(path, 0o755)
}

func FileExists(path string) bool {
	// check if the path is a file
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// WithinRoot reports whether path resolves to root or somewhere below it.
// Both arguments must be absolute. Symlinks are not followed; the check is
// purely lexical after cleaning.
func WithinRoot(root string, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}

// SafeJoin joins rel onto root and verifies the result stays inside root.
// Returns an error when rel escapes via .. segments or an absolute path.
func SafeJoin(root string, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		// treat absolute inputs as root-relative only when they resolve inside
		if WithinRoot(root, filepath.Clean(rel)) {
			return filepath.Clean(rel), nil
		}
		return "", ErrPathEscapesRoot
	}
	joined := filepath.Clean(filepath.Join(root, rel))
	if !WithinRoot(root, joined) {
		return "", ErrPathEscapesRoot
	}
	return joined, nil
}
