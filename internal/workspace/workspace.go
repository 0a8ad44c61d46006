// Package workspace owns the on-disk layout of a project: the conventional
// subtrees, the helper files the remote agent expects, and the lock that
// keeps two daemons from sharing one project.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/utils"
)

const (
	InputDirName    = "input"
	OutputDirName   = "output"
	AppDirName      = "app"
	ScriptsDirName  = "scripts"
	MetaDataDirName = "meta_data"

	InputMetadataFile  = "input_metadata.txt"
	OutputMetadataFile = "output_metadata.txt"

	lockFileName = ".vibefoundry.lock"
)

var ErrLocked = errors.New("project locked by another daemon")

// Workspace is a validated project root plus its conventional paths.
type Workspace struct {
	Root        string
	Name        string
	InputDir    string
	OutputDir   string
	AppDir      string
	ScriptsDir  string
	MetaDataDir string

	flock *flock.Flock
}

// New resolves rootDir and derives the conventional paths. It does not touch
// the filesystem beyond path resolution.
func New(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project path %q: %w", rootDir, err)
	}

	appDir := filepath.Join(root, AppDirName)
	return &Workspace{
		Root:        root,
		Name:        filepath.Base(root),
		InputDir:    filepath.Join(root, InputDirName),
		OutputDir:   filepath.Join(root, OutputDirName),
		AppDir:      appDir,
		ScriptsDir:  filepath.Join(appDir, ScriptsDirName),
		MetaDataDir: filepath.Join(appDir, MetaDataDirName),
		flock:       flock.New(filepath.Join(root, lockFileName)),
	}, nil
}

// Lock takes the project file lock. Fails with ErrLocked when another daemon
// holds it.
func (w *Workspace) Lock() error {
	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock project: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	return nil
}

// Unlock releases the project lock and removes the lock file.
func (w *Workspace) Unlock() error {
	if !w.flock.Locked() {
		return nil
	}
	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock project: %w", err)
	}
	return os.Remove(w.flock.Path())
}

// Scaffold creates the conventional subtrees and helper files. Existing files
// are never overwritten, so re-selecting the same project is a no-op.
func (w *Workspace) Scaffold() error {
	dirs := []string{w.InputDir, w.OutputDir, w.AppDir, w.ScriptsDir, w.MetaDataDir}
	for _, dir := range dirs {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	defaults := map[string]string{
		filepath.Join(w.AppDir, "CLAUDE.md"):         defaultClaudeMD,
		filepath.Join(w.AppDir, "metadatafarmer.py"): defaultMetadataFarmer,
	}
	for path, content := range defaults {
		if utils.FileExists(path) {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	return nil
}

// AbsPath joins a project-relative path onto the root, rejecting escapes.
func (w *Workspace) AbsPath(rel string) (string, error) {
	return utils.SafeJoin(w.Root, rel)
}

// RelPath returns the project-relative form of an absolute path, with forward
// slashes.
func (w *Workspace) RelPath(abs string) (string, error) {
	rel, err := filepath.Rel(w.Root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
