// Package scripts discovers and runs the project's Python scripts. Runs are
// serialized through a single worker so scripts never compete for the
// project's data files.
package scripts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/workspace"
)

// Script is one runnable entry under app/scripts/.
type Script struct {
	Name    string `json:"name"`
	RelPath string `json:"path"`
	AbsPath string `json:"-"`
}

const scriptGlob = workspace.AppDirName + "/" + workspace.ScriptsDirName + "/**/*.py"

// Discover enumerates the project's Python scripts, sorted by relative path.
func Discover(ws *workspace.Workspace) ([]*Script, error) {
	matches, err := doublestar.Glob(os.DirFS(ws.Root), scriptGlob)
	if err != nil {
		return nil, fmt.Errorf("glob scripts: %w", err)
	}
	sort.Strings(matches)

	scripts := make([]*Script, 0, len(matches))
	for _, rel := range matches {
		scripts = append(scripts, &Script{
			Name:    filepath.Base(rel),
			RelPath: rel,
			AbsPath: filepath.Join(ws.Root, filepath.FromSlash(rel)),
		})
	}
	return scripts, nil
}
