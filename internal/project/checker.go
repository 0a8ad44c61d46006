package project

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vibefoundry/vibefoundry-sandbox/internal/policy"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/workspace"
)

// Change is one observed difference since the previous check.
type Change struct {
	Path string `json:"path"`
	Type string `json:"type"` // created | modified | deleted
}

// CheckResult buckets changes the way the browser's poller consumes them.
type CheckResult struct {
	Changes       bool     `json:"changes"`
	InputChanges  []Change `json:"input_changes"`
	OutputChanges []Change `json:"output_changes"`
	ScriptChanges []Change `json:"script_changes"`
}

// Checker is the poll fallback for clients that cannot hold a watch socket:
// it diffs modtime snapshots of the interesting subtrees between calls.
type Checker struct {
	ws *workspace.Workspace

	mu   sync.Mutex
	prev map[string]map[string]int64 // bucket -> rel path -> modtime
}

func NewChecker(ws *workspace.Workspace) *Checker {
	return &Checker{ws: ws}
}

var checkerBuckets = []struct {
	name string
	dir  func(ws *workspace.Workspace) string
}{
	{"input", func(ws *workspace.Workspace) string { return ws.InputDir }},
	{"output", func(ws *workspace.Workspace) string { return ws.OutputDir }},
	{"scripts", func(ws *workspace.Workspace) string { return ws.ScriptsDir }},
}

// Check compares the current state against the previous call. The first call
// records a baseline and reports nothing.
func (c *Checker) Check() *CheckResult {
	current := make(map[string]map[string]int64, len(checkerBuckets))
	for _, bucket := range checkerBuckets {
		current[bucket.name] = snapshotDir(bucket.dir(c.ws))
	}

	c.mu.Lock()
	prev := c.prev
	c.prev = current
	c.mu.Unlock()

	res := &CheckResult{
		InputChanges:  []Change{},
		OutputChanges: []Change{},
		ScriptChanges: []Change{},
	}
	if prev == nil {
		return res
	}

	for _, bucket := range checkerBuckets {
		changes := diffSnapshots(prev[bucket.name], current[bucket.name])
		switch bucket.name {
		case "input":
			res.InputChanges = changes
		case "output":
			res.OutputChanges = changes
		case "scripts":
			res.ScriptChanges = changes
		}
		if len(changes) > 0 {
			res.Changes = true
		}
	}
	return res
}

func snapshotDir(dir string) map[string]int64 {
	snap := make(map[string]int64)
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && (policy.IgnoredDir(d.Name()) || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		snap[filepath.ToSlash(rel)] = info.ModTime().Unix()
		return nil
	})
	return snap
}

func diffSnapshots(prev, current map[string]int64) []Change {
	changes := []Change{}
	for path, mod := range current {
		old, existed := prev[path]
		switch {
		case !existed:
			changes = append(changes, Change{Path: path, Type: "created"})
		case old != mod:
			changes = append(changes, Change{Path: path, Type: "modified"})
		}
	}
	for path := range prev {
		if _, still := current[path]; !still {
			changes = append(changes, Change{Path: path, Type: "deleted"})
		}
	}
	return changes
}
