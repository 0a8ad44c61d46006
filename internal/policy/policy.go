// Package policy is the single authority on which paths may live under the
// protected app subtree, which may cross the sync boundary, and which the
// remote owns. Every other component consults these predicates instead of
// carrying its own lists.
package policy

import (
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	ignore "github.com/sabhiram/go-gitignore"
)

// MaxAppTextSize is the largest .txt file allowed under app/. Anything bigger
// is treated as smuggled data and auto-deleted.
const MaxAppTextSize = 50 * 1024

var (
	// forbiddenInAppExts never appear under app/ regardless of size.
	forbiddenInAppExts = mapset.NewSet(".csv", ".xlsx", ".xls", ".json")

	// forbiddenSyncExts never cross the outbound boundary.
	forbiddenSyncExts = mapset.NewSet(".pdf", ".csv", ".xlsx", ".xls", ".xlsm", ".xlsb", ".ppt", ".pptx")

	// protectedNames are owned by the remote; local copies are never pushed.
	protectedNames = mapset.NewSet("CLAUDE.md")

	// protectedStems match any extension (sync_server.py, sync_server.go, ...).
	protectedStems = mapset.NewSet("sync_server", "metadatafarmer")

	// protectedDirs are remote-owned directories under app/.
	protectedDirs = mapset.NewSet("meta_data")

	ignoredDirNames = mapset.NewSet("node_modules", "__pycache__", ".git", "dist", "build", "venv", ".venv")

	ignoreMatcher = ignore.CompileIgnoreLines(
		".*",
		"node_modules/",
		"__pycache__/",
		".git/",
		"dist/",
		"build/",
		"venv/",
		".venv/",
	)
)

// ext returns the lowercased extension of name, including the dot.
func ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// ForbiddenInApp reports whether a file with the given project-relative path
// and size must not exist under app/. The caller supplies the size from a
// stat; pass a negative size when it is unknown (the .txt limit is then not
// applied).
func ForbiddenInApp(relPath string, size int64) bool {
	e := ext(relPath)
	if forbiddenInAppExts.Contains(e) {
		return true
	}
	if e == ".txt" && size > MaxAppTextSize {
		return true
	}
	return false
}

// ForbiddenForSync reports whether the file may never be pushed to the remote.
func ForbiddenForSync(path string) bool {
	return forbiddenSyncExts.Contains(ext(path))
}

// ProtectedFromPush reports whether the app-relative path is owned by the
// remote. Matches the reserved file names and anything under meta_data/.
func ProtectedFromPush(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	for _, seg := range strings.Split(rel, "/") {
		if protectedDirs.Contains(seg) {
			return true
		}
	}
	name := filepath.Base(rel)
	if protectedNames.Contains(name) {
		return true
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return protectedStems.Contains(stem)
}

// IgnoredDir reports whether a directory with this name is skipped entirely
// during scans, walks, and watching.
func IgnoredDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return ignoredDirNames.Contains(name)
}

// Ignored reports whether any segment of the project-relative path is a
// dotfile or an ignored directory.
func Ignored(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	if rel == "" || rel == "." {
		return false
	}
	return ignoreMatcher.MatchesPath(rel)
}
