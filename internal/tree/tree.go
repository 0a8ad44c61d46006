// Package tree builds filtered snapshots of the project directory. Scans
// enforce the app-subtree policy: forbidden files are deleted on sight and
// never appear in the returned tree.
package tree

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vibefoundry/vibefoundry-sandbox/internal/policy"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/workspace"
)

// Node is one entry of a tree snapshot. Paths are relative to the project
// root, except the root node whose path is its own name.
type Node struct {
	Name         string  `json:"name"`
	Path         string  `json:"path"`
	IsDirectory  bool    `json:"isDirectory"`
	Extension    *string `json:"extension,omitempty"`
	LastModified *int64  `json:"lastModified,omitempty"`
	Children     []*Node `json:"children,omitempty"`
}

// Snapshot is the immutable result of one scan. Removed lists the
// project-relative paths of files deleted for violating the app policy.
type Snapshot struct {
	Tree    *Node
	Removed []string
}

// Scan walks root and returns a filtered snapshot. Ignored directories are
// skipped entirely. Files under app/ that the policy forbids are removed from
// disk and excluded from the snapshot either way. The scan aborts between
// directory reads when ctx is cancelled.
func Scan(ctx context.Context, root string) (*Snapshot, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root: %s is not a directory", root)
	}

	snap := &Snapshot{}
	node, err := scanDir(ctx, root, root, info.Name(), snap)
	if err != nil {
		return nil, err
	}
	node.Path = info.Name()
	snap.Tree = node
	return snap, nil
}

func scanDir(ctx context.Context, root, dir, name string, snap *Snapshot) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	relDir, _ := filepath.Rel(root, dir)
	node := &Node{
		Name:        name,
		Path:        filepath.ToSlash(relDir),
		IsDirectory: true,
		Children:    []*Node{},
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// unreadable dirs appear empty, matching the picker behavior
		return node, nil
	}

	for _, entry := range entries {
		child := filepath.Join(dir, entry.Name())
		rel, _ := filepath.Rel(root, child)
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if policy.IgnoredDir(entry.Name()) {
				continue
			}
			childNode, err := scanDir(ctx, root, child, entry.Name(), snap)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, childNode)
			continue
		}

		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			continue
		}

		if appRel, ok := appRelative(rel); ok && policy.ForbiddenInApp(appRel, fi.Size()) {
			if err := os.Remove(child); err != nil {
				slog.Warn("tree scan: forbidden file delete failed", "path", rel, "error", err)
			} else {
				slog.Info("tree scan: deleted forbidden file", "path", rel)
			}
			snap.Removed = append(snap.Removed, rel)
			continue
		}

		e := strings.ToLower(filepath.Ext(entry.Name()))
		mod := fi.ModTime().Unix()
		fileNode := &Node{
			Name:         entry.Name(),
			Path:         rel,
			IsDirectory:  false,
			LastModified: &mod,
		}
		if e != "" {
			fileNode.Extension = &e
		}
		node.Children = append(node.Children, fileNode)
	}

	sortChildren(node.Children)
	return node, nil
}

// appRelative returns the path relative to the app/ subtree when rel is
// inside it.
func appRelative(rel string) (string, bool) {
	if rel == workspace.AppDirName {
		return "", false
	}
	prefix := workspace.AppDirName + "/"
	if strings.HasPrefix(rel, prefix) {
		return strings.TrimPrefix(rel, prefix), true
	}
	return "", false
}

// sortChildren orders directories before files, then case-insensitive by name.
func sortChildren(children []*Node) {
	sort.SliceStable(children, func(i, j int) bool {
		if children[i].IsDirectory != children[j].IsDirectory {
			return children[i].IsDirectory
		}
		return strings.ToLower(children[i].Name) < strings.ToLower(children[j].Name)
	})
}

// Hash digests the snapshot's sorted path:modtime pairs. Two snapshots of a
// quiescent filesystem hash equal.
func Hash(snap *Snapshot) string {
	var pairs []string
	collectPairs(snap.Tree, &pairs)
	sort.Strings(pairs)

	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func collectPairs(n *Node, out *[]string) {
	if n == nil {
		return
	}
	if !n.IsDirectory && n.LastModified != nil {
		*out = append(*out, fmt.Sprintf("%s:%d", n.Path, *n.LastModified))
	}
	for _, c := range n.Children {
		collectPairs(c, out)
	}
}
