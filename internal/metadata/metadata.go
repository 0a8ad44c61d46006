// Package metadata writes the plain-text summaries of the project's data
// files that the remote coding agent reads for context.
package metadata

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vibefoundry/vibefoundry-sandbox/internal/preview"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/utils"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/workspace"
)

// DebounceWindow batches bursts of data-file changes into one rebuild.
const DebounceWindow = 2 * time.Second

var dataExts = map[string]bool{
	".csv":     true,
	".xlsx":    true,
	".xls":     true,
	".parquet": true,
}

// Builder generates the input/output folder summaries.
type Builder struct {
	ws   *workspace.Workspace
	prev *preview.Previewer
	log  *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

func NewBuilder(ws *workspace.Workspace, prev *preview.Previewer, log *slog.Logger) *Builder {
	return &Builder{
		ws:   ws,
		prev: prev,
		log:  log.With("component", "metadata", "project", ws.Name),
	}
}

// Generate rebuilds both summaries and writes them under app/meta_data/.
func (b *Builder) Generate() (input, output string, err error) {
	if err := utils.EnsureDir(b.ws.MetaDataDir); err != nil {
		return "", "", fmt.Errorf("create meta_data dir: %w", err)
	}

	input = b.scanFolder(b.ws.InputDir, "Input Folder")
	output = b.scanFolder(b.ws.OutputDir, "Output Folder")

	if err := os.WriteFile(filepath.Join(b.ws.MetaDataDir, workspace.InputMetadataFile), []byte(input), 0o644); err != nil {
		return "", "", fmt.Errorf("write input metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(b.ws.MetaDataDir, workspace.OutputMetadataFile), []byte(output), 0o644); err != nil {
		return "", "", fmt.Errorf("write output metadata: %w", err)
	}

	b.log.Debug("metadata rebuilt")
	return input, output, nil
}

// Kick schedules a rebuild after the debounce window; repeated kicks within
// the window collapse into one rebuild.
func (b *Builder) Kick() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(DebounceWindow, func() {
		if _, _, err := b.Generate(); err != nil {
			b.log.Warn("metadata rebuild failed", "error", err)
		}
	})
}

// Stop cancels any pending debounced rebuild.
func (b *Builder) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// scanFolder renders one folder's summary.
func (b *Builder) scanFolder(folder, title string) string {
	lines := []string{
		title + " Metadata",
		"Folder: " + folder,
		"Generated: " + time.Now().Format("2006-01-02 15:04:05"),
		strings.Repeat("=", 50),
		"",
	}

	files := findDataFiles(folder)
	if len(files) == 0 {
		lines = append(lines, "No data files found.")
		return strings.Join(lines, "\n")
	}

	for _, abs := range files {
		lines = append(lines, b.fileBlock(folder, abs)...)
	}
	return strings.Join(lines, "\n")
}

func (b *Builder) fileBlock(folder, abs string) []string {
	rel, err := filepath.Rel(folder, abs)
	if err != nil {
		rel = filepath.Base(abs)
	}
	rel = filepath.ToSlash(rel)

	info, err := os.Stat(abs)
	if err != nil {
		return errorBlock(abs, err)
	}

	if strings.EqualFold(filepath.Ext(abs), ".parquet") {
		return errorBlock(abs, fmt.Errorf("parquet format not supported"))
	}

	frame, err := b.prev.Load(abs)
	if err != nil {
		return errorBlock(abs, err)
	}

	lines := []string{
		"File: " + rel,
		"  Absolute Path: " + abs,
		fmt.Sprintf("  Size: %.2f MB", float64(info.Size())/(1024*1024)),
		fmt.Sprintf("  Rows: %d", frame.TotalRows()),
		fmt.Sprintf("  Columns (%d):", len(frame.Columns)),
	}
	for _, col := range frame.ColumnInfo {
		lines = append(lines, fmt.Sprintf("    - %s (%s)", col.Name, col.Dtype))
	}
	return append(lines, "")
}

func errorBlock(abs string, err error) []string {
	return []string{
		"File: " + filepath.Base(abs),
		"  Error reading: " + err.Error(),
		"",
	}
}

// findDataFiles walks folder for data files, sorted by path. A missing
// folder is simply empty.
func findDataFiles(folder string) []string {
	var files []string
	filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != folder {
				return filepath.SkipDir
			}
			return nil
		}
		if dataExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files
}
