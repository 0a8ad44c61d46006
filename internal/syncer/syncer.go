// Package syncer keeps the local app/ tree and the remote sandbox scripts
// folder in step. Pull is modtime-vector driven; push is unconditional.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/policy"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/sandbox"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/utils"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/workspace"
)

// ErrSyncInFlight is returned when a sync operation is already running.
var ErrSyncInFlight = errors.New("sync already in progress")

const (
	keepaliveInterval = 60 * time.Second
	keepaliveTimeout  = 30 * time.Second
	timeKeeperFile    = "time_keeper.txt"
)

// PullResult reports what a pull changed and the vector after it.
type PullResult struct {
	SyncedPaths []string         `json:"synced_paths"`
	Vector      map[string]int64 `json:"vector"`
}

// PushResult reports what a push uploaded.
type PushResult struct {
	PushedPaths []string `json:"pushed_paths"`
}

// MetadataResult reports whether the summaries reached the remote.
type MetadataResult struct {
	Synced bool `json:"synced"`
}

// FullResult is pull followed by metadata push.
type FullResult struct {
	Scripts        *PullResult `json:"scripts"`
	MetadataSynced bool        `json:"metadata_synced"`
}

// Syncer runs the sync operations for one project against one sandbox.
// Operations are single-flight: concurrent callers get ErrSyncInFlight.
type Syncer struct {
	ws     *workspace.Workspace
	client *sandbox.Client
	log    *slog.Logger

	inflight sync.Mutex

	vecMu  sync.RWMutex
	vector map[string]int64
}

func New(ws *workspace.Workspace, client *sandbox.Client, log *slog.Logger) *Syncer {
	return &Syncer{
		ws:     ws,
		client: client,
		log:    log.With("component", "syncer", "project", ws.Name),
		vector: make(map[string]int64),
	}
}

// Vector returns a copy of the current modtime vector.
func (s *Syncer) Vector() map[string]int64 {
	s.vecMu.RLock()
	defer s.vecMu.RUnlock()

	out := make(map[string]int64, len(s.vector))
	for k, v := range s.vector {
		out[k] = v
	}
	return out
}

// AdoptVector merges a previously returned vector, raising entries only.
// Lets a browser session hand its last-known sync state back to a fresh
// daemon.
func (s *Syncer) AdoptVector(v map[string]int64) {
	for path, modtime := range v {
		s.vectorRaise(path, modtime)
	}
}

func (s *Syncer) vectorGet(path string) (int64, bool) {
	s.vecMu.RLock()
	defer s.vecMu.RUnlock()
	v, ok := s.vector[path]
	return v, ok
}

// vectorRaise raises a key, never lowers it.
func (s *Syncer) vectorRaise(path string, modtime int64) {
	s.vecMu.Lock()
	defer s.vecMu.Unlock()
	if cur, ok := s.vector[path]; !ok || modtime > cur {
		s.vector[path] = modtime
	}
}

// Pull fetches remote scripts that are new or newer than the vector entry and
// writes them under app/.
func (s *Syncer) Pull(ctx context.Context) (*PullResult, error) {
	if !s.inflight.TryLock() {
		return nil, ErrSyncInFlight
	}
	defer s.inflight.Unlock()
	return s.pull(ctx)
}

func (s *Syncer) pull(ctx context.Context) (*PullResult, error) {
	scripts, err := s.client.ListScripts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote scripts: %w", err)
	}

	synced := []string{}
	for _, script := range scripts {
		remoteModtime := script.ModifiedUnix()
		if local, ok := s.vectorGet(script.Path); ok && local >= remoteModtime {
			continue
		}

		file, err := s.client.GetScript(ctx, script.Path)
		if err != nil {
			s.log.Warn("pull: fetch failed", "path", script.Path, "error", err)
			continue
		}

		if policy.ForbiddenInApp(script.Path, int64(len(file.Content))) {
			continue
		}

		abs, err := utils.SafeJoin(s.ws.AppDir, script.Path)
		if err != nil {
			s.log.Warn("pull: unsafe path", "path", script.Path, "error", err)
			continue
		}
		if err := utils.EnsureDir(filepath.Dir(abs)); err != nil {
			s.log.Warn("pull: mkdir failed", "path", script.Path, "error", err)
			continue
		}
		if err := os.WriteFile(abs, []byte(file.Content), 0o644); err != nil {
			s.log.Warn("pull: write failed", "path", script.Path, "error", err)
			continue
		}

		s.vectorRaise(script.Path, remoteModtime)
		synced = append(synced, script.Path)
		s.log.Info("pulled script",
			"path", script.Path,
			"size", humanize.Bytes(uint64(len(file.Content))))
	}

	return &PullResult{SyncedPaths: synced, Vector: s.Vector()}, nil
}

// Push uploads every syncable file under app/ to the remote. Protected files
// are dropped silently, forbidden extensions with a log line.
func (s *Syncer) Push(ctx context.Context) (*PushResult, error) {
	if !s.inflight.TryLock() {
		return nil, ErrSyncInFlight
	}
	defer s.inflight.Unlock()

	pushed := []string{}
	err := filepath.WalkDir(s.ws.AppDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.ws.AppDir && (policy.IgnoredDir(d.Name()) || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.ws.AppDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if policy.Ignored(rel) || policy.ProtectedFromPush(rel) {
			return nil
		}
		if policy.ForbiddenForSync(rel) {
			s.log.Info("push: skipping forbidden file", "path", rel)
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("push: read failed", "path", rel, "error", err)
			return nil
		}
		if !utf8.Valid(content) {
			s.log.Warn("push: skipping non-text file", "path", rel)
			return nil
		}

		if err := s.client.PutScript(ctx, rel, string(content)); err != nil {
			s.log.Warn("push: upload failed", "path", rel, "error", err)
			return nil
		}

		pushed = append(pushed, rel)
		s.log.Info("pushed script",
			"path", rel,
			"size", humanize.Bytes(uint64(len(content))))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.ws.AppDir, err)
	}

	return &PushResult{PushedPaths: pushed}, nil
}

// PushMetadata uploads the two project summaries. When neither exists it
// reports unsynced without touching the remote.
func (s *Syncer) PushMetadata(ctx context.Context) (*MetadataResult, error) {
	if !s.inflight.TryLock() {
		return nil, ErrSyncInFlight
	}
	defer s.inflight.Unlock()
	return s.pushMetadata(ctx)
}

func (s *Syncer) pushMetadata(ctx context.Context) (*MetadataResult, error) {
	input := readIfExists(filepath.Join(s.ws.MetaDataDir, workspace.InputMetadataFile))
	output := readIfExists(filepath.Join(s.ws.MetaDataDir, workspace.OutputMetadataFile))
	if input == "" && output == "" {
		return &MetadataResult{Synced: false}, nil
	}

	if err := s.client.PutMetadata(ctx, input, output); err != nil {
		return nil, fmt.Errorf("push metadata: %w", err)
	}
	return &MetadataResult{Synced: true}, nil
}

// FullSync pulls scripts and then pushes metadata. A metadata failure does
// not fail the pull result.
func (s *Syncer) FullSync(ctx context.Context) (*FullResult, error) {
	if !s.inflight.TryLock() {
		return nil, ErrSyncInFlight
	}
	defer s.inflight.Unlock()

	pull, err := s.pull(ctx)
	if err != nil {
		return nil, err
	}

	metadataSynced := false
	if meta, err := s.pushMetadata(ctx); err != nil {
		s.log.Warn("full sync: metadata push failed", "error", err)
	} else {
		metadataSynced = meta.Synced
	}

	return &FullResult{Scripts: pull, MetadataSynced: metadataSynced}, nil
}

// RunKeepalive appends a timestamp line to the remote's time keeper file
// every minute until ctx is cancelled. Pure activity signaling; failures are
// logged at debug level and otherwise ignored.
func (s *Syncer) RunKeepalive(ctx context.Context) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.keepaliveTick(ctx)
		}
	}
}

func (s *Syncer) keepaliveTick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, keepaliveTimeout)
	defer cancel()

	var content string
	file, err := s.client.GetScript(ctx, timeKeeperFile)
	switch {
	case err == nil:
		content = file.Content
	case sandbox.KindOf(err) == sandbox.KindNotFound:
		// fresh file
	default:
		s.log.Debug("keepalive: read failed", "error", err)
		return
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += time.Now().Format("2006-01-02 15:04:05") + " keepalive\n"

	if err := s.client.PutScript(ctx, timeKeeperFile, content); err != nil {
		s.log.Debug("keepalive: write failed", "error", err)
	}
}

func readIfExists(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(content)
}
