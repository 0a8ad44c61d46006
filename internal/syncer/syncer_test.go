package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/codec"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/sandbox"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/workspace"
)

type fakeRemote struct {
	mu       sync.Mutex
	scripts  map[string]fakeScript
	metadata map[string]string
	gate     chan struct{} // when set, GET /scripts blocks until closed
}

type fakeScript struct {
	content  string
	modified float64
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		scripts:  make(map[string]fakeScript),
		metadata: make(map[string]string),
	}
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/scripts" && r.Method == http.MethodGet:
		if gate != nil {
			<-gate
		}
		f.mu.Lock()
		type entry struct {
			Name     string  `json:"name"`
			Path     string  `json:"path"`
			Size     int64   `json:"size"`
			Modified float64 `json:"modified"`
		}
		listing := struct {
			Scripts []entry `json:"scripts"`
		}{Scripts: []entry{}}
		for path, s := range f.scripts {
			listing.Scripts = append(listing.Scripts, entry{
				Name:     filepath.Base(path),
				Path:     path,
				Size:     int64(len(s.content)),
				Modified: s.modified,
			})
		}
		f.mu.Unlock()
		writeJSON(w, listing)

	case strings.HasPrefix(r.URL.Path, "/scripts/") && r.Method == http.MethodGet:
		path := strings.TrimPrefix(r.URL.Path, "/scripts/")
		f.mu.Lock()
		s, ok := f.scripts[path]
		f.mu.Unlock()
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"detail":"script not found: %s"}`, path)
			return
		}
		writeJSON(w, map[string]any{
			"name": filepath.Base(path), "path": path,
			"content": s.content, "modified": s.modified,
		})

	case strings.HasPrefix(r.URL.Path, "/scripts/") && r.Method == http.MethodPost:
		path := strings.TrimPrefix(r.URL.Path, "/scripts/")
		var body struct {
			Content string `json:"content"`
		}
		raw := make([]byte, r.ContentLength)
		r.Body.Read(raw)
		codec.JSONUnmarshal(raw, &body)
		f.mu.Lock()
		f.scripts[path] = fakeScript{content: body.Content, modified: 1700000100}
		f.mu.Unlock()
		writeJSON(w, map[string]string{"status": "ok"})

	case r.URL.Path == "/metadata" && r.Method == http.MethodPost:
		var body struct {
			InputMetadata  string `json:"input_metadata"`
			OutputMetadata string `json:"output_metadata"`
		}
		raw := make([]byte, r.ContentLength)
		r.Body.Read(raw)
		codec.JSONUnmarshal(raw, &body)
		f.mu.Lock()
		f.metadata["input"] = body.InputMetadata
		f.metadata["output"] = body.OutputMetadata
		f.mu.Unlock()
		writeJSON(w, map[string]string{"status": "ok"})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	raw, _ := codec.JSONMarshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

func newTestSyncer(t *testing.T, remote *fakeRemote) (*Syncer, *workspace.Workspace) {
	t.Helper()
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	client, err := sandbox.NewClient(srv.URL)
	require.NoError(t, err)

	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.Scaffold())

	return New(ws, client, slog.New(slog.NewTextHandler(os.Stderr, nil))), ws
}

func TestPullWritesNewScripts(t *testing.T) {
	remote := newFakeRemote()
	remote.scripts["run.py"] = fakeScript{content: "print(1)", modified: 1700000000.9}
	remote.scripts["lib/util.py"] = fakeScript{content: "x = 1", modified: 1700000000.1}

	s, ws := newTestSyncer(t, remote)

	res, err := s.Pull(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run.py", "lib/util.py"}, res.SyncedPaths)
	assert.Equal(t, int64(1700000000), res.Vector["run.py"])
	assert.Equal(t, int64(1700000000), res.Vector["lib/util.py"])

	content, err := os.ReadFile(filepath.Join(ws.AppDir, "lib", "util.py"))
	require.NoError(t, err)
	assert.Equal(t, "x = 1", string(content))

	// unchanged modtimes: second pull is a no-op
	res, err = s.Pull(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.SyncedPaths)
}

func TestPullSkipsForbiddenFiles(t *testing.T) {
	remote := newFakeRemote()
	remote.scripts["data.csv"] = fakeScript{content: "a,b\n1,2", modified: 1700000000}

	s, ws := newTestSyncer(t, remote)

	res, err := s.Pull(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.SyncedPaths)
	assert.NotContains(t, res.Vector, "data.csv")
	assert.NoFileExists(t, filepath.Join(ws.AppDir, "data.csv"))
}

func TestPullNeverLowersVector(t *testing.T) {
	remote := newFakeRemote()
	remote.scripts["run.py"] = fakeScript{content: "old", modified: 1600000000}

	s, ws := newTestSyncer(t, remote)
	s.vectorRaise("run.py", 1700000000)

	res, err := s.Pull(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.SyncedPaths)
	assert.Equal(t, int64(1700000000), res.Vector["run.py"])
	assert.NoFileExists(t, filepath.Join(ws.AppDir, "run.py"))
}

func TestPushFiltersPolicy(t *testing.T) {
	remote := newFakeRemote()
	s, ws := newTestSyncer(t, remote)

	write := func(rel, content string) {
		path := filepath.Join(ws.AppDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("main.py", "print(1)")
	write("report.xlsx", "not really a spreadsheet")
	write("meta_data/input_metadata.txt", "Input Folder Metadata")
	write("node_modules/pkg/index.js", "module.exports = {}")
	// CLAUDE.md and metadatafarmer.py exist from Scaffold

	res, err := s.Push(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.py"}, res.PushedPaths)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Contains(t, remote.scripts, "main.py")
	assert.NotContains(t, remote.scripts, "report.xlsx")
	assert.NotContains(t, remote.scripts, "CLAUDE.md")
	assert.NotContains(t, remote.scripts, "metadatafarmer.py")
	assert.NotContains(t, remote.scripts, "meta_data/input_metadata.txt")
}

func TestPushMetadataEmptyShortCircuits(t *testing.T) {
	remote := newFakeRemote()
	s, _ := newTestSyncer(t, remote)

	res, err := s.PushMetadata(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Synced)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Empty(t, remote.metadata)
}

func TestPushMetadata(t *testing.T) {
	remote := newFakeRemote()
	s, ws := newTestSyncer(t, remote)

	require.NoError(t, os.WriteFile(
		filepath.Join(ws.MetaDataDir, workspace.InputMetadataFile),
		[]byte("Input Folder Metadata"), 0o644))

	res, err := s.PushMetadata(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Synced)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Equal(t, "Input Folder Metadata", remote.metadata["input"])
	assert.Equal(t, "", remote.metadata["output"])
}

func TestFullSync(t *testing.T) {
	remote := newFakeRemote()
	remote.scripts["run.py"] = fakeScript{content: "print(1)", modified: 1700000000}

	s, ws := newTestSyncer(t, remote)
	require.NoError(t, os.WriteFile(
		filepath.Join(ws.MetaDataDir, workspace.OutputMetadataFile),
		[]byte("Output Folder Metadata"), 0o644))

	res, err := s.FullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"run.py"}, res.Scripts.SyncedPaths)
	assert.True(t, res.MetadataSynced)
}

func TestSyncSingleFlight(t *testing.T) {
	remote := newFakeRemote()
	gate := make(chan struct{})
	remote.gate = gate

	s, _ := newTestSyncer(t, remote)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		s.Pull(context.Background())
		close(done)
	}()

	<-started
	// wait for the first pull to take the in-flight lock
	require.Eventually(t, func() bool {
		_, err := s.Pull(context.Background())
		return err == ErrSyncInFlight
	}, 2*time.Second, 10*time.Millisecond)

	close(gate)
	<-done

	_, err := s.Pull(context.Background())
	assert.NoError(t, err)
}

func TestKeepaliveTickAppends(t *testing.T) {
	remote := newFakeRemote()
	s, _ := newTestSyncer(t, remote)

	s.keepaliveTick(context.Background())
	remote.mu.Lock()
	first := remote.scripts[timeKeeperFile].content
	remote.mu.Unlock()
	require.Contains(t, first, "keepalive\n")
	assert.Equal(t, 1, strings.Count(first, "keepalive"))

	s.keepaliveTick(context.Background())
	remote.mu.Lock()
	second := remote.scripts[timeKeeperFile].content
	remote.mu.Unlock()
	assert.Equal(t, 2, strings.Count(second, "keepalive"))
	assert.True(t, strings.HasPrefix(second, strings.TrimSuffix(first, "\n")))
}
