package project

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/events"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/preview"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/workspace"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewManager(bus, preview.New(), log)
}

func TestSelectScaffoldsAndLocks(t *testing.T) {
	m := newManager(t)
	defer m.Close()
	root := t.TempDir()

	proj, err := m.Select(context.Background(), root)
	require.NoError(t, err)
	assert.Same(t, proj, m.Current())
	assert.Equal(t, uint64(1), m.Epoch())

	for _, dir := range []string{"input", "output", "app", "app/scripts", "app/meta_data"} {
		assert.DirExists(t, filepath.Join(root, filepath.FromSlash(dir)))
	}
	assert.FileExists(t, filepath.Join(root, "app", "CLAUDE.md"))
	assert.FileExists(t, filepath.Join(root, "app", "metadatafarmer.py"))
	// initial metadata build ran
	assert.FileExists(t, filepath.Join(root, "app", "meta_data", workspace.InputMetadataFile))

	// a second daemon cannot take the same project
	other, err := workspace.New(root)
	require.NoError(t, err)
	assert.ErrorIs(t, other.Lock(), workspace.ErrLocked)
}

func TestSelectRejectsNonDirectories(t *testing.T) {
	m := newManager(t)
	defer m.Close()

	_, err := m.Select(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNotDirectory)

	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = m.Select(context.Background(), file)
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestReselectSamePathIsNoOp(t *testing.T) {
	m := newManager(t)
	defer m.Close()
	root := t.TempDir()

	first, err := m.Select(context.Background(), root)
	require.NoError(t, err)

	marker := filepath.Join(root, "app", "CLAUDE.md")
	require.NoError(t, os.WriteFile(marker, []byte("customized"), 0o644))

	second, err := m.Select(context.Background(), root)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, uint64(1), m.Epoch())

	// re-selection never clobbers user edits
	raw, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "customized", string(raw))
}

func TestReselectionCancelsOldProject(t *testing.T) {
	m := newManager(t)
	defer m.Close()

	first, err := m.Select(context.Background(), t.TempDir())
	require.NoError(t, err)
	oldCtx := first.Context()
	oldRoot := first.WS.Root

	second, err := m.Select(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.NotEqual(t, oldRoot, second.WS.Root)
	assert.Equal(t, uint64(2), m.Epoch())

	select {
	case <-oldCtx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("old project context not cancelled on reselection")
	}

	// the old project's lock is released, so it can be taken again
	ws, err := workspace.New(oldRoot)
	require.NoError(t, err)
	require.NoError(t, ws.Lock())
	ws.Unlock()
}

func TestSyncerForReusesPerOrigin(t *testing.T) {
	m := newManager(t)
	defer m.Close()

	proj, err := m.Select(context.Background(), t.TempDir())
	require.NoError(t, err)

	a, err := proj.SyncerFor("http://localhost:8787")
	require.NoError(t, err)
	b, err := proj.SyncerFor("http://localhost:8787")
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := proj.SyncerFor("http://localhost:9999")
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	_, err = proj.SyncerFor("not a url")
	assert.Error(t, err)
}

func TestCheckerDiffsSnapshots(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.Scaffold())
	c := NewChecker(ws)

	// baseline
	res := c.Check()
	assert.False(t, res.Changes)

	require.NoError(t, os.WriteFile(filepath.Join(ws.InputDir, "a.csv"), []byte("x\n1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.ScriptsDir, "run.py"), []byte("print(1)"), 0o644))

	res = c.Check()
	assert.True(t, res.Changes)
	assert.Equal(t, []Change{{Path: "a.csv", Type: "created"}}, res.InputChanges)
	assert.Equal(t, []Change{{Path: "run.py", Type: "created"}}, res.ScriptChanges)
	assert.Empty(t, res.OutputChanges)

	// modify + delete
	past := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(ws.InputDir, "a.csv"), past, past))
	require.NoError(t, os.Remove(filepath.Join(ws.ScriptsDir, "run.py")))

	res = c.Check()
	assert.True(t, res.Changes)
	assert.Equal(t, []Change{{Path: "a.csv", Type: "modified"}}, res.InputChanges)
	assert.Equal(t, []Change{{Path: "run.py", Type: "deleted"}}, res.ScriptChanges)

	// quiescent
	res = c.Check()
	assert.False(t, res.Changes)
}
