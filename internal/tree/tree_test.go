package tree

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func findChild(n *Node, name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestScanBasic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app", "scripts", "analysis.py"), "print(1)")
	writeFile(t, filepath.Join(root, "input", "sales.csv"), "a,b\n1,2")
	writeFile(t, filepath.Join(root, "readme.md"), "hi")

	snap, err := Scan(context.Background(), root)
	require.NoError(t, err)
	require.NotNil(t, snap.Tree)
	assert.True(t, snap.Tree.IsDirectory)

	app := findChild(snap.Tree, "app")
	require.NotNil(t, app)
	scripts := findChild(app, "scripts")
	require.NotNil(t, scripts)
	py := findChild(scripts, "analysis.py")
	require.NotNil(t, py)
	assert.Equal(t, "app/scripts/analysis.py", py.Path)
	require.NotNil(t, py.Extension)
	assert.Equal(t, ".py", *py.Extension)
	require.NotNil(t, py.LastModified)

	// input csv stays: forbidden-in-app only applies under app/
	input := findChild(snap.Tree, "input")
	require.NotNil(t, input)
	assert.NotNil(t, findChild(input, "sales.csv"))
}

func TestScanDeletesForbiddenInApp(t *testing.T) {
	root := t.TempDir()
	secret := filepath.Join(root, "app", "scripts", "secret.csv")
	writeFile(t, secret, "leak")
	writeFile(t, filepath.Join(root, "app", "scripts", "ok.py"), "print(1)")

	snap, err := Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"app/scripts/secret.csv"}, snap.Removed)
	assert.NoFileExists(t, secret)

	scripts := findChild(findChild(snap.Tree, "app"), "scripts")
	require.NotNil(t, scripts)
	assert.Nil(t, findChild(scripts, "secret.csv"))
	assert.NotNil(t, findChild(scripts, "ok.py"))
}

func TestScanLargeTxtUnderApp(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 51*1024)
	writeFile(t, filepath.Join(root, "app", "big.txt"), string(big))
	writeFile(t, filepath.Join(root, "app", "small.txt"), "ok")

	snap, err := Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"app/big.txt"}, snap.Removed)
	app := findChild(snap.Tree, "app")
	assert.Nil(t, findChild(app, "big.txt"))
	assert.NotNil(t, findChild(app, "small.txt"))
}

func TestScanSkipsIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "x")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(root, "__pycache__", "m.pyc"), "x")
	writeFile(t, filepath.Join(root, ".hidden"), "x")
	writeFile(t, filepath.Join(root, "keep.py"), "x")

	snap, err := Scan(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, snap.Tree.Children, 1)
	assert.Equal(t, "keep.py", snap.Tree.Children[0].Name)
}

func TestScanOrdering(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "zeta.txt"), "x")
	writeFile(t, filepath.Join(root, "Alpha.txt"), "x")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "zdir"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "adir"), 0o755))

	snap, err := Scan(context.Background(), root)
	require.NoError(t, err)

	names := make([]string, 0, len(snap.Tree.Children))
	for _, c := range snap.Tree.Children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"adir", "zdir", "Alpha.txt", "zeta.txt"}, names)
}

func TestHashStableOnQuiescentTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "x")
	writeFile(t, filepath.Join(root, "sub", "b.py"), "y")

	s1, err := Scan(context.Background(), root)
	require.NoError(t, err)
	s2, err := Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, Hash(s1), Hash(s2))

	writeFile(t, filepath.Join(root, "c.py"), "z")
	s3, err := Scan(context.Background(), root)
	require.NoError(t, err)
	assert.NotEqual(t, Hash(s1), Hash(s3))
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
