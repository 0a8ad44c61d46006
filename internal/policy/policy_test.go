package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForbiddenInApp(t *testing.T) {
	assert.True(t, ForbiddenInApp("scripts/data.csv", 10))
	assert.True(t, ForbiddenInApp("scripts/Data.CSV", 10))
	assert.True(t, ForbiddenInApp("nested/deep/report.xlsx", 0))
	assert.True(t, ForbiddenInApp("config.json", 0))
	assert.False(t, ForbiddenInApp("scripts/analysis.py", 1<<20))

	// .txt only over the 50 KiB boundary
	assert.False(t, ForbiddenInApp("notes.txt", MaxAppTextSize))
	assert.True(t, ForbiddenInApp("notes.txt", MaxAppTextSize+1))

	// unknown size skips the txt limit
	assert.False(t, ForbiddenInApp("notes.txt", -1))
}

func TestForbiddenForSync(t *testing.T) {
	for _, p := range []string{"a.pdf", "b.csv", "c.xlsx", "d.xls", "e.xlsm", "f.xlsb", "g.ppt", "h.pptx", "deck.PPTX"} {
		assert.True(t, ForbiddenForSync(p), p)
	}
	assert.False(t, ForbiddenForSync("scripts/run.py"))
	assert.False(t, ForbiddenForSync("readme.md"))
}

func TestProtectedFromPush(t *testing.T) {
	assert.True(t, ProtectedFromPush("sync_server.py"))
	assert.True(t, ProtectedFromPush("sync_server.go"))
	assert.True(t, ProtectedFromPush("metadatafarmer.py"))
	assert.True(t, ProtectedFromPush("CLAUDE.md"))
	assert.True(t, ProtectedFromPush("meta_data/input_metadata.txt"))
	assert.True(t, ProtectedFromPush("nested/meta_data/x.txt"))

	assert.False(t, ProtectedFromPush("scripts/x.py"))
	assert.False(t, ProtectedFromPush("claude.txt"))
}

func TestIgnored(t *testing.T) {
	assert.True(t, IgnoredDir(".git"))
	assert.True(t, IgnoredDir("node_modules"))
	assert.True(t, IgnoredDir("__pycache__"))
	assert.True(t, IgnoredDir(".venv"))
	assert.True(t, IgnoredDir(".hidden"))
	assert.False(t, IgnoredDir("scripts"))

	assert.True(t, Ignored(".DS_Store"))
	assert.True(t, Ignored("app/node_modules/pkg/index.js"))
	assert.True(t, Ignored("venv/lib/python3.12"))
	assert.False(t, Ignored("app/scripts/run.py"))
	assert.False(t, Ignored("input/sales.csv"))
}
