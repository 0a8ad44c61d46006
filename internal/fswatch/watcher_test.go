package fswatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rjeczalik/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/events"
)

func TestClassify(t *testing.T) {
	root := "/proj"

	tests := []struct {
		path     string
		ev       notify.Event
		wantType events.EventType
		wantOk   bool
	}{
		{"/proj/app/scripts/run.py", notify.Write, events.ScriptChange, true},
		{"/proj/app/scripts/helper.sh", notify.Create, events.ScriptChange, true},
		{"/proj/app/tool.py", notify.Write, events.ScriptChange, true},
		{"/proj/input/sales.csv", notify.Write, events.DataChange, true},
		{"/proj/input/sales.csv", notify.Remove, events.DataChange, true},
		{"/proj/output/chart.png", notify.Create, events.OutputFileChange, true},
		{"/proj/output/table.xlsx", notify.Write, events.OutputFileChange, true},
		{"/proj/output/log.txt", notify.Create, "", false},
		{"/proj/output/chart.png", notify.Remove, "", false},
		{"/proj/app/readme.md", notify.Write, "", false},
		{"/proj/somewhere/else.py", notify.Write, "", false},
		{"/proj/app/scripts/__pycache__/run.pyc", notify.Write, "", false},
		{"/proj/input/.DS_Store", notify.Write, "", false},
	}

	for _, tt := range tests {
		ev, ok := Classify(root, tt.path, tt.ev)
		assert.Equal(t, tt.wantOk, ok, tt.path)
		if tt.wantOk {
			assert.Equal(t, tt.wantType, ev.Type, tt.path)
		}
	}
}

func TestWatcherCoalesces(t *testing.T) {
	root := t.TempDir()
	scripts := filepath.Join(root, "app", "scripts")
	require.NoError(t, os.MkdirAll(scripts, 0o755))

	bus := events.NewBus()
	defer bus.Close()
	ch, unsub := bus.Subscribe()
	defer unsub()

	w := New(root, bus)
	w.SetDebounceWindow(300 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	target := filepath.Join(scripts, "s.py")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte("print(1)"), 0o644))
		time.Sleep(50 * time.Millisecond)
	}

	// exactly one script_change for the path within the window
	var got []events.Event
	deadline := time.After(3 * time.Second)
collect:
	for {
		select {
		case ev := <-ch:
			if ev.Type == events.ScriptChange && ev.Path == "app/scripts/s.py" {
				got = append(got, ev)
			}
		case <-deadline:
			break collect
		}
	}
	assert.Len(t, got, 1)
}

func TestWatcherStopIdempotent(t *testing.T) {
	root := t.TempDir()
	bus := events.NewBus()
	defer bus.Close()

	w := New(root, bus)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
