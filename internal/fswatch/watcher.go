// Package fswatch observes a project root recursively and turns raw
// filesystem events into typed change notifications on the event bus. Events
// are debounced per path in a fixed window so editor write bursts collapse
// into one notification.
package fswatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/events"
)

const (
	eventBufferSize = 64

	// DefaultDebounceWindow collapses repeated events for one path. On linux
	// a single editor save triggers a burst of inotify WRITE events; the cost
	// is up to one window of added latency per notification.
	DefaultDebounceWindow = 1000 * time.Millisecond

	retryBackoffBase = 3 * time.Second
	retryBackoffMax  = 12 * time.Second
)

// Watcher observes one project root. It is created per project selection and
// replaced wholesale when a new project is selected.
type Watcher struct {
	root     string
	bus      *events.Bus
	window   time.Duration
	raw      chan notify.EventInfo
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	debounceMu sync.Mutex
	pending    map[string]notify.EventInfo
	timers     map[string]*time.Timer
}

func New(root string, bus *events.Bus) *Watcher {
	return &Watcher{
		root:    root,
		bus:     bus,
		window:  DefaultDebounceWindow,
		done:    make(chan struct{}),
		pending: make(map[string]notify.EventInfo),
		timers:  make(map[string]*time.Timer),
	}
}

// SetDebounceWindow overrides the per-path coalescing window. Tests use a
// short window.
func (w *Watcher) SetDebounceWindow(d time.Duration) {
	w.window = d
}

// Start attaches the recursive watch and begins forwarding events. Setup
// failures are retried with capped backoff; each failed attempt publishes a
// watch_error event so connected browsers see the degradation.
func (w *Watcher) Start(ctx context.Context) error {
	w.raw = make(chan notify.EventInfo, eventBufferSize)

	backoff := retryBackoffBase
	for attempt := 1; ; attempt++ {
		err := notify.Watch(w.root+"/...", w.raw, notify.Create|notify.Write|notify.Remove|notify.Rename)
		if err == nil {
			break
		}
		slog.Error("watcher attach failed", "dir", w.root, "attempt", attempt, "error", err)
		w.bus.Publish(events.Event{Type: events.WatchError, Detail: err.Error()})
		if attempt >= 3 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > retryBackoffMax {
			backoff = retryBackoffMax
		}
	}

	slog.Info("watcher started", "dir", w.root)
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop detaches the watch, flushes nothing, and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.raw != nil {
			notify.Stop(w.raw)
		}
		w.wg.Wait()

		w.debounceMu.Lock()
		for _, timer := range w.timers {
			timer.Stop()
		}
		w.timers = make(map[string]*time.Timer)
		w.pending = make(map[string]notify.EventInfo)
		w.debounceMu.Unlock()

		slog.Info("watcher stopped", "dir", w.root)
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.raw:
			if !ok {
				return
			}
			w.debounce(ev)
		}
	}
}

// debounce keeps the latest event per path and (re)arms a flush timer.
func (w *Watcher) debounce(ev notify.EventInfo) {
	path := ev.Path()

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.pending[path] = ev
	w.timers[path] = time.AfterFunc(w.window, func() {
		w.flush(path)
	})
}

func (w *Watcher) flush(path string) {
	w.debounceMu.Lock()
	ev, ok := w.pending[path]
	delete(w.pending, path)
	delete(w.timers, path)
	w.debounceMu.Unlock()

	if !ok {
		return
	}

	select {
	case <-w.done:
		return
	default:
	}

	if out, ok := Classify(w.root, ev.Path(), ev.Event()); ok {
		slog.Debug("watcher event", "type", out.Type, "path", out.Path)
		w.bus.Publish(out)
	}
}
