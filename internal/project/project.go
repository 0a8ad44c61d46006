// Package project owns the active-project lifecycle: selection, scaffolding,
// the per-project services, and the poll-based change checker.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/vibefoundry/vibefoundry-sandbox/internal/events"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/fswatch"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/metadata"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/preview"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/sandbox"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/scripts"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/syncer"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/workspace"
)

// ErrNotDirectory rejects selection of paths that are not directories.
var ErrNotDirectory = errors.New("project path is not a directory")

// Project bundles the services bound to one selected root. A Project's
// context is cancelled when another project is selected, which aborts its
// in-flight syncs and scans.
type Project struct {
	WS       *workspace.Workspace
	Watcher  *fswatch.Watcher
	Metadata *metadata.Builder
	Runner   *scripts.Runner
	Checker  *Checker

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	syncers map[string]*syncer.Syncer

	log *slog.Logger
}

// Context is cancelled when the project is deselected.
func (p *Project) Context() context.Context {
	return p.ctx
}

// SyncerFor returns the syncer bound to one sandbox origin, creating it on
// first use. The modtime vector lives with the syncer, so repeated sync
// calls against the same origin stay incremental.
func (p *Project) SyncerFor(originURL string) (*syncer.Syncer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.syncers[originURL]; ok {
		return s, nil
	}

	client, err := sandbox.NewClient(originURL)
	if err != nil {
		return nil, err
	}
	s := syncer.New(p.WS, client, p.log)
	p.syncers[originURL] = s

	// once a sandbox is known, keep signaling activity until the project is
	// deselected
	go s.RunKeepalive(p.ctx)
	return s, nil
}

func (p *Project) close() {
	p.cancel()
	p.Watcher.Stop()
	p.Metadata.Stop()
	p.Runner.Stop()
	if err := p.WS.Unlock(); err != nil {
		p.log.Warn("unlock project", "path", p.WS.Root, "error", err)
	}
}

// Manager serializes project selection and hands out the current project.
// The event bus outlives selections, so browser watch subscriptions survive
// a project swap.
type Manager struct {
	bus  *events.Bus
	prev *preview.Previewer
	log  *slog.Logger

	selectMu sync.Mutex

	mu      sync.RWMutex
	current *Project
	epoch   uint64
}

func NewManager(bus *events.Bus, prev *preview.Previewer, log *slog.Logger) *Manager {
	return &Manager{bus: bus, prev: prev, log: log}
}

// Current returns the active project, or nil when none is selected.
func (m *Manager) Current() *Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Epoch increments on every successful selection.
func (m *Manager) Epoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// Select makes path the active project: lock, scaffold, start the watcher,
// rebuild metadata once. Concurrent selects serialize; the last caller wins.
// Re-selecting the current root is a cheap no-op.
func (m *Manager) Select(ctx context.Context, path string) (*Project, error) {
	m.selectMu.Lock()
	defer m.selectMu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}

	ws, err := workspace.New(path)
	if err != nil {
		return nil, err
	}

	if cur := m.Current(); cur != nil {
		if cur.WS.Root == ws.Root {
			// same project: just make sure the layout still exists
			return cur, cur.WS.Scaffold()
		}
	}

	if err := ws.Lock(); err != nil {
		return nil, err
	}
	if err := ws.Scaffold(); err != nil {
		ws.Unlock()
		return nil, err
	}

	// callers are usually request-scoped; the project must outlive the
	// request that selected it, so only close() ends its context
	projCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	log := m.log.With("project", ws.Name)
	proj := &Project{
		WS:       ws,
		Watcher:  fswatch.New(ws.Root, m.bus),
		Metadata: metadata.NewBuilder(ws, m.prev, log),
		Runner:   scripts.NewRunner(ws.Root, log),
		Checker:  NewChecker(ws),
		ctx:      projCtx,
		cancel:   cancel,
		syncers:  make(map[string]*syncer.Syncer),
		log:      log,
	}

	if err := proj.Watcher.Start(projCtx); err != nil {
		// degraded but usable: the browser can still poll /api/watch/check
		log.Warn("file watcher unavailable", "error", err)
	}
	proj.Runner.Start(projCtx)

	old := m.swap(proj)
	if old != nil {
		old.close()
	}

	if _, _, err := proj.Metadata.Generate(); err != nil {
		log.Warn("initial metadata build failed", "error", err)
	}

	log.Info("project selected", "path", ws.Root)
	return proj, nil
}

func (m *Manager) swap(proj *Project) *Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.current
	m.current = proj
	m.epoch++
	return old
}

// Close tears down the active project, if any.
func (m *Manager) Close() {
	m.selectMu.Lock()
	defer m.selectMu.Unlock()

	old := m.swap(nil)
	if old != nil {
		old.close()
	}
}

// Run pumps watcher events into the metadata debounce until ctx ends.
// Data and output changes both affect the folder summaries.
func (m *Manager) Run(ctx context.Context) error {
	ch, unsub := m.bus.Subscribe()
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if ev.Type != events.DataChange && ev.Type != events.OutputFileChange {
				continue
			}
			if cur := m.Current(); cur != nil {
				cur.Metadata.Kick()
			}
		}
	}
}
