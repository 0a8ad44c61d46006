// Package daemon assembles the services behind the CLI: event bus, project
// manager, terminal manager, HTTP surface, and the browser launch.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vibefoundry/vibefoundry-sandbox/internal/browser"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/events"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/httpapi"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/preview"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/project"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/term"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/version"
)

// Config is the daemon's startup configuration.
type Config struct {
	Port        int
	ProjectPath string // optional; empty starts unselected
	NoBrowser   bool
}

// Daemon owns the service graph for one process.
type Daemon struct {
	cfg      *Config
	log      *slog.Logger
	bus      *events.Bus
	prev     *preview.Previewer
	projects *project.Manager
	terms    *term.Manager
	server   *httpapi.Server
}

func New(cfg *Config, log *slog.Logger) *Daemon {
	bus := events.NewBus()
	prev := preview.New()
	projects := project.NewManager(bus, prev, log)
	terms := term.NewManager()

	server := httpapi.NewServer(cfg.Port, &httpapi.Deps{
		Projects: projects,
		Bus:      bus,
		Preview:  prev,
		Terms:    terms,
		Log:      log,
	})

	return &Daemon{
		cfg:      cfg,
		log:      log,
		bus:      bus,
		prev:     prev,
		projects: projects,
		terms:    terms,
		server:   server,
	}
}

// URL is the browser-facing origin of the HTTP surface.
func (d *Daemon) URL() string {
	return d.server.URL()
}

// Start runs until ctx is cancelled. An initial project path that fails to
// select is fatal; everything after that degrades gracefully.
func (d *Daemon) Start(ctx context.Context) error {
	d.log.Info("starting", "app", version.AppName, "version", version.Version, "url", d.URL())

	if d.cfg.ProjectPath != "" {
		if _, err := d.projects.Select(ctx, d.cfg.ProjectPath); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.server.Start(gctx)
	})

	g.Go(func() error {
		err := d.projects.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		d.shutdown()
		return nil
	})

	if !d.cfg.NoBrowser {
		// give the listener a beat before pointing a window at it
		go func() {
			select {
			case <-time.After(300 * time.Millisecond):
				browser.OpenAppMode(d.URL(), d.log)
			case <-gctx.Done():
			}
		}()
	}

	err := g.Wait()
	d.log.Info("stopped")
	return err
}

func (d *Daemon) shutdown() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.server.Stop(stopCtx); err != nil {
		d.log.Warn("http shutdown", "error", err)
	}
	d.terms.CloseAll()
	d.projects.Close()
	d.bus.Close()
}
