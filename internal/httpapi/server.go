package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server is the loopback HTTP server fronting the daemon.
type Server struct {
	server *http.Server
	addr   string
	log    *slog.Logger
}

func NewServer(port int, deps *Deps) *Server {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	return &Server{
		addr: addr,
		log:  deps.Log,
		server: &http.Server{
			Addr:    addr,
			Handler: SetupRoutes(deps),
			// long-poll and WS upgrades manage their own deadlines, so only
			// header reads are bounded here
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}
}

// URL is the browser-facing origin.
func (s *Server) URL() string {
	return "http://" + s.addr
}

// Start binds and serves until Stop. A failure to bind is returned
// immediately so the CLI can exit with a distinct code.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}

	s.log.Info("http server listening", "url", s.URL())
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("http server stopping")
	return s.server.Shutdown(ctx)
}
