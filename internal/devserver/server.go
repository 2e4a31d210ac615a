// Package devserver serves a site directory during development with
// WebSocket live reload driven by a filesystem watcher.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fragnav/fragnav/internal/logger"
)

// ReloadPath is the WebSocket endpoint the client script connects to.
const ReloadPath = "/__fragnav/reload"

// Config holds dev server configuration.
type Config struct {
	Addr     string
	Root     string
	Debounce time.Duration
	Logger   *logger.Logger
}

// Server serves static site files and pushes reload notifications.
type Server struct {
	cfg     Config
	hub     *ReloadHub
	watcher *Watcher
	log     *logger.Logger
}

// New creates a dev server for a site directory.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8473"
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	log := cfg.Logger.WithComponent("devserver")
	return &Server{
		cfg:     cfg,
		hub:     NewReloadHub(),
		watcher: NewWatcher(cfg.Root, cfg.Debounce, cfg.Logger),
		log:     log,
	}
}

// Hub exposes the reload hub, mainly for tests.
func (s *Server) Hub() *ReloadHub {
	return s.hub
}

// Handler returns the HTTP handler: static files plus the reload endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ReloadPath, s.hub.HandleWebSocket)
	mux.Handle("/", http.FileServer(http.Dir(s.cfg.Root)))
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	go func() {
		err := s.watcher.Watch(watchCtx, func(path string) {
			if IsCSS(path) {
				s.hub.NotifyCSS(path)
			} else {
				s.hub.NotifyReload()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.WithError(err).Warn("File watcher stopped")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Serving %s on %s", s.cfg.Root, s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dev server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	return srv.Shutdown(shutdownCtx)
}
