// Package httpserver serves the preference intake API.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/owenriverk/recgov-permit-checker/internal/logger"
	"github.com/owenriverk/recgov-permit-checker/internal/models"
)

const shutdownTimeout = 10 * time.Second

// PreferenceStore persists submitted preferences.
type PreferenceStore interface {
	Save(ctx context.Context, p *models.Preference) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http *http.Server
}

// New builds the HTTP server. Submitted sections must be among sectionNames.
func New(addr string, store PreferenceStore, sectionNames []string, requestTimeout time.Duration) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(accessLog)

	h := &handlers{store: store, sections: make(map[string]bool, len(sectionNames))}
	for _, name := range sectionNames {
		h.sections[name] = true
	}

	r.Get("/", h.root)
	r.Get("/healthz", h.healthz)
	r.Post("/preferences", h.savePreference)

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until shutdown.
func (s *Server) Serve(ln net.Listener) error {
	logger.Info("Intake server listening on %s", ln.Addr())
	err := s.http.Serve(ln)
	// http.ErrServerClosed is expected on graceful shutdown.
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("Intake server shutting down...")
	return s.http.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
