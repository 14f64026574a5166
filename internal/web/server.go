// Package web serves the network map over HTTP and websocket.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/user/netmap/internal/coordinator"
	"github.com/user/netmap/internal/entity"
	"github.com/user/netmap/internal/presence"
	"github.com/user/netmap/internal/storage"
	"github.com/user/netmap/internal/util"
)

// BasePath prefixes every route.
const BasePath = "/api/unifi_network_map"

// Host exposes the loaded entries to the HTTP layer.
type Host interface {
	Coordinator(entryID string) (*coordinator.Coordinator, bool)
	Coordinators() []*coordinator.Coordinator
	Presence(entryID string) (*presence.Tracker, bool)
	// Entities returns the shared entity cache, or nil without a registry.
	Entities() *entity.Cache
}

// Server is the web server.
type Server struct {
	host     Host
	enricher *Enricher
	history  *HistoryHandlers
	secret   string
	addr     string
	srv      *http.Server
}

// NewServer creates a new web server. An empty jwtSecret disables authentication.
func NewServer(host Host, enricher *Enricher, jwtSecret, addr string) *Server {
	return &Server{
		host:     host,
		enricher: enricher,
		secret:   jwtSecret,
		addr:     addr,
	}
}

// WithHistory serves the snapshot history routes from db.
func (s *Server) WithHistory(db *storage.DB) *Server {
	s.history = NewHistoryHandlers(s.host, db)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	h := &Handlers{host: s.host, enricher: s.enricher}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route(BasePath, func(r chi.Router) {
		r.Use(RequireToken(s.secret))
		r.Post("/refresh", h.Refresh)
		r.Route("/{entryID}", func(r chi.Router) {
			r.Get("/svg", h.SVG)
			r.Get("/payload", h.Payload)
			r.Get("/status", h.Status)
			r.Get("/sensors", h.Sensors)
			r.Get("/ws", h.Subscribe)
			if s.history != nil {
				r.Get("/history", s.history.History)
				r.Get("/changes", s.history.Changes)
				r.Get("/mermaid", s.history.Mermaid)
			}
		})
	})
	return r
}

// Start serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := s.Stop(); err != nil {
			util.Warn("Web server shutdown: %v", err)
		}
	}()

	util.Info("Web server listening on %s", s.addr)

	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the web server.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.srv.Shutdown(ctx)
}
