package session

import (
	"context"
	"log"
	"net/http"
	"time"

	"cellarena/internal/arena"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP + WebSocket front door onto a *arena.World. It owns no
// simulation state itself — World.Tick runs independently once started; the
// Server only decodes/encodes the wire protocol and dispatches into World's
// thread-safe Queue* methods, following the teacher's thin Server-wraps-
// Router-and-Hub shape (internal/api/server.go in the retrieved corpus).
type Server struct {
	world       *arena.World
	hub         *Hub
	router      *chi.Mux
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer constructs a Server bound to world and registers the Hub as the
// world's snapshot sink. Background workers do not start until Start is
// called.
func NewServer(world *arena.World, corsOrigins []string) *Server {
	hub := NewHub(world)
	world.SetSnapshotSink(hub)

	rateLimiter := NewIPRateLimiter(DefaultRateLimitConfig)

	s := &Server{
		world:       world,
		hub:         hub,
		rateLimiter: rateLimiter,
	}
	s.router = NewRouter(RouterConfig{
		World:       world,
		Hub:         hub,
		RateLimiter: rateLimiter,
		CORSOrigins: corsOrigins,
	})
	return s
}

// Router returns the HTTP handler, for use with httptest.NewServer.
func (s *Server) Router() http.Handler { return s.router }

// Start begins serving HTTP (including the /ws upgrade route) on addr. It
// blocks until the listener fails or Stop is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	log.Printf("session: listening on %s", addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown of the HTTP server and rate limiter.
func (s *Server) Stop(ctx context.Context) {
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("session: shutdown error: %v", err)
		}
	}
	s.rateLimiter.Stop()
}
