package session

import (
	"encoding/json"
	"net/http"
	"time"

	"cellarena/internal/arena"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// WorldInterface defines the arena methods the HTTP/WS layer calls. Keeping
// this minimal (rather than depending on *arena.World directly) lets tests
// wire a fake without spinning up a real simulation, following the teacher's
// EngineInterface pattern (internal/api/router.go in the retrieved corpus).
type WorldInterface interface {
	PopulationCounts() map[string]int
	Leaderboard() *arena.Leaderboard
	Dimensions() (float64, float64)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// NewRouter opens no listener, so the router is safe to use with
// httptest.NewServer. When RateLimiter is nil, NewRouter builds one with
// NewIPRateLimiter, which starts that limiter's cleanup goroutine.
type RouterConfig struct {
	World WorldInterface
	Hub   *Hub

	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	CORSOrigins []string

	DisableLogging bool
}

type routerHandlers struct {
	world WorldInterface
	hub   *Hub
}

// NewRouter constructs the HTTP router with all middleware and routes.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{world: cfg.World, hub: cfg.Hub}

	r.Get("/healthz", h.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Get("/leaderboard", h.handleGetLeaderboard)
	})

	r.Get("/ws", h.hub.ServeHTTP)

	return r
}

// metricsMiddleware records RecordRequest for every HTTP request, keyed by
// the matched chi route pattern rather than the raw path (bounded
// cardinality, per the observability metrics' own label-count contract).
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = r.URL.Path
		}
		RecordRequest(r.Method, endpoint, ww.Status(), time.Since(start))
	})
}

func (h *routerHandlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	width, height := h.world.Dimensions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"width":      width,
		"height":     height,
		"population": h.world.PopulationCounts(),
	})
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	top := h.world.Leaderboard().Top(10)
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": top})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
