// Package httpserver exposes libranswer's chat engine over HTTP+JSON, for
// clients that cannot speak MCP or drive the CLI directly.
//
// Grounded on fbrzx-airplane-chat's internal/server/server.go: a chi router
// with the same middleware stack (RequestID, RealIP, Logger, Recoverer,
// CORS), handlers closing over injected dependencies rather than a global,
// and the same writeJSON/writeError response-shaping helpers. The route set
// is replaced end to end: that server's /api/conversations{,/{id}/messages,
// /{id}/documents} becomes /api/profiles, /api/profiles/{slug}/sessions,
// /api/profiles/{slug}/chat, and /api/profiles/{slug}/index, reflecting this
// module's profile-scoped chat/index operations (SPEC_FULL.md §4) instead
// of that server's single global conversation store.
package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/libranswer/libranswer/internal/profile"
)

// EnvironmentFactory resolves the full C1-C10 dependency graph for one
// profile, mirroring internal/mcpserver.EnvironmentFactory so cmd/libranswer
// can wire both transports from the same buildEnvironment call.
type EnvironmentFactory func(ctx context.Context, slug string) (*Environment, error)

// Environment is the subset of a profile's wired components the HTTP
// handlers need, independent of cmd/libranswer's own environment type so
// this package has no CLI dependency.
type Environment struct {
	Chat  ChatFunc
	Index IndexFunc
	Close func() error
}

type ChatFunc func(ctx context.Context, sessionID, query string) (answer string, citations []Citation, newSessionID string, err error)
type IndexFunc func(ctx context.Context) (summary string, err error)

// Citation mirrors orchestrator.Citation's JSON shape for HTTP responses.
type Citation struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Year    int      `json:"year"`
	Page    int      `json:"page,omitempty"`
}

// Server wires HTTP handlers to profile resolution and per-profile
// environments, grounded on fbrzx-airplane-chat's Server struct.
type Server struct {
	router     chi.Router
	profileMgr *profile.Manager
	newEnv     EnvironmentFactory
}

// New constructs a Server with the provided dependencies.
func New(mgr *profile.Manager, newEnv EnvironmentFactory) *Server {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Logger)
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s := &Server{router: mux, profileMgr: mgr, newEnv: newEnv}

	mux.Get("/api/health", s.handleHealth)
	mux.Get("/api/profiles", s.handleListProfiles)
	mux.Post("/api/profiles/{slug}/chat", s.handleChat)
	mux.Post("/api/profiles/{slug}/index", s.handleIndex)
	mux.Get("/api/profiles/{slug}/sessions", s.handleListSessions)
	mux.Delete("/api/profiles/{slug}/sessions/{sessionID}", s.handleDeleteSession)

	return s
}

// ServeHTTP exposes the router so Server satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
