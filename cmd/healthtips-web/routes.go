package main

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/matthewjhunter/healthtips"
	"github.com/matthewjhunter/healthtips/internal/session"
)

//go:embed templates static
var embedded embed.FS

// newRouter sets up all routes using Go 1.22+ enhanced routing. The returned
// handler resolves the session cookie before any route runs.
func newRouter(engine *healthtips.Engine, sessions *session.Manager) http.Handler {
	mux := http.NewServeMux()

	// Static files
	staticFS, _ := fs.Sub(embedded, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	h := newHandlers(engine, sessions)

	// Public pages
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /search", h.handleSearch)
	mux.HandleFunc("GET /register", h.handleRegisterForm)
	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("GET /login", h.handleLoginForm)
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("GET /logout", h.handleLogout)

	// Session-only pages
	mux.HandleFunc("GET /recommendations", sessions.RequireUser(h.handleRecommendations))
	mux.HandleFunc("GET /recommendation/{id}", requireIntID("id", sessions.RequireUser(h.handleViewRecommendation)))
	mux.HandleFunc("GET /update_preferences", sessions.RequireUser(h.handlePreferencesForm))
	mux.HandleFunc("POST /update_preferences", sessions.RequireUser(h.handleUpdatePreferences))

	return sessions.Middleware(mux)
}
