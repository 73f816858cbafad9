package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/storybundle/internal/bundleservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *bundleservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/versions", h.ListVersions)

	// Bundles.
	r.Get("/bundles", h.ListBundles)
	r.Get("/bundles/{version}/{lang}", h.GetBundle)
	r.Get("/bundles/{version}/{lang}/advisories", h.Advisories)
	r.Get("/bundles/{version}/{lang}/validate", h.ValidateBundle)

	// Builds.
	r.Post("/builds", h.Build)
	r.Get("/builds/{version}", h.LastRun)

	r.Get("/glossary/search", h.SearchGlossary)
	r.Post("/render", h.Render)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
