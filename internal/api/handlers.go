package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/storybundle/internal/apperr"
	"github.com/starford/storybundle/internal/bundle"
	"github.com/starford/storybundle/internal/bundleservice"
	"github.com/starford/storybundle/internal/checksum"
)

// Handler holds API route handlers.
type Handler struct {
	svc *bundleservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *bundleservice.Service) *Handler {
	return &Handler{svc: svc}
}

func bundleKey(r *http.Request) (version, lang string) {
	return chi.URLParam(r, "version"), chi.URLParam(r, "lang")
}

// ListVersions handles GET /api/versions.
//
//	@Summary		List versions with at least one built bundle
//	@Tags			versions
//	@Produce		json
//	@Success		200	{object}	VersionsResponse
//	@Security		BearerAuth
//	@Router			/versions [get]
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	vs, err := h.svc.Versions(r.Context())
	if err != nil {
		slog.Error("list versions failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, VersionsResponse{Versions: vs})
}

// ListBundles handles GET /api/bundles.
//
//	@Summary		List catalogued bundles
//	@Tags			bundles
//	@Produce		json
//	@Param			version	query		string	false	"Filter by version"
//	@Success		200		{object}	BundleListResponse
//	@Security		BearerAuth
//	@Router			/bundles [get]
func (h *Handler) ListBundles(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListBundles(r.Context(), r.URL.Query().Get("version"))
	if err != nil {
		slog.Error("list bundles failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, BundleListResponse{Bundles: items})
}

// GetBundle handles GET /api/bundles/{version}/{lang}.
//
//	@Summary		Get a bundle exactly as written
//	@Tags			bundles
//	@Produce		json
//	@Param			version	path	string	true	"Version"
//	@Param			lang	path	string	true	"Language"
//	@Success		200		"Bundle document"
//	@Success		304		"Unchanged since If-None-Match"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/bundles/{version}/{lang} [get]
func (h *Handler) GetBundle(w http.ResponseWriter, r *http.Request) {
	version, lang := bundleKey(r)
	data, err := h.svc.GetBundle(r.Context(), version, lang)
	if err != nil {
		writeLookupError(w, err, "get bundle failed", slog.String("version", version), slog.String("lang", lang))
		return
	}
	etag := checksum.ETag(data)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeRaw(w, http.StatusOK, data)
}

// Advisories handles GET /api/bundles/{version}/{lang}/advisories.
//
//	@Summary		Warnings and advisories recorded by the last build of a bundle
//	@Tags			bundles
//	@Produce		json
//	@Param			version	path		string	true	"Version"
//	@Param			lang	path		string	true	"Language"
//	@Success		200		{object}	AdvisoryResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/bundles/{version}/{lang}/advisories [get]
func (h *Handler) Advisories(w http.ResponseWriter, r *http.Request) {
	version, lang := bundleKey(r)
	advs, err := h.svc.Advisories(r.Context(), version, lang)
	if err != nil {
		writeLookupError(w, err, "advisories failed", slog.String("version", version), slog.String("lang", lang))
		return
	}
	items := make([]AdvisoryItem, len(advs))
	for i, a := range advs {
		items[i] = AdvisoryItem{Kind: a.Kind, Message: a.Message}
	}
	writeJSON(w, http.StatusOK, AdvisoryResponse{Advisories: items})
}

// ValidateBundle handles GET /api/bundles/{version}/{lang}/validate.
//
//	@Summary		Re-run the bundle heuristics on the file on disk
//	@Tags			bundles
//	@Produce		json
//	@Param			version	path		string	true	"Version"
//	@Param			lang	path		string	true	"Language"
//	@Success		200		{object}	ValidateResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/bundles/{version}/{lang}/validate [get]
func (h *Handler) ValidateBundle(w http.ResponseWriter, r *http.Request) {
	version, lang := bundleKey(r)
	issues, err := h.svc.ValidateBundle(r.Context(), version, lang)
	if err != nil {
		writeLookupError(w, err, "validate bundle failed", slog.String("version", version), slog.String("lang", lang))
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Issues: issues})
}

// Build handles POST /api/builds.
//
//	@Summary		Build every language of a version
//	@Tags			builds
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BuildRequest	true	"Version to build"
//	@Success		200		{object}	BuildResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	BuildResponse
//	@Security		BearerAuth
//	@Router			/builds [post]
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Version == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("version is required"))
		return
	}

	res, err := h.svc.Build(r.Context(), req.Version)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, buildResponse(res, nil))
	case errors.Is(err, apperr.ErrBusy):
		writeJSON(w, http.StatusConflict, errorBody("build already running"))
	case errors.Is(err, apperr.ErrVersionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("version not found"))
	case errors.Is(err, apperr.ErrNoContent):
		writeJSON(w, http.StatusUnprocessableEntity, buildResponse(res, err))
	default:
		slog.Error("build failed", slog.String("version", req.Version), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func buildResponse(res *bundle.Result, err error) BuildResponse {
	out := BuildResponse{Version: res.Version, Languages: make([]BuildLanguage, len(res.Languages))}
	for i, l := range res.Languages {
		out.Languages[i] = BuildLanguage{
			Lang:       l.Language,
			Path:       l.Path,
			Skipped:    l.Skipped,
			Warnings:   nonNil(l.Warnings),
			Advisories: nonNil(l.Advisories),
		}
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// LastRun handles GET /api/builds/{version}.
//
//	@Summary		Latest build run of a version
//	@Tags			builds
//	@Produce		json
//	@Param			version	path		string	true	"Version"
//	@Success		200		{object}	RunResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/builds/{version} [get]
func (h *Handler) LastRun(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")
	run, err := h.svc.LastRun(r.Context(), version)
	if err != nil {
		writeLookupError(w, err, "last run failed", slog.String("version", version))
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{
		ID:         run.ID,
		Version:    run.Version,
		Status:     run.Status,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	})
}

// SearchGlossary handles GET /api/glossary/search.
//
//	@Summary		Search glossary terms across built bundles
//	@Tags			glossary
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			version	query		string	false	"Restrict to a version"
//	@Param			lang	query		string	false	"Restrict to a language"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/glossary/search [get]
func (h *Handler) SearchGlossary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	hits, err := h.svc.SearchTerms(r.Context(), query, q.Get("version"), q.Get("lang"), limit)
	if err != nil {
		slog.Error("glossary search failed", slog.String("query", query), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	results := make([]TermResult, len(hits))
	for i, hit := range hits {
		results[i] = TermResult{
			Version: hit.Version,
			Lang:    hit.Lang,
			TermID:  hit.TermID,
			Term:    hit.Term,
			Snippet: hit.Snippet,
		}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Render handles POST /api/render.
//
//	@Summary		Preview a Markdown snippet as bundle HTML
//	@Tags			render
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenderRequest	true	"Snippet to render"
//	@Success		200		{object}	RenderResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render [post]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Markdown == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("markdown is required"))
		return
	}
	html, err := h.svc.RenderMarkdown(r.Context(), req.Markdown, req.Version, req.Lang)
	if err != nil {
		writeLookupError(w, err, "render failed")
		return
	}
	writeJSON(w, http.StatusOK, RenderResponse{HTML: html})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
