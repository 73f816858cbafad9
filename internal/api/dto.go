package api

import (
	"time"

	"github.com/starford/storybundle/internal/bundleservice"
)

// BuildRequest is the request body for starting a build.
type BuildRequest struct {
	Version string `json:"version" example:"1.0" validate:"required"`
}

// BuildLanguage is the outcome of one language in a build response.
type BuildLanguage struct {
	Lang       string   `json:"lang" example:"en" validate:"required"`
	Path       string   `json:"path,omitempty" example:"demos/v1.0/en/bundle.json"`
	Skipped    bool     `json:"skipped"`
	Warnings   []string `json:"warnings" validate:"required"`
	Advisories []string `json:"advisories" validate:"required"`
}

// BuildResponse reports a finished build.
type BuildResponse struct {
	Version   string          `json:"version" example:"1.0" validate:"required"`
	Languages []BuildLanguage `json:"languages" validate:"required"`
	Error     string          `json:"error,omitempty"`
}

// RunResponse describes the latest build run of a version.
type RunResponse struct {
	ID         string     `json:"id" validate:"required"`
	Version    string     `json:"version" example:"1.0" validate:"required"`
	Status     string     `json:"status" example:"succeeded" validate:"required"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at" validate:"required"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// VersionsResponse lists versions that have a bundle.
type VersionsResponse struct {
	Versions []string `json:"versions" example:"0.9,1.0" validate:"required"`
}

// BundleSummary is a lightweight item in a bundle list response (aliased from
// the domain layer).
type BundleSummary = bundleservice.BundleSummary

// BundleListResponse wraps bundle listings.
type BundleListResponse struct {
	Bundles []BundleSummary `json:"bundles" validate:"required"`
}

// AdvisoryItem is one recorded warning or advisory.
type AdvisoryItem struct {
	Kind    string `json:"kind" example:"warning" validate:"required"`
	Message string `json:"message" example:"[en] Missing objects.csv" validate:"required"`
}

// AdvisoryResponse wraps the advisories of a bundle.
type AdvisoryResponse struct {
	Advisories []AdvisoryItem `json:"advisories" validate:"required"`
}

// ValidateResponse wraps the heuristics re-run on a bundle.
type ValidateResponse struct {
	Issues []string `json:"issues" validate:"required"`
}

// TermResult is a single glossary search hit.
type TermResult struct {
	Version string `json:"version" example:"1.0" validate:"required"`
	Lang    string `json:"lang" example:"en" validate:"required"`
	TermID  string `json:"term_id" example:"fresco" validate:"required"`
	Term    string `json:"term" example:"Fresco" validate:"required"`
	Snippet string `json:"snippet" example:"...painting on wet plaster..." validate:"required"`
}

// SearchResponse wraps glossary search results.
type SearchResponse struct {
	Results []TermResult `json:"results" validate:"required"`
}

// RenderRequest is the request body for previewing a Markdown snippet.
// Version and Lang select the bundle whose glossary titles are used.
type RenderRequest struct {
	Markdown string `json:"markdown" example:"See [[fresco]]." validate:"required"`
	Version  string `json:"version,omitempty" example:"1.0"`
	Lang     string `json:"lang,omitempty" example:"en"`
}

// RenderResponse carries the rendered HTML.
type RenderResponse struct {
	HTML string `json:"html" validate:"required"`
}
