// Package bundleservice coordinates builds, the bundle files on disk and the
// build catalog for the HTTP API, the watcher and the MCP server.
package bundleservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/starford/storybundle/internal/apperr"
	"github.com/starford/storybundle/internal/bundle"
	"github.com/starford/storybundle/internal/catalog"
	"github.com/starford/storybundle/internal/checksum"
	"github.com/starford/storybundle/internal/models"
	"github.com/starford/storybundle/internal/render"
	"github.com/starford/storybundle/internal/sse"
	"github.com/starford/storybundle/internal/storage"
	"github.com/starford/storybundle/internal/versions"
)

// Publisher receives one event per language built or skipped, and one per
// failed version build.
type Publisher interface {
	PublishBuildEvent(ev sse.BuildEvent)
}

// BundleSummary is a lightweight item in a bundle list response.
type BundleSummary struct {
	Version   string `json:"version"`
	Lang      string `json:"lang"`
	Path      string `json:"path"`
	Checksum  string `json:"checksum"`
	Generated string `json:"generated"`
	Projects  int    `json:"projects"`
	Objects   int    `json:"objects"`
	Stories   int    `json:"stories"`
	Glossary  int    `json:"glossary"`
}

// Service coordinates storage, builder and catalog operations.
type Service struct {
	store    storage.Provider
	db       catalog.Catalog
	builder  *bundle.Builder
	renderer *render.Renderer
	pub      Publisher
	logger   *slog.Logger

	// mu serializes builds; a second concurrent build fails with ErrBusy.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the receiver of build events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new bundle service.
func NewService(store storage.Provider, db catalog.Catalog, builder *bundle.Builder, renderer *render.Renderer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		builder:  builder,
		renderer: renderer,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Build runs the bundle pipeline for version, records every written bundle in
// the catalog and refreshes the version index. The result is returned even
// when the build fails with apperr.ErrNoContent.
func (s *Service) Build(ctx context.Context, version string) (*bundle.Result, error) {
	if !s.mu.TryLock() {
		return nil, apperr.ErrBusy
	}
	defer s.mu.Unlock()

	runID, err := s.db.StartRun(version)
	if err != nil {
		return nil, err
	}

	res, buildErr := s.builder.Build(ctx, version)
	if res != nil {
		s.record(runID, res)
	}
	if buildErr == nil {
		if _, err := versions.Build(s.store, s.builder.DemosDir, s.builder.Languages, s.bundleFile()); err != nil {
			buildErr = err
		}
	}
	if buildErr != nil {
		s.publish(sse.BuildEvent{Kind: sse.KindFailed, Version: version, Error: buildErr.Error()})
	}

	if err := s.db.FinishRun(runID, buildErr); err != nil {
		s.logger.Warn("bundleservice: finish run failed", slog.String("run", runID), slog.String("error", err.Error()))
	}
	return res, buildErr
}

func (s *Service) record(runID string, res *bundle.Result) {
	for _, l := range res.Languages {
		if l.Skipped {
			s.publish(sse.BuildEvent{Kind: sse.KindSkipped, Version: res.Version, Lang: l.Language})
			continue
		}
		row := catalog.BundleRow{
			Version:  res.Version,
			Lang:     l.Language,
			Path:     l.Path,
			Checksum: checksum.Sum(l.Data),
			RunID:    runID,
		}
		if err := s.db.RecordBundle(row, l.Bundle, l.Warnings, l.Advisories); err != nil {
			s.logger.Warn("bundleservice: record bundle failed",
				slog.String("path", l.Path),
				slog.String("error", err.Error()))
		}
		s.publish(sse.BuildEvent{Kind: sse.KindBuilt, Version: res.Version, Lang: l.Language, Path: l.Path})
	}
}

func (s *Service) publish(ev sse.BuildEvent) {
	if s.pub != nil {
		s.pub.PublishBuildEvent(ev)
	}
}

func (s *Service) bundleFile() string {
	return s.builder.Assembler.Layout.BundleFile
}

func (s *Service) bundlePath(version, lang string) string {
	return path.Join(bundle.VersionDir(s.builder.DemosDir, version), lang, s.bundleFile())
}

// Versions returns the versions that currently have a bundle on disk, in
// numeric order.
func (s *Service) Versions(_ context.Context) ([]string, error) {
	vs, err := versions.Scan(s.store, s.builder.DemosDir, s.builder.Languages, s.bundleFile())
	if err != nil {
		return nil, err
	}
	versions.Sort(vs)
	return nonNilSlice(vs), nil
}

// ListBundles returns the catalogued bundles of version, or of every version
// when version is empty.
func (s *Service) ListBundles(_ context.Context, version string) ([]BundleSummary, error) {
	rows, err := s.db.ListBundles(version)
	if err != nil {
		return nil, err
	}
	items := make([]BundleSummary, len(rows))
	for i, r := range rows {
		items[i] = BundleSummary{
			Version:   r.Version,
			Lang:      r.Lang,
			Path:      r.Path,
			Checksum:  r.Checksum,
			Generated: r.Generated,
			Projects:  r.Projects,
			Objects:   r.Objects,
			Stories:   r.Stories,
			Glossary:  r.Glossary,
		}
	}
	return items, nil
}

// GetBundle returns the bundle file of version and lang exactly as written.
func (s *Service) GetBundle(_ context.Context, version, lang string) ([]byte, error) {
	data, err := s.store.Read(s.bundlePath(version, lang))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *Service) loadBundle(ctx context.Context, version, lang string) (*models.Bundle, error) {
	data, err := s.GetBundle(ctx, version, lang)
	if err != nil {
		return nil, err
	}
	var b models.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("bundleservice: decode %s: %w", s.bundlePath(version, lang), err)
	}
	return &b, nil
}

// Advisories returns the warnings and advisories recorded for a bundle.
func (s *Service) Advisories(_ context.Context, version, lang string) ([]catalog.Advisory, error) {
	if _, err := s.db.GetBundle(version, lang); err != nil {
		return nil, err
	}
	return s.db.Advisories(version, lang)
}

// ValidateBundle re-runs the bundle heuristics on the file on disk.
func (s *Service) ValidateBundle(ctx context.Context, version, lang string) ([]string, error) {
	b, err := s.loadBundle(ctx, version, lang)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bundle.Validate(b, lang)), nil
}

// SearchTerms delegates glossary search to the catalog.
func (s *Service) SearchTerms(_ context.Context, query, version, lang string, limit int) ([]catalog.TermHit, error) {
	hits, err := s.db.SearchTerms(query, version, lang, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(hits), nil
}

// RenderMarkdown renders a Markdown snippet. When version and lang are set,
// glossary links take their text from that bundle's glossary.
func (s *Service) RenderMarkdown(ctx context.Context, markdown, version, lang string) (string, error) {
	var titles map[string]string
	if version != "" && lang != "" {
		b, err := s.loadBundle(ctx, version, lang)
		if err != nil {
			return "", err
		}
		titles = b.GlossaryTitles()
	}
	return s.renderer.Render(markdown, titles), nil
}

// LastRun returns the most recent build run of version.
func (s *Service) LastRun(_ context.Context, version string) (*catalog.Run, error) {
	return s.db.LastRun(version)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
