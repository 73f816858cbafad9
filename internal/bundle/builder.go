package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/starford/storybundle/internal/apperr"
	"github.com/starford/storybundle/internal/models"
	"github.com/starford/storybundle/internal/storage"
)

// LanguageResult is the outcome of one language of a version build.
type LanguageResult struct {
	Language   string
	Path       string // bundle path relative to the content root; empty if skipped
	Bundle     *models.Bundle
	Data       []byte // encoded bundle as written
	Warnings   []string
	Advisories []string
	Skipped    bool
}

// Result is the outcome of a version build, languages in build order.
type Result struct {
	Version   string
	Languages []LanguageResult
}

// Written returns the languages whose bundle was written.
func (r *Result) Written() []LanguageResult {
	var out []LanguageResult
	for _, l := range r.Languages {
		if !l.Skipped {
			out = append(out, l)
		}
	}
	return out
}

// Warnings returns every warning and advisory of the run in language order.
func (r *Result) Warnings() []string {
	var out []string
	for _, l := range r.Languages {
		out = append(out, l.Warnings...)
		out = append(out, l.Advisories...)
	}
	return out
}

// Builder assembles, checks and writes the bundles of every language of a
// version.
type Builder struct {
	Store     storage.Provider
	Assembler *Assembler
	DemosDir  string
	// Languages restricts and orders the language directories built; empty
	// builds every subdirectory in name order.
	Languages []string
	Parallel  bool
	Logger    *slog.Logger
}

// Build runs the pipeline for version. It fails with apperr.ErrVersionNotFound
// when the version directory is absent and with apperr.ErrNoContent when no
// language produced a bundle.
func (b *Builder) Build(ctx context.Context, version string) (*Result, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	versionDir := VersionDir(b.DemosDir, version)
	if !b.Store.Exists(versionDir) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrVersionNotFound, versionDir)
	}
	langs, err := b.languages(versionDir)
	if err != nil {
		return nil, err
	}

	asm := *b.Assembler
	asm.Meta.Version = version

	res := &Result{Version: version, Languages: make([]LanguageResult, len(langs))}
	build := func(i int) {
		lang := langs[i]
		logger.Info("bundle: processing language", slog.String("version", version), slog.String("lang", lang))
		res.Languages[i] = asm.buildLanguage(ctx, lang, path.Join(versionDir, lang))
	}

	if b.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i := range langs {
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				build(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range langs {
			build(i)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range res.Languages {
		l := &res.Languages[i]
		if l.Skipped {
			continue
		}
		if err := b.Store.Write(l.Path, l.Data); err != nil {
			return nil, fmt.Errorf("bundle: write %s: %w", l.Path, err)
		}
		logger.Info("bundle: written",
			slog.String("path", l.Path),
			slog.Int("projects", len(l.Bundle.Project)),
			slog.Int("objects", len(l.Bundle.Objects)),
			slog.Int("stories", len(l.Bundle.Stories)),
			slog.Int("glossary", len(l.Bundle.Glossary)))
	}

	if len(res.Written()) == 0 {
		return res, fmt.Errorf("%w: v%s", apperr.ErrNoContent, version)
	}
	return res, nil
}

func (a *Assembler) buildLanguage(ctx context.Context, lang, dir string) LanguageResult {
	bundle, warnings := a.Assemble(ctx, lang, dir)
	lr := LanguageResult{
		Language:   lang,
		Bundle:     bundle,
		Warnings:   warnings,
		Advisories: Validate(bundle, lang),
	}
	if bundle.Empty() {
		lr.Skipped = true
		lr.Warnings = append(lr.Warnings, fmt.Sprintf("[%s] No content found, skipping language", lang))
		return lr
	}
	data, err := Encode(bundle)
	if err != nil {
		lr.Skipped = true
		lr.Warnings = append(lr.Warnings, fmt.Sprintf("[%s] Could not encode bundle: %v", lang, err))
		return lr
	}
	lr.Path = path.Join(dir, a.Layout.BundleFile)
	lr.Data = data
	return lr
}

func (b *Builder) languages(versionDir string) ([]string, error) {
	dirs, err := b.Store.Dirs(versionDir)
	if err != nil {
		return nil, fmt.Errorf("bundle: list languages: %w", err)
	}
	if len(b.Languages) == 0 {
		return dirs, nil
	}
	var out []string
	for _, l := range b.Languages {
		if slices.Contains(dirs, l) {
			out = append(out, l)
		}
	}
	return out, nil
}

// Encode pretty-prints a bundle with two-space indentation. Rendered HTML is
// written literally, not as \u003c escapes.
func Encode(b *models.Bundle) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
