package iiif

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/starford/storybundle/internal/records"
	"github.com/starford/storybundle/internal/storage"
)

// ManifestFile is the manifest written next to each tile pyramid.
const ManifestFile = "manifest.json"

// Tiler generates pyramids and manifests for every registry entry.
type Tiler struct {
	Store   storage.Provider
	Builder PyramidBuilder
	URLs    URLs
	// Dir is the IIIF directory holding source images (relative to the
	// content root); ObjectsDir receives one directory per object.
	Dir        string
	ObjectsDir string
	Languages  []string
	Force      bool
	Logger     *slog.Logger
}

// TileReport summarizes a tiling run.
type TileReport struct {
	Processed int
	Skipped   int
	Warnings  []string
}

// Run tiles every entry of reg. Objects whose info.json exists are skipped
// unless Force is set. Per-object failures become warnings.
func (t *Tiler) Run(ctx context.Context, reg *Registry) (TileReport, error) {
	var rep TileReport
	if t.Builder == nil {
		return rep, fmt.Errorf("iiif: no pyramid builder configured")
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	entries := reg.Entries()
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		logger.Info("tiles: processing",
			slog.String("object_id", e.ObjectID),
			slog.Int("n", i+1),
			slog.Int("total", len(entries)))

		done, err := t.tileOne(ctx, e)
		switch {
		case err != nil:
			rep.Skipped++
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("[iiif] %s: %v", e.ObjectID, err))
		case !done:
			rep.Skipped++
			logger.Info("tiles: already present", slog.String("object_id", e.ObjectID))
		default:
			rep.Processed++
		}
	}
	return rep, nil
}

// tileOne reports false without error when the pyramid is already present.
func (t *Tiler) tileOne(ctx context.Context, e records.RegistryEntry) (bool, error) {
	if e.SourceImage == "" {
		return false, fmt.Errorf("no source image")
	}
	src := path.Join(t.Dir, e.SourceImage)
	if !t.Store.Exists(src) {
		return false, fmt.Errorf("source image not found: %s", src)
	}

	outRel := path.Join(t.ObjectsDir, e.ObjectID)
	if t.Store.Exists(path.Join(outRel, InfoFile)) && !t.Force {
		return false, nil
	}
	if err := t.Store.Remove(outRel); err != nil {
		return false, err
	}

	srcAbs, err := t.Store.Abs(src)
	if err != nil {
		return false, err
	}
	outAbs, err := t.Store.Abs(outRel)
	if err != nil {
		return false, err
	}
	desc, err := t.Builder.Build(ctx, srcAbs, outAbs)
	if err != nil {
		return false, err
	}

	manifest := BuildManifest(t.URLs, e, *desc, t.Languages)
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return false, fmt.Errorf("encode manifest: %w", err)
	}
	if err := t.Store.Write(path.Join(outRel, ManifestFile), append(data, '\n')); err != nil {
		return false, err
	}
	return true, nil
}
