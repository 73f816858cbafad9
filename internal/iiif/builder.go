package iiif

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// PyramidBuilder turns a source image into a IIIF level 0 tile pyramid in
// outDir (whose base name is the object id) and returns its size descriptor.
type PyramidBuilder interface {
	Build(ctx context.Context, src, outDir string) (*SizeDescriptor, error)
}

// VipsBuilder shells out to libvips: dzsave with the iiif3 layout writes the
// tiles and info.json, and a JPEG copy of the source is stored as <id>.jpg
// for viewers that want the full image.
type VipsBuilder struct {
	Bin      string // vips executable, "vips" when empty
	TileSize int
	// ServiceBase is the public prefix of image service ids (URLs.ObjectsBase).
	ServiceBase string
}

// Build implements PyramidBuilder.
func (b VipsBuilder) Build(ctx context.Context, src, outDir string) (*SizeDescriptor, error) {
	bin := b.Bin
	if bin == "" {
		bin = "vips"
	}
	tile := b.TileSize
	if tile <= 0 {
		tile = 512
	}
	id := filepath.Base(outDir)

	if err := os.MkdirAll(filepath.Dir(outDir), 0o755); err != nil {
		return nil, fmt.Errorf("iiif: mkdir: %w", err)
	}
	if err := b.run(ctx, bin, "dzsave", src, outDir,
		"--layout", "iiif3",
		"--tile-size", strconv.Itoa(tile),
		"--id", strings.TrimRight(b.ServiceBase, "/"),
	); err != nil {
		return nil, err
	}
	if err := b.run(ctx, bin, "copy", src, filepath.Join(outDir, id+".jpg[Q=95,strip]")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(outDir, InfoFile))
	if err != nil {
		return nil, fmt.Errorf("iiif: read %s: %w", InfoFile, err)
	}
	var desc SizeDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("iiif: decode %s: %w", InfoFile, err)
	}
	return &desc, nil
}

func (b VipsBuilder) run(ctx context.Context, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("iiif: %s %s: %w: %s", bin, args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
