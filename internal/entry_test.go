package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/storybundle/internal/apperr"
	"github.com/starford/storybundle/internal/iiif"
	"github.com/starford/storybundle/internal/models"
	"github.com/starford/storybundle/internal/storage"
	"github.com/starford/storybundle/internal/testutil"
)

type stubPyramids struct {
	calls int
}

func (s *stubPyramids) Build(_ context.Context, _, outDir string) (*iiif.SizeDescriptor, error) {
	s.calls++
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(outDir, iiif.InfoFile), []byte(`{"width":400,"height":300,"sizes":[{"width":400,"height":300}]}`), 0o644); err != nil {
		return nil, err
	}
	return &iiif.SizeDescriptor{Width: 400, Height: 300, Sizes: []iiif.Size{{Width: 400, Height: 300}}}, nil
}

func testApp(t *testing.T) (storage.Provider, *stubPyramids, []Option) {
	t.Helper()
	dir, store := testutil.TestContent(t)
	cfg := NewDefaultConfig()
	cfg.Content.Root = dir
	cfg.Content.BaseURL = "https://example.org"
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "catalog.db")

	pyramids := &stubPyramids{}
	clock := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return store, pyramids, []Option{
		WithConfig(cfg),
		WithLogOutput(io.Discard),
		WithPyramidBuilder(pyramids),
		WithClock(clock),
	}
}

func TestBuild_FlagErrors(t *testing.T) {
	ctx := context.Background()
	if err := Build(ctx, BuildRequest{Version: "1.0", BundleOnly: true, IIIFOnly: true}); err == nil {
		t.Error("expected error for bundle-only with iiif-only")
	}
	if err := Build(ctx, BuildRequest{BundleOnly: true}); err == nil {
		t.Error("expected error for missing version")
	}
	if err := Build(ctx, BuildRequest{Version: "1.0"}); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestBuild_BundleOnly(t *testing.T) {
	store, pyramids, opts := testApp(t)
	testutil.SampleVersion(t, store, "1.0")

	if err := Build(context.Background(), BuildRequest{Version: "1.0", BundleOnly: true}, opts...); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if pyramids.calls != 0 {
		t.Errorf("bundle-only build tiled %d objects", pyramids.calls)
	}

	data, err := store.Read("demos/v1.0/en/bundle.json")
	if err != nil {
		t.Fatalf("bundle not written: %v", err)
	}
	var b models.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatal(err)
	}
	if b.Meta.Generated != "2024-05-01T12:00:00Z" {
		t.Errorf("generated = %q", b.Meta.Generated)
	}
	if b.Meta.BundleFormat != "0.1" || b.Meta.Generator != "storybundle" {
		t.Errorf("meta = %+v", b.Meta)
	}
	if store.Exists("demos/v1.0/es/bundle.json") {
		t.Error("empty language should not produce a bundle")
	}

	vs, err := Versions(context.Background(), opts...)
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(vs) != 1 || vs[0] != "1.0" {
		t.Errorf("versions = %v", vs)
	}
	if !store.Exists("demos/versions.json") {
		t.Error("version index not written")
	}
}

func TestBuild_MissingVersion(t *testing.T) {
	_, _, opts := testApp(t)
	err := Build(context.Background(), BuildRequest{Version: "7.0", BundleOnly: true}, opts...)
	if !errors.Is(err, apperr.ErrVersionNotFound) {
		t.Errorf("err = %v, want ErrVersionNotFound", err)
	}
}

func TestBuild_IIIFOnly(t *testing.T) {
	store, pyramids, opts := testApp(t)
	testutil.WriteFiles(t, store, map[string]string{
		"iiif/objects.csv": "object_id,source_image,title_en,title_es\nmap-1,map-1.jpg,Old map,Mapa antiguo\nlost,lost.jpg,,\n",
		"iiif/map-1.jpg":   "img",
	})

	if err := Build(context.Background(), BuildRequest{IIIFOnly: true}, opts...); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if pyramids.calls != 1 {
		t.Errorf("tiled %d objects, want 1", pyramids.calls)
	}
	data, err := store.Read("iiif/objects/map-1/manifest.json")
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	var m iiif.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.ID != "https://example.org/iiif/objects/map-1/manifest.json" {
		t.Errorf("manifest id = %q", m.ID)
	}
	if store.Exists("demos/versions.json") {
		t.Error("iiif-only build should not index versions")
	}

	// Existing pyramids are kept.
	if err := Build(context.Background(), BuildRequest{IIIFOnly: true}, opts...); err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if pyramids.calls != 1 {
		t.Errorf("second build tiled again: %d calls", pyramids.calls)
	}
}
