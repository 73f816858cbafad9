package iiif

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/storybundle/internal/models"
	"github.com/starford/storybundle/internal/records"
	"github.com/starford/storybundle/internal/storage"
)

func testStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

func write(t *testing.T, store storage.Provider, p, content string) {
	t.Helper()
	if err := store.Write(p, []byte(content)); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

const registryCSV = "object_id,source_image,title_en,title_es,creator_en,rights\n" +
	"obj-1,obj-1.jpg,Map,Mapa,Anon,https://creativecommons.org/licenses/by/4.0/\n" +
	"obj-2,obj-2.tif,,Carta,,Public domain\n"

func TestLoadRegistry(t *testing.T) {
	_, store := testStore(t)
	write(t, store, "iiif/objects.csv", registryCSV)

	reg, err := LoadRegistry(store, "iiif/objects.csv")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len = %d, want 2", reg.Len())
	}
	if !reg.Contains("obj-1") || reg.Contains("obj-3") {
		t.Errorf("Contains mismatch")
	}
	if got := reg.Entries()[0].Value("title", "es"); got != "Mapa" {
		t.Errorf("title_es = %q", got)
	}
}

func TestLoadRegistryMissing(t *testing.T) {
	_, store := testStore(t)
	reg, err := LoadRegistry(store, "iiif/objects.csv")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if reg.Len() != 0 || reg.Contains("x") {
		t.Errorf("expected empty registry")
	}
	var nilReg *Registry
	if nilReg.Contains("x") || nilReg.Len() != 0 {
		t.Errorf("nil registry should be empty")
	}
}

func TestRegistryDuplicateReplaces(t *testing.T) {
	reg := NewRegistry([]records.RegistryEntry{
		{ObjectID: "a", SourceImage: "one.jpg"},
		{ObjectID: "b"},
		{ObjectID: "a", SourceImage: "two.jpg"},
	})
	if reg.Len() != 2 {
		t.Fatalf("Len = %d, want 2", reg.Len())
	}
	if got := reg.Entries()[0].SourceImage; got != "two.jpg" {
		t.Errorf("SourceImage = %q, want two.jpg", got)
	}
}

func TestURLs(t *testing.T) {
	u := NewURLs("https://example.org/site/")
	if got := u.ObjectsBase(); got != "https://example.org/site/iiif/objects" {
		t.Errorf("ObjectsBase = %q", got)
	}
	if got := u.Manifest("x"); got != "https://example.org/site/iiif/objects/x/manifest.json" {
		t.Errorf("Manifest = %q", got)
	}
	if got := u.Thumbnail("x", 400); got != "https://example.org/site/iiif/objects/x/full/400,/0/default.jpg" {
		t.Errorf("Thumbnail = %q", got)
	}
}

type fakeSizes map[string]*SizeDescriptor

func (f fakeSizes) Sizes(id string) (*SizeDescriptor, error) {
	d, ok := f[id]
	if !ok {
		return nil, os.ErrNotExist
	}
	return d, nil
}

func testDeriver() *Deriver {
	return &Deriver{
		URLs:     NewURLs("https://example.org"),
		Registry: NewRegistry([]records.RegistryEntry{{ObjectID: "self"}, {ObjectID: "bare"}}),
		Sizes: fakeSizes{
			"self": {Width: 4000, Height: 3000, Sizes: []Size{{Width: 1000, Height: 750}, {Width: 500, Height: 375}}},
		},
	}
}

func TestDeriveFillsMissingFields(t *testing.T) {
	obj := models.Object{ObjectID: "self"}
	if err := testDeriver().Apply(&obj); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if obj.SourceURL != "https://example.org/iiif/objects/self/manifest.json" {
		t.Errorf("SourceURL = %q", obj.SourceURL)
	}
	if obj.Thumbnail != "https://example.org/iiif/objects/self/full/1000,/0/default.jpg" {
		t.Errorf("Thumbnail = %q", obj.Thumbnail)
	}
}

func TestDeriveKeepsAuthoredValues(t *testing.T) {
	obj := models.Object{ObjectID: "self", SourceURL: "https://other/manifest", Thumbnail: "https://other/thumb.jpg"}
	if err := testDeriver().Apply(&obj); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if obj.SourceURL != "https://other/manifest" || obj.Thumbnail != "https://other/thumb.jpg" {
		t.Errorf("authored values overwritten: %+v", obj)
	}
}

func TestDeriveIgnoresUnregistered(t *testing.T) {
	obj := models.Object{ObjectID: "remote"}
	if err := testDeriver().Apply(&obj); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if obj.SourceURL != "" || obj.Thumbnail != "" {
		t.Errorf("unregistered object changed: %+v", obj)
	}
}

func TestDeriveSizeReadFailure(t *testing.T) {
	obj := models.Object{ObjectID: "bare"}
	err := testDeriver().Apply(&obj)
	if err == nil || !strings.Contains(err.Error(), "could not read size descriptor for bare") {
		t.Fatalf("err = %v", err)
	}
	if obj.SourceURL == "" {
		t.Errorf("SourceURL should still be derived")
	}
	if obj.Thumbnail != "" {
		t.Errorf("Thumbnail = %q, want empty", obj.Thumbnail)
	}
}

func TestFileSizes(t *testing.T) {
	_, store := testStore(t)
	write(t, store, "iiif/objects/a/info.json", `{"width":10,"height":5,"sizes":[{"width":8,"height":4}]}`)
	d, err := FileSizes{Store: store, Dir: "iiif/objects"}.Sizes("a")
	if err != nil {
		t.Fatalf("Sizes: %v", err)
	}
	if s, ok := d.Largest(); !ok || s.Width != 8 {
		t.Errorf("Largest = %+v %v", s, ok)
	}
	if _, err := (FileSizes{Store: store, Dir: "iiif/objects"}).Sizes("b"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing info.json err = %v", err)
	}
}

func testEntry() records.RegistryEntry {
	return records.RegistryEntry{
		ObjectID: "obj-1",
		Rights:   "Public domain",
		Metadata: map[string]map[string]string{
			"title":       {"en": "Map", "es": "Mapa"},
			"description": {"es": "Un mapa"},
			"creator":     {"en": "Anon"},
		},
	}
}

func TestBuildManifest(t *testing.T) {
	u := NewURLs("https://example.org")
	m := BuildManifest(u, testEntry(), SizeDescriptor{Width: 200, Height: 100}, []string{"en", "es"})

	if m.ID != "https://example.org/iiif/objects/obj-1/manifest.json" {
		t.Errorf("ID = %q", m.ID)
	}
	if m.Label["es"][0] != "Mapa" || m.Label["en"][0] != "Map" {
		t.Errorf("Label = %v", m.Label)
	}
	if _, ok := m.Summary["en"]; ok {
		t.Errorf("Summary should only carry es: %v", m.Summary)
	}
	if len(m.Metadata) != 2 {
		t.Fatalf("Metadata = %+v, want creator and rights", m.Metadata)
	}
	if m.Metadata[0].Label["es"][0] != "Creador" {
		t.Errorf("creator label = %v", m.Metadata[0].Label)
	}
	if m.Metadata[1].Value["none"][0] != "Public domain" {
		t.Errorf("rights metadata = %v", m.Metadata[1].Value)
	}
	if m.Rights != "" {
		t.Errorf("Rights = %q, want empty for non-URL", m.Rights)
	}
	c := m.Items[0]
	if c.Width != 200 || c.Height != 100 {
		t.Errorf("canvas size = %dx%d", c.Width, c.Height)
	}
	svc := c.Items[0].Items[0].Body.Service[0]
	if svc.Profile != "level0" || svc.ID != "https://example.org/iiif/objects/obj-1" {
		t.Errorf("service = %+v", svc)
	}
}

func TestBuildManifestLabelFallback(t *testing.T) {
	e := records.RegistryEntry{ObjectID: "plain", Rights: "https://rightsstatements.org/vocab/NoC-US/1.0/"}
	m := BuildManifest(NewURLs("https://example.org"), e, SizeDescriptor{Width: 1, Height: 1}, []string{"en"})
	if m.Label["en"][0] != "plain" {
		t.Errorf("Label = %v", m.Label)
	}
	if m.Rights != e.Rights {
		t.Errorf("Rights = %q", m.Rights)
	}
}

func toDoc(t *testing.T, v any) any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestSchemaValidatorAcceptsBuiltManifest(t *testing.T) {
	v, err := NewSchemaValidator(nil)
	if err != nil {
		t.Fatalf("NewSchemaValidator: %v", err)
	}
	m := BuildManifest(NewURLs("https://example.org"), testEntry(), SizeDescriptor{Width: 200, Height: 100}, []string{"en", "es"})
	if issues := v.Validate(toDoc(t, m)); len(issues) != 0 {
		t.Errorf("issues = %v", issues)
	}
}

func TestSchemaValidatorRejects(t *testing.T) {
	v, err := NewSchemaValidator(nil)
	if err != nil {
		t.Fatalf("NewSchemaValidator: %v", err)
	}
	doc := map[string]any{"type": "Collection", "id": "not-a-url"}
	if issues := v.Validate(doc); len(issues) == 0 {
		t.Errorf("expected issues")
	}
}

func TestValidateManifests(t *testing.T) {
	_, store := testStore(t)
	v, err := NewSchemaValidator(nil)
	if err != nil {
		t.Fatal(err)
	}
	good := BuildManifest(NewURLs("https://example.org"), testEntry(), SizeDescriptor{Width: 2, Height: 2}, []string{"en"})
	data, _ := json.Marshal(good)
	write(t, store, "iiif/objects/good/manifest.json", string(data))
	write(t, store, "iiif/objects/bad/manifest.json", `{"type":"Manifest"}`)
	write(t, store, "iiif/objects/broken/manifest.json", `{`)
	write(t, store, "iiif/objects/untiled/info.json", `{}`)

	warnings, err := ValidateManifests(store, "iiif/objects", v)
	if err != nil {
		t.Fatalf("ValidateManifests: %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", warnings)
	}
	if !strings.Contains(warnings[0], "bad: invalid manifest") {
		t.Errorf("warnings[0] = %q", warnings[0])
	}
	if !strings.Contains(warnings[1], "broken: manifest is not valid JSON") {
		t.Errorf("warnings[1] = %q", warnings[1])
	}

	if w, err := ValidateManifests(store, "iiif/objects", nil); err != nil || w != nil {
		t.Errorf("nil validator = %v, %v", w, err)
	}
	if w, err := ValidateManifests(store, "missing", v); err != nil || w != nil {
		t.Errorf("missing dir = %v, %v", w, err)
	}
}

type fakeBuilder struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeBuilder) Build(_ context.Context, src, outDir string) (*SizeDescriptor, error) {
	id := filepath.Base(outDir)
	f.calls = append(f.calls, id)
	if f.fail[id] {
		return nil, errors.New("vips exploded")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(outDir, InfoFile), []byte(`{}`), 0o644); err != nil {
		return nil, err
	}
	return &SizeDescriptor{Width: 300, Height: 200, Sizes: []Size{{Width: 300, Height: 200}}}, nil
}

func TestTiler(t *testing.T) {
	_, store := testStore(t)
	write(t, store, "iiif/a.jpg", "img")
	write(t, store, "iiif/b.jpg", "img")
	write(t, store, "iiif/c.jpg", "img")
	write(t, store, "iiif/objects/b/info.json", `{}`)

	reg := NewRegistry([]records.RegistryEntry{
		{ObjectID: "a", SourceImage: "a.jpg", Metadata: map[string]map[string]string{"title": {"en": "A"}}},
		{ObjectID: "b", SourceImage: "b.jpg"},
		{ObjectID: "c", SourceImage: "c.jpg"},
		{ObjectID: "d", SourceImage: "d.jpg"},
	})
	fb := &fakeBuilder{fail: map[string]bool{"c": true}}
	tiler := &Tiler{
		Store:      store,
		Builder:    fb,
		URLs:       NewURLs("https://example.org"),
		Dir:        "iiif",
		ObjectsDir: "iiif/objects",
		Languages:  []string{"en", "es"},
	}

	rep, err := tiler.Run(context.Background(), reg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Processed != 1 || rep.Skipped != 3 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Warnings) != 2 {
		t.Errorf("warnings = %v, want c and d", rep.Warnings)
	}
	if strings.Join(fb.calls, ",") != "a,c" {
		t.Errorf("builder calls = %v", fb.calls)
	}

	data, err := store.Read("iiif/objects/a/manifest.json")
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.Label["en"][0] != "A" || m.Items[0].Width != 300 {
		t.Errorf("manifest = %+v", m)
	}

	tiler.Force = true
	fb.calls = nil
	if _, err := tiler.Run(context.Background(), reg); err != nil {
		t.Fatal(err)
	}
	if strings.Join(fb.calls, ",") != "a,b,c" {
		t.Errorf("forced builder calls = %v", fb.calls)
	}
}

func TestTilerNoBuilder(t *testing.T) {
	_, store := testStore(t)
	tiler := &Tiler{Store: store}
	if _, err := tiler.Run(context.Background(), NewRegistry(nil)); err == nil {
		t.Error("expected error without builder")
	}
}
