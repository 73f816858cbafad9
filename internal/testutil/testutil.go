// Package testutil provides shared test helpers for setting up content trees
// and catalog databases.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/storybundle/internal/catalog"
	"github.com/starford/storybundle/internal/storage"
)

// TestDB creates a temporary catalog database that is automatically cleaned up.
func TestDB(t *testing.T) *catalog.DB {
	t.Helper()
	db, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContent creates a temporary content root with a storage.Provider.
func TestContent(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteFiles writes each path/content pair into store.
func WriteFiles(t *testing.T, store storage.Provider, files map[string]string) {
	t.Helper()
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

// SampleVersion writes a two-language source tree for version under
// demos/v<version>: "en" has a project, an object, a story and a glossary
// term; "es" has only an empty project table and is skipped by a build.
func SampleVersion(t *testing.T, store storage.Provider, version string) {
	t.Helper()
	dir := "demos/v" + version
	WriteFiles(t, store, map[string]string{
		dir + "/en/project.csv":               "order,story_id,title\n1,intro,Intro\n",
		dir + "/en/objects.csv":               "object_id,title,source_url\nmap-1,Old map,https://example.org/map-1/manifest.json\n",
		dir + "/en/intro.csv":                 "step,object,layer1_button,layer1_content\n1,map-1,More,See [[fresco]].\n",
		dir + "/en/texts/glossary/fresco.md":  "---\nterm_id: fresco\ntitle: Fresco\n---\nPainting on wet plaster.\n",
		dir + "/en/texts/stories/intro/.keep": "",
		dir + "/es/project.csv":               "orden,id_historia,titulo\n",
	})
}
