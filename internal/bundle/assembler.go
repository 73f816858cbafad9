// Package bundle assembles one language's content tree into a bundle
// document, checks finished bundles for authoring mistakes, and writes them.
package bundle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/starford/storybundle/internal/columns"
	"github.com/starford/storybundle/internal/iiif"
	"github.com/starford/storybundle/internal/models"
	"github.com/starford/storybundle/internal/records"
	"github.com/starford/storybundle/internal/render"
	"github.com/starford/storybundle/internal/storage"
)

// Assembler builds the bundle of one language directory. It holds no
// per-language state and may be shared across goroutines.
type Assembler struct {
	Store    storage.Reader
	Renderer *render.Renderer
	// Deriver fills IIIF fields of self-hosted objects; nil disables derivation.
	Deriver *iiif.Deriver
	Layout  Layout
	// Meta is the provenance template; Language and Generated are set per bundle.
	Meta        models.Meta
	IIIFBaseURL string
	// Now stamps _meta.generated; time.Now when nil.
	Now func() time.Time
}

type collector struct {
	lang string
	list []string
}

func (c *collector) add(format string, args ...any) {
	c.list = append(c.list, fmt.Sprintf("[%s] ", c.lang)+fmt.Sprintf(format, args...))
}

func (c *collector) addAll(msgs []string) {
	for _, m := range msgs {
		c.list = append(c.list, fmt.Sprintf("[%s] %s", c.lang, m))
	}
}

// Assemble reads dir (relative to the content root) and returns the bundle
// for lang with the warnings collected on the way. Content is read in a
// fixed order: project, objects, glossary, then one story per project entry.
// Warnings never change the bundle's content.
func (a *Assembler) Assemble(ctx context.Context, lang, dir string) (*models.Bundle, []string) {
	w := &collector{lang: lang}

	meta := a.Meta
	meta.Language = lang
	meta.Generated = a.now().UTC().Format("2006-01-02T15:04:05Z")
	b := models.NewBundle(meta, a.IIIFBaseURL)

	a.readProjects(b, dir, w)
	a.readObjects(b, dir, w)
	a.readGlossary(b, dir, w)
	a.readStories(ctx, b, dir, w)
	return b, w.list
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// readTable loads a table; ok is false when it is missing or unreadable. A
// table that fails to decode is reported and counts as empty.
func (a *Assembler) readTable(p, name string, kind columns.Kind, w *collector) ([]records.Record, bool) {
	data, err := a.Store.Read(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false
	}
	if err != nil {
		w.add("Could not read %s: %v", name, err)
		return nil, false
	}
	recs, err := records.ReadRows(bytes.NewReader(data), kind)
	if err != nil {
		w.add("Malformed %s: %v", name, err)
		return nil, true
	}
	w.addAll(records.ConflictWarnings(name, recs))
	return recs, true
}

func (a *Assembler) readProjects(b *models.Bundle, dir string, w *collector) {
	name := a.Layout.ProjectTable
	recs, ok := a.readTable(path.Join(dir, name), name, columns.KindProject, w)
	if !ok {
		if !a.Store.Exists(path.Join(dir, name)) {
			w.add("Missing %s", name)
		}
		return
	}
	index := map[string]int{}
	for _, p := range records.ParseProjects(recs) {
		if i, dup := index[p.StoryID]; dup {
			b.Project[i] = p
			continue
		}
		index[p.StoryID] = len(b.Project)
		b.Project = append(b.Project, p)
	}
}

func (a *Assembler) readObjects(b *models.Bundle, dir string, w *collector) {
	name := a.Layout.ObjectTable
	recs, ok := a.readTable(path.Join(dir, name), name, columns.KindObject, w)
	if !ok {
		if !a.Store.Exists(path.Join(dir, name)) {
			w.add("Missing %s", name)
		}
		return
	}
	for _, obj := range records.ParseObjects(recs) {
		if err := a.Deriver.Apply(&obj); err != nil {
			w.add("%v", err)
		}
		b.Objects[obj.ObjectID] = obj
	}
}

// readGlossary loads the glossary table and then the per-term documents; a
// document replaces a table row with the same id. Bodies are rendered once
// every title is known.
func (a *Assembler) readGlossary(b *models.Bundle, dir string, w *collector) {
	var raw []models.GlossaryTerm

	tableName := a.Layout.GlossaryTable
	tableFound := false
	if tableName != "" {
		var recs []records.Record
		recs, tableFound = a.readTable(path.Join(dir, tableName), tableName, columns.KindGlossary, w)
		raw = append(raw, records.ParseGlossaryTable(recs)...)
	}

	docDir := path.Join(dir, a.Layout.GlossaryDir)
	if a.Store.Exists(docDir) {
		files, err := a.Store.Files(docDir, ".md")
		if err != nil {
			w.add("Could not list %s/: %v", a.Layout.GlossaryDir, err)
		}
		for _, f := range files {
			data, err := a.Store.Read(path.Join(docDir, f))
			if err != nil {
				w.add("Could not read glossary file %s: %v", f, err)
				continue
			}
			raw = append(raw, records.ParseGlossaryDocument(strings.TrimSuffix(f, ".md"), data))
		}
	} else if !tableFound {
		w.add("Missing %s/ directory", a.Layout.GlossaryDir)
	}

	for _, t := range raw {
		b.Glossary[t.TermID] = t
	}
	titles := b.GlossaryTitles()
	for _, id := range sortedKeys(b.Glossary) {
		t := b.Glossary[id]
		a.checkTerms(t.Content, titles, "glossary term '"+id+"'", w)
		t.Content = a.Renderer.Render(t.Content, titles)
		b.Glossary[id] = t
	}
}

func (a *Assembler) readStories(ctx context.Context, b *models.Bundle, dir string, w *collector) {
	storiesDir := path.Join(dir, a.Layout.StoriesDir)
	if !a.Store.Exists(storiesDir) {
		w.add("Missing %s/ directory", a.Layout.StoriesDir)
	}
	titles := b.GlossaryTitles()

	for _, p := range b.Project {
		if ctx.Err() != nil {
			w.add("Cancelled before story '%s'", p.StoryID)
			return
		}
		name := a.Layout.StoryTable(p.StoryID)
		recs, ok := a.readTable(path.Join(dir, name), name, columns.KindStep, w)
		if !ok {
			if !a.Store.Exists(path.Join(dir, name)) {
				w.add("Missing %s", name)
			}
			continue
		}

		textsDir := path.Join(storiesDir, p.StoryID)
		if !a.Store.Exists(textsDir) {
			w.add("Missing %s/%s/ directory", a.Layout.StoriesDir, p.StoryID)
			textsDir = storiesDir
		}

		var steps []models.Step
		for _, sr := range records.ParseSteps(recs) {
			step := sr.Step
			if step.Object != "" && len(b.Objects) > 0 {
				if _, known := b.Objects[step.Object]; !known {
					w.add("Story '%s' step %d references unknown object '%s'", p.StoryID, step.Step, step.Object)
				}
			}
			for i, spec := range sr.Layers {
				if spec == nil {
					continue
				}
				md, err := spec.Source.Resolve(a.Store, textsDir)
				if err != nil {
					w.add("Story '%s' step %d: %v", p.StoryID, step.Step, err)
				}
				a.checkTerms(md, titles, fmt.Sprintf("story '%s' step %d", p.StoryID, step.Step), w)
				if step.Layers == nil {
					step.Layers = &models.Layers{}
				}
				step.Layers.Set(i+1, &models.Layer{
					Button:  spec.Button,
					Content: a.Renderer.Render(md, titles),
				})
			}
			steps = append(steps, step)
		}
		if len(steps) > 0 {
			b.Stories[p.StoryID] = models.Story{StoryID: p.StoryID, Steps: steps}
		}
	}
}

// checkTerms warns about glossary links whose id has no term; the link is
// still rendered.
func (a *Assembler) checkTerms(md string, titles map[string]string, where string, w *collector) {
	for _, id := range render.TermIDs(md) {
		if _, ok := titles[id]; !ok {
			w.add("Unknown glossary term '%s' in %s", id, where)
		}
	}
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
