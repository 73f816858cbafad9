// Package models defines the content types assembled into a language bundle.
package models

// Project is one row of the project table: a story listed on the landing page.
type Project struct {
	Order    int    `json:"order"`
	StoryID  string `json:"story_id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Byline   string `json:"byline"`
}

// Object is an art object referenced by story steps. ObjectID is the map key
// in the bundle and is not repeated in the record.
type Object struct {
	ObjectID    string `json:"-"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	Creator     string `json:"creator,omitempty"`
	Period      string `json:"period,omitempty"`
	Medium      string `json:"medium,omitempty"`
	Dimensions  string `json:"dimensions,omitempty"`
	Location    string `json:"location,omitempty"`
	Credit      string `json:"credit,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Year        string `json:"year,omitempty"`
	ObjectType  string `json:"object_type,omitempty"`
	Subjects    string `json:"subjects,omitempty"`
	Featured    string `json:"featured,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Story is the ordered list of steps for one project entry.
type Story struct {
	StoryID string `json:"-"`
	Steps   []Step `json:"steps"`
}

// Step is one position of the viewer within a story.
type Step struct {
	Step     int     `json:"step"`
	Object   string  `json:"object"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Zoom     float64 `json:"zoom"`
	Question string  `json:"question,omitempty"`
	Answer   string  `json:"answer,omitempty"`
	Layers   *Layers `json:"layers,omitempty"`
}

// Layers holds the optional content panels of a step.
type Layers struct {
	Layer1 *Layer `json:"layer1,omitempty"`
	Layer2 *Layer `json:"layer2,omitempty"`
}

// Layer is a labelled panel with rendered HTML content.
type Layer struct {
	Button  string `json:"button"`
	Content string `json:"content"`
}

// Get returns layer n (1 or 2), or nil.
func (l *Layers) Get(n int) *Layer {
	if l == nil {
		return nil
	}
	switch n {
	case 1:
		return l.Layer1
	case 2:
		return l.Layer2
	}
	return nil
}

// Set stores layer n (1 or 2).
func (l *Layers) Set(n int, layer *Layer) {
	switch n {
	case 1:
		l.Layer1 = layer
	case 2:
		l.Layer2 = layer
	}
}

// Empty reports whether no layer is populated.
func (l *Layers) Empty() bool {
	return l == nil || (l.Layer1 == nil && l.Layer2 == nil)
}

// GlossaryTerm is one glossary entry. Content is Markdown while parsing and
// HTML once rendered into a bundle.
type GlossaryTerm struct {
	TermID  string `json:"-"`
	Term    string `json:"term"`
	Content string `json:"content"`
}

// Meta records provenance and format version of a bundle.
type Meta struct {
	BundleFormat string `json:"bundle_format"`
	Version      string `json:"version"`
	Language     string `json:"language"`
	Generated    string `json:"generated"`
	Generator    string `json:"generator"`
	Source       string `json:"source,omitempty"`
	Description  string `json:"description,omitempty"`
	License      string `json:"license,omitempty"`
}

// Bundle is one language's fully assembled content document.
type Bundle struct {
	Meta        Meta                    `json:"_meta"`
	IIIFBaseURL string                  `json:"iiif_base_url"`
	Project     []Project               `json:"project"`
	Objects     map[string]Object       `json:"objects"`
	Stories     map[string]Story        `json:"stories"`
	Glossary    map[string]GlossaryTerm `json:"glossary"`
}

// NewBundle returns a bundle with empty, non-nil collections.
func NewBundle(meta Meta, iiifBaseURL string) *Bundle {
	return &Bundle{
		Meta:        meta,
		IIIFBaseURL: iiifBaseURL,
		Project:     []Project{},
		Objects:     map[string]Object{},
		Stories:     map[string]Story{},
		Glossary:    map[string]GlossaryTerm{},
	}
}

// Empty reports whether the bundle has neither projects nor objects.
func (b *Bundle) Empty() bool {
	return len(b.Project) == 0 && len(b.Objects) == 0
}

// GlossaryTitles returns the term_id to display title map used for link rewriting.
func (b *Bundle) GlossaryTitles() map[string]string {
	out := make(map[string]string, len(b.Glossary))
	for id, t := range b.Glossary {
		out[id] = t.Term
	}
	return out
}

// VersionIndex is the top-level catalog of versions with a completed bundle.
type VersionIndex struct {
	Versions []string `json:"versions"`
}
