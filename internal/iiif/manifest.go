package iiif

import (
	"strings"

	"github.com/starford/storybundle/internal/records"
)

// PresentationContext is the JSON-LD context of IIIF Presentation 3.
const PresentationContext = "http://iiif.io/api/presentation/3/context.json"

// LangMap is a IIIF language map: language code to values.
type LangMap map[string][]string

// MetadataEntry is one label/value pair of manifest metadata.
type MetadataEntry struct {
	Label LangMap `json:"label"`
	Value LangMap `json:"value"`
}

// Manifest is a single-canvas IIIF Presentation 3 manifest.
type Manifest struct {
	Context  string          `json:"@context"`
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Label    LangMap         `json:"label"`
	Summary  LangMap         `json:"summary,omitempty"`
	Metadata []MetadataEntry `json:"metadata"`
	Rights   string          `json:"rights,omitempty"`
	Items    []Canvas        `json:"items"`
}

// Canvas holds the painted image.
type Canvas struct {
	ID     string           `json:"id"`
	Type   string           `json:"type"`
	Label  LangMap          `json:"label"`
	Height int              `json:"height"`
	Width  int              `json:"width"`
	Items  []AnnotationPage `json:"items"`
}

// AnnotationPage groups painting annotations.
type AnnotationPage struct {
	ID    string       `json:"id"`
	Type  string       `json:"type"`
	Items []Annotation `json:"items"`
}

// Annotation paints the image onto the canvas.
type Annotation struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Motivation string    `json:"motivation"`
	Body       ImageBody `json:"body"`
	Target     string    `json:"target"`
}

// ImageBody is the painted image and its level 0 service.
type ImageBody struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Format  string         `json:"format"`
	Height  int            `json:"height"`
	Width   int            `json:"width"`
	Service []ImageService `json:"service"`
}

// ImageService points at the static tile pyramid.
type ImageService struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Profile string `json:"profile"`
}

// metadataLabels holds the translated labels of manifest metadata fields.
var metadataLabels = []struct {
	field  string
	labels map[string]string
}{
	{"creator", map[string]string{"en": "Creator", "es": "Creador"}},
	{"date", map[string]string{"en": "Date", "es": "Fecha"}},
	{"attribution", map[string]string{"en": "Attribution", "es": "Atribución"}},
}

func langMap(e records.RegistryEntry, field string, languages []string) LangMap {
	langs := e.Languages(field, languages)
	if len(langs) == 0 {
		return nil
	}
	m := make(LangMap, len(langs))
	for _, l := range langs {
		m[l] = []string{e.Value(field, l)}
	}
	return m
}

// BuildManifest assembles the manifest of a registry entry from its tiled
// size descriptor. languages orders the metadata languages considered.
func BuildManifest(u URLs, e records.RegistryEntry, info SizeDescriptor, languages []string) Manifest {
	id := e.ObjectID

	label := langMap(e, "title", languages)
	if label == nil {
		label = LangMap{"en": {id}}
	}

	m := Manifest{
		Context:  PresentationContext,
		ID:       u.Manifest(id),
		Type:     "Manifest",
		Label:    label,
		Summary:  langMap(e, "description", languages),
		Metadata: []MetadataEntry{},
		Items: []Canvas{{
			ID:     u.Canvas(id),
			Type:   "Canvas",
			Label:  label,
			Height: info.Height,
			Width:  info.Width,
			Items: []AnnotationPage{{
				ID:   u.Page(id),
				Type: "AnnotationPage",
				Items: []Annotation{{
					ID:         u.Annotation(id),
					Type:       "Annotation",
					Motivation: "painting",
					Body: ImageBody{
						ID:     u.BaseImage(id),
						Type:   "Image",
						Format: "image/jpeg",
						Height: info.Height,
						Width:  info.Width,
						Service: []ImageService{{
							ID:      u.Service(id),
							Type:    "ImageService3",
							Profile: "level0",
						}},
					},
					Target: u.Canvas(id),
				}},
			}},
		}},
	}

	for _, ml := range metadataLabels {
		value := langMap(e, ml.field, languages)
		if value == nil {
			continue
		}
		lbl := LangMap{}
		for lang, text := range ml.labels {
			lbl[lang] = []string{text}
		}
		m.Metadata = append(m.Metadata, MetadataEntry{Label: lbl, Value: value})
	}

	switch {
	case strings.HasPrefix(e.Rights, "http://"), strings.HasPrefix(e.Rights, "https://"):
		m.Rights = e.Rights
	case e.Rights != "":
		m.Metadata = append(m.Metadata, MetadataEntry{
			Label: LangMap{"en": {"Rights"}, "es": {"Derechos"}},
			Value: LangMap{"none": {e.Rights}},
		})
	}
	return m
}
