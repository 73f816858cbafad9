package records

import (
	"fmt"
	"path"
	"strings"

	"github.com/starford/storybundle/internal/models"
	"github.com/starford/storybundle/internal/storage"
)

// SourceKind tags where a layer's content comes from.
type SourceKind int

// Layer content sources.
const (
	SourceInline SourceKind = iota + 1
	SourceFile
)

// LayerSource is either inline Markdown or a reference to a text file.
type LayerSource struct {
	Kind  SourceKind
	Value string
}

// Inline returns an inline content source.
func Inline(text string) LayerSource { return LayerSource{Kind: SourceInline, Value: text} }

// FileRef returns a file reference source.
func FileRef(name string) LayerSource { return LayerSource{Kind: SourceFile, Value: name} }

// Resolve returns the raw Markdown for the source. File references are read
// relative to dir; a missing file yields empty content and an error.
func (s LayerSource) Resolve(r storage.Reader, dir string) (string, error) {
	switch s.Kind {
	case SourceInline:
		return s.Value, nil
	case SourceFile:
		p := path.Join(dir, s.Value)
		data, err := r.Read(p)
		if err != nil {
			return "", fmt.Errorf("layer file not found: %s", p)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", nil
}

// LayerSpec is a layer whose content has not been resolved yet.
type LayerSpec struct {
	Button string
	Source LayerSource
}

// StepRow is a parsed step with its unresolved layers.
type StepRow struct {
	Step   models.Step
	Layers [2]*LayerSpec
}

// Step defaults for empty coordinate cells.
const (
	DefaultX    = 0.5
	DefaultY    = 0.5
	DefaultZoom = 1.0
)

// ParseSteps converts story table rows into steps, preserving authored order.
func ParseSteps(recs []Record) []StepRow {
	var out []StepRow
	for _, rec := range recs {
		r := rec.Row
		if skipKey(r.Get("step")) {
			continue
		}
		n, ok := parseInt(r.Get("step"))
		if !ok {
			continue
		}
		x, okX := parseFloat(r.Get("x"), DefaultX)
		y, okY := parseFloat(r.Get("y"), DefaultY)
		zoom, okZ := parseFloat(r.Get("zoom"), DefaultZoom)
		if !okX || !okY || !okZ {
			continue
		}

		sr := StepRow{Step: models.Step{
			Step:     n,
			Object:   r.Get("object"),
			X:        x,
			Y:        y,
			Zoom:     zoom,
			Question: r.Get("question"),
			Answer:   r.Get("answer"),
		}}
		for i := range sr.Layers {
			sr.Layers[i] = layerSpec(r, i+1)
		}
		out = append(out, sr)
	}
	return out
}

// layerSpec builds layer n; a file reference takes precedence over inline content.
func layerSpec(r map[string]string, n int) *LayerSpec {
	get := func(f string) string { return strings.TrimSpace(r[fmt.Sprintf("layer%d_%s", n, f)]) }
	button := get("button")
	if button == "" {
		return nil
	}
	var src LayerSource
	switch file, inline := get("file"), get("content"); {
	case file != "":
		src = FileRef(file)
	case inline != "":
		src = Inline(inline)
	default:
		return nil
	}
	return &LayerSpec{Button: button, Source: src}
}
