package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Converter turns Markdown into HTML.
type Converter interface {
	Convert(src []byte) ([]byte, error)
}

// Goldmark is a Converter backed by goldmark with tables, definition lists
// and footnotes enabled. A single newline renders as a line break and raw HTML
// in the source is kept.
type Goldmark struct {
	md goldmark.Markdown
}

// NewGoldmark builds the default converter. It is stateless and safe to share.
func NewGoldmark() *Goldmark {
	return &Goldmark{md: goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.DefinitionList,
			extension.Footnote,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithUnsafe(),
		),
	)}
}

// Convert renders src into HTML.
func (g *Goldmark) Convert(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("markdown convert: %w", err)
	}
	return buf.Bytes(), nil
}
