// Package render converts authored Markdown into bundle HTML and rewrites
// inline glossary links.
package render

import "strings"

// Renderer strips front matter, converts Markdown, and rewrites glossary links.
type Renderer struct {
	conv Converter
}

// New returns a Renderer. A nil converter selects degraded mode: text is
// passed through with glossary-link rewriting only.
func New(conv Converter) *Renderer {
	return &Renderer{conv: conv}
}

// Degraded reports whether no Markdown converter is configured.
func (r *Renderer) Degraded() bool {
	return r == nil || r.conv == nil
}

// Render turns raw Markdown into HTML using the glossary titles of the same
// language for link text.
func (r *Renderer) Render(markdown string, titles map[string]string) string {
	body := strings.TrimSpace(StripFrontMatter(strings.TrimSpace(markdown)))
	if body == "" {
		return ""
	}
	if r.Degraded() {
		return RewriteGlossaryLinks(body, titles)
	}
	out, err := r.conv.Convert([]byte(body))
	if err != nil {
		return RewriteGlossaryLinks(body, titles)
	}
	return rewriteLinks(strings.TrimSpace(string(out)), titles, true)
}
