package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// glossaryLinkRe matches [[term_id]] and [[term_id|display]] with optional
// whitespace inside the brackets.
var glossaryLinkRe = regexp.MustCompile(`\[\[\s*([^|\]]+?)(?:\s*\|\s*([^|\]]+?))?\s*\]\]`)

// LinkClass is the CSS class carried by rewritten glossary links.
const LinkClass = "glossary-inline-link"

// RewriteGlossaryLinks replaces glossary link syntax in plain text with
// anchors carrying a data-term-id attribute. Display text is the explicit text
// when given, else the term's title from titles, else the raw id. Unknown ids
// still produce a link so the consuming site can resolve them. Id and display
// text are HTML-escaped.
func RewriteGlossaryLinks(text string, titles map[string]string) string {
	return rewriteLinks(text, titles, false)
}

// rewriteLinks rewrites glossary links. When escaped is set, text is HTML
// produced by the converter: link ids are unescaped before lookup and explicit
// display text is kept as converted.
func rewriteLinks(text string, titles map[string]string, escaped bool) string {
	if !strings.Contains(text, "[[") {
		return text
	}
	return glossaryLinkRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := glossaryLinkRe.FindStringSubmatch(m)
		id := strings.TrimSpace(sub[1])
		display := strings.TrimSpace(sub[2])
		if escaped {
			id = html.UnescapeString(id)
		}
		switch {
		case display == "":
			display = id
			if title, ok := titles[id]; ok && title != "" {
				display = title
			}
			display = html.EscapeString(display)
		case !escaped:
			display = html.EscapeString(display)
		}
		return GlossaryAnchor(id, display)
	})
}

// GlossaryAnchor returns the anchor markup for one glossary reference. id is
// plain text; display must already be HTML.
func GlossaryAnchor(id, display string) string {
	return fmt.Sprintf(`<a href="#" class="%s" data-term-id="%s">%s</a>`,
		LinkClass, html.EscapeString(id), display)
}

// TermIDs returns the distinct glossary ids referenced in text, in order of
// first appearance.
func TermIDs(text string) []string {
	matches := glossaryLinkRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		id := strings.TrimSpace(m[1])
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
