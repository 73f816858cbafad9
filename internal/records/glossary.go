package records

import (
	"bytes"
	"strings"

	"github.com/adrg/frontmatter"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/storybundle/internal/models"
)

// ParseGlossaryTable converts glossary table rows into raw (Markdown) terms.
// A row without a display title falls back to the title-cased id.
func ParseGlossaryTable(recs []Record) []models.GlossaryTerm {
	var out []models.GlossaryTerm
	for _, rec := range recs {
		id := rec.Row.Get("term_id")
		if skipKey(id) {
			continue
		}
		term := rec.Row.Get("term")
		if term == "" {
			term = TitleFromSlug(id)
		}
		out = append(out, models.GlossaryTerm{
			TermID:  id,
			Term:    term,
			Content: rec.Row.Get("content"),
		})
	}
	return out
}

type glossaryFrontMatter struct {
	TermID string `yaml:"term_id"`
	Title  string `yaml:"title"`
	Term   string `yaml:"term"`
}

// ParseGlossaryDocument reads one glossary Markdown document. Identity comes
// from the term_id and title front-matter keys; when the front matter is
// absent or malformed the slug and its title-cased form are used.
func ParseGlossaryDocument(slug string, data []byte) models.GlossaryTerm {
	term := models.GlossaryTerm{
		TermID:  slug,
		Term:    TitleFromSlug(slug),
		Content: strings.TrimSpace(string(data)),
	}

	var fm glossaryFrontMatter
	body, err := frontmatter.Parse(bytes.NewReader(data), &fm)
	if err != nil {
		return term
	}
	term.Content = strings.TrimSpace(string(body))
	if v := unquote(fm.TermID); v != "" {
		term.TermID = v
	}
	switch {
	case unquote(fm.Title) != "":
		term.Term = unquote(fm.Title)
	case unquote(fm.Term) != "":
		term.Term = unquote(fm.Term)
	}
	return term
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}

// TitleFromSlug turns "chiaroscuro-light" into "Chiaroscuro Light".
func TitleFromSlug(slug string) string {
	words := strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	return cases.Title(language.Und).String(words)
}
