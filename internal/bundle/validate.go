package bundle

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/starford/storybundle/internal/models"
)

// Tokens that show up in a field when a CSV row was split at an unquoted comma.
var (
	suspiciousBylines = []string{"navigation", "glossary", "widgets", "linking"}
	suspiciousButtons = []string{"md", ".md", "true", "false"}
	filenameSuffixes  = []string{".md", ".txt", ".csv", ".html"}
)

// A subtitle shorter than this without a comma was probably cut at one.
const shortSubtitleLength = 20

// Validate scans a finished bundle for likely authoring mistakes and returns
// advisories. It never modifies b.
func Validate(b *models.Bundle, lang string) []string {
	if b == nil {
		return nil
	}
	var out []string
	add := func(format string, args ...any) {
		out = append(out, fmt.Sprintf("[%s] ", lang)+fmt.Sprintf(format, args...))
	}

	for _, p := range b.Project {
		byline := strings.ToLower(p.Byline)
		shifted := slices.Contains(suspiciousBylines, byline)
		if p.Subtitle != "" && utf8.RuneCountInString(p.Subtitle) < shortSubtitleLength &&
			!strings.Contains(p.Subtitle, ",") && shifted {
			add("CSV PARSE ERROR in project '%s': byline='%s' looks like part of subtitle. Check if subtitle field needs quotes.",
				p.StoryID, p.Byline)
		}
		if p.Byline != "" && !strings.HasPrefix(p.Byline, "by") && shifted {
			add("CSV PARSE ERROR in project '%s': byline='%s' looks like part of subtitle got shifted. Add quotes around the subtitle field.",
				p.StoryID, p.Byline)
		}
	}

	for _, id := range sortedKeys(b.Stories) {
		for _, step := range b.Stories[id].Steps {
			for n := 1; n <= 2; n++ {
				layer := step.Layers.Get(n)
				if layer == nil {
					continue
				}
				if layer.Button != "" && strings.TrimSpace(layer.Content) == "" {
					add("Empty layer content in '%s' step %d: button='%s' but no content loaded",
						id, step.Step, layer.Button)
				}
				if looksLikeFilename(layer.Button) {
					add("CSV PARSE ERROR in '%s' step %d: button='%s' looks like a filename. Check if answer field needs quotes.",
						id, step.Step, layer.Button)
				}
			}
		}
	}

	for _, id := range sortedKeys(b.Objects) {
		if b.Objects[id].SourceURL == "" {
			add("Object '%s' missing source_url", id)
		}
	}
	return out
}

func looksLikeFilename(button string) bool {
	lower := strings.ToLower(strings.TrimSpace(button))
	if lower == "" {
		return false
	}
	if slices.Contains(suspiciousButtons, lower) {
		return true
	}
	for _, suffix := range filenameSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
