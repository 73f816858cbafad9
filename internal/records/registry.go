package records

import (
	"slices"
	"strings"
)

// RegistryEntry is one row of the self-hosted object registry.
type RegistryEntry struct {
	ObjectID    string
	SourceImage string
	Rights      string
	// Metadata holds per-language values keyed by field then language, from
	// headers such as title_en or description_es.
	Metadata map[string]map[string]string
}

// Value returns the metadata value of field in lang.
func (e RegistryEntry) Value(field, lang string) string {
	return e.Metadata[field][lang]
}

// Languages returns the languages that carry a value for field, in the given order.
func (e RegistryEntry) Languages(field string, order []string) []string {
	var out []string
	for _, lang := range order {
		if e.Metadata[field][lang] != "" {
			out = append(out, lang)
		}
	}
	return out
}

// RegistryFields are the per-language metadata fields read from the registry.
var RegistryFields = []string{"title", "description", "creator", "date", "attribution"}

// ParseRegistry converts registry rows into entries, in table order.
func ParseRegistry(recs []Record) []RegistryEntry {
	var out []RegistryEntry
	for _, rec := range recs {
		id := rec.Row.Get("object_id")
		if skipKey(id) {
			continue
		}
		e := RegistryEntry{
			ObjectID:    id,
			SourceImage: rec.Row.Get("source_image"),
			Rights:      rec.Row.Get("rights"),
			Metadata:    map[string]map[string]string{},
		}
		for header, value := range rec.Row {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			field, lang, ok := strings.Cut(strings.ToLower(strings.TrimSpace(header)), "_")
			if !ok || lang == "" || !slices.Contains(RegistryFields, field) {
				continue
			}
			if e.Metadata[field] == nil {
				e.Metadata[field] = map[string]string{}
			}
			e.Metadata[field][lang] = value
		}
		out = append(out, e)
	}
	return out
}
