// Package columns maps bilingual and legacy spreadsheet headers onto one
// canonical schema per record type.
package columns

import (
	"cmp"
	"slices"
	"strings"
)

// Kind identifies the table a row belongs to.
type Kind int

// Table kinds.
const (
	KindProject Kind = iota
	KindObject
	KindStep
	KindGlossary
	KindRegistry
)

// String returns the table name used in warnings.
func (k Kind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindObject:
		return "objects"
	case KindStep:
		return "story"
	case KindGlossary:
		return "glossary"
	case KindRegistry:
		return "registry"
	}
	return "unknown"
}

// Row is a normalized row: canonical header to cell value as authored.
type Row map[string]string

// Get returns the trimmed value of a canonical field.
func (r Row) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// Conflict records two sources for the same canonical field that disagree.
type Conflict struct {
	Field   string
	Kept    string
	Dropped string
}

// aliasTable lists, per kind, each canonical field followed by its accepted
// aliases. Order matters: it is the precedence order among aliases.
var aliasTable = map[Kind][][]string{
	KindProject: {
		{"order", "orden", "position", "posicion", "posición"},
		{"story_id", "project_id", "id_historia", "historia_id", "id_proyecto", "story"},
		{"title", "titulo", "título"},
		{"subtitle", "subtitulo", "subtítulo", "description", "descripcion", "descripción"},
		{"byline", "autoria", "autoría", "firma", "author", "autor"},
	},
	KindObject: {
		{"object_id", "id_objeto", "objeto_id", "id"},
		{"title", "titulo", "título"},
		{"description", "descripcion", "descripción"},
		{"source_url", "url_fuente", "iiif_manifest", "manifest_url", "manifest", "iiif_url"},
		{"creator", "creador", "autor", "artist", "artista"},
		{"period", "periodo", "período", "date", "fecha"},
		{"medium", "medio", "tecnica", "técnica"},
		{"dimensions", "dimensiones"},
		{"location", "ubicacion", "ubicación", "lugar"},
		{"credit", "credito", "crédito", "attribution", "atribucion", "atribución"},
		{"thumbnail", "miniatura", "thumb"},
		{"year", "año", "ano", "anio"},
		{"object_type", "tipo_objeto", "tipo", "type"},
		{"subjects", "temas", "materias", "tags"},
		{"featured", "destacado"},
		{"source", "fuente", "collection", "coleccion", "colección"},
	},
	KindStep: {
		{"step", "paso"},
		{"object", "objeto", "object_id", "id_objeto"},
		{"x"},
		{"y"},
		{"zoom", "acercamiento"},
		{"question", "pregunta"},
		{"answer", "respuesta"},
		{"layer1_button", "capa1_boton", "capa1_botón", "layer1_label"},
		{"layer1_file", "capa1_archivo", "layer1_md"},
		{"layer1_content", "layer1_text", "capa1_contenido", "capa1_texto", "layer1_inline"},
		{"layer2_button", "capa2_boton", "capa2_botón", "layer2_label"},
		{"layer2_file", "capa2_archivo", "layer2_md"},
		{"layer2_content", "layer2_text", "capa2_contenido", "capa2_texto", "layer2_inline"},
	},
	KindGlossary: {
		{"term_id", "id_termino", "id_término", "termino_id", "id"},
		{"term", "title", "termino", "término", "titulo", "título"},
		{"content", "definition", "definicion", "definición", "contenido", "body"},
	},
	KindRegistry: {
		{"object_id", "id_objeto", "objeto_id", "id"},
		{"source_image", "imagen_fuente", "imagen", "image", "file"},
		{"rights", "derechos", "license", "licencia"},
	},
}

type aliasEntry struct {
	canonical string
	rank      int // 0 for the canonical header itself
}

var lookup = buildLookup()

func buildLookup() map[Kind]map[string]aliasEntry {
	out := make(map[Kind]map[string]aliasEntry, len(aliasTable))
	for kind, fields := range aliasTable {
		m := make(map[string]aliasEntry)
		for _, names := range fields {
			for rank, name := range names {
				m[name] = aliasEntry{canonical: names[0], rank: rank}
			}
		}
		out[kind] = m
	}
	return out
}

func key(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

// Canonical returns the canonical name for header. Headers are matched
// case-insensitively after trimming; unknown headers are returned verbatim.
func Canonical(kind Kind, header string) string {
	if e, ok := lookup[kind][key(header)]; ok {
		return e.canonical
	}
	return header
}

func rank(kind Kind, header string) int {
	if e, ok := lookup[kind][key(header)]; ok {
		return e.rank
	}
	return 0
}

// Fields returns the canonical field names known for kind, in table order.
func Fields(kind Kind) []string {
	fields := aliasTable[kind]
	out := make([]string, 0, len(fields))
	for _, names := range fields {
		out = append(out, names[0])
	}
	return out
}

// Aliases returns the accepted aliases of a canonical field (excluding the
// canonical name itself).
func Aliases(kind Kind, field string) []string {
	for _, names := range aliasTable[kind] {
		if names[0] == field {
			return append([]string(nil), names[1:]...)
		}
	}
	return nil
}

// Normalize translates every header of row to its canonical name.
//
// When several headers map to the same canonical field, the canonical header
// wins, then aliases in table order; an empty value never shadows a non-empty
// one. Disagreeing non-empty values are reported as conflicts. Values are kept
// verbatim; Row.Get trims them.
func Normalize(kind Kind, row map[string]string) (Row, []Conflict) {
	out := make(Row, len(row))
	var conflicts []Conflict

	headers := make([]string, 0, len(row))
	for h := range row {
		headers = append(headers, h)
	}
	sortHeaders(kind, headers)

	for _, h := range headers {
		field := Canonical(kind, h)
		val := row[h]

		prev, seen := out[field]
		p, v := strings.TrimSpace(prev), strings.TrimSpace(val)
		switch {
		case !seen, p == "" && v != "":
			out[field] = val
		case v != "" && p != v:
			conflicts = append(conflicts, Conflict{Field: field, Kept: p, Dropped: v})
		}
	}
	return out, conflicts
}

// NormalizeHeader maps a CSV header line to canonical names, position by position.
func NormalizeHeader(kind Kind, header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = Canonical(kind, h)
	}
	return out
}

// sortHeaders orders raw headers by (canonical field, alias rank, raw key) so
// that Normalize is deterministic regardless of map iteration order.
func sortHeaders(kind Kind, headers []string) {
	slices.SortFunc(headers, func(a, b string) int {
		if c := cmp.Compare(Canonical(kind, a), Canonical(kind, b)); c != 0 {
			return c
		}
		if c := cmp.Compare(rank(kind, a), rank(kind, b)); c != 0 {
			return c
		}
		return cmp.Compare(key(a), key(b))
	})
}
