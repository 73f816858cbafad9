package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/storybundle/internal/columns"
)

// contractIntro describes the source layout that LLM consumers should follow
// when authoring or fixing story content.
const contractIntro = `# Story Bundle Source Contract

Each language of a version lives in its own directory and is assembled into
one ` + "`bundle.json`" + `.

## Layout

` + "```" + `text
demos/v<version>/<lang>/project.csv          # REQUIRED - one row per story
demos/v<version>/<lang>/objects.csv          # REQUIRED - one row per object
demos/v<version>/<lang>/<story_id>.csv       # one table per story, one row per step
demos/v<version>/<lang>/glossary.csv         # OPTIONAL
demos/v<version>/<lang>/texts/glossary/*.md  # OPTIONAL - one document per term
demos/v<version>/<lang>/texts/stories/<story_id>/*.md
` + "```" + `

## Rules

1. **Headers are case-insensitive** and may use any alias listed below. The
   canonical name wins over an alias when both are present.
2. **Quote fields that contain commas.** An unquoted comma shifts every later
   column; the build reports this as a CSV PARSE ERROR advisory.
3. **Layer text** is either inline (` + "`layerN_content`" + `) or a Markdown file
   (` + "`layerN_file`" + `) under ` + "`texts/stories/<story_id>/`" + `. A file wins when both
   are set.
4. **Glossary links** use ` + "`[[term_id]]`" + ` or ` + "`[[term_id|display text]]`" + `.
   Unknown ids are reported but still linked.
5. **Glossary documents** start with YAML front matter carrying ` + "`term_id`" + `
   and ` + "`title`" + `; a document replaces a table row with the same id.
6. **Rows without their key field** (order/story_id/title, object_id, step)
   are skipped silently.
`

var contractTables = []struct {
	name string
	kind columns.Kind
}{
	{"project.csv", columns.KindProject},
	{"objects.csv", columns.KindObject},
	{"<story_id>.csv", columns.KindStep},
	{"glossary.csv", columns.KindGlossary},
	{"iiif/objects.csv (image registry)", columns.KindRegistry},
}

// BundleContract returns the source contract including the accepted column
// aliases of every table.
func BundleContract() string {
	var sb strings.Builder
	sb.WriteString(contractIntro)
	sb.WriteString("\n## Columns\n")
	for _, t := range contractTables {
		fmt.Fprintf(&sb, "\n### %s\n\n| column | aliases |\n|--------|---------|\n", t.name)
		for _, f := range columns.Fields(t.kind) {
			aliases := columns.Aliases(t.kind, f)
			list := "-"
			if len(aliases) > 0 {
				list = strings.Join(aliases, ", ")
			}
			fmt.Fprintf(&sb, "| %s | %s |\n", f, list)
		}
	}
	return sb.String()
}
