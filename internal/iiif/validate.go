package iiif

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/starford/storybundle/internal/storage"
)

//go:embed schema/presentation3.json
var presentationSchema []byte

// MaxIssues is the number of schema issues reported per manifest.
const MaxIssues = 3

// Issue is one schema violation.
type Issue struct {
	Location string
	Message  string
}

func (i Issue) String() string {
	loc := i.Location
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + i.Message
}

// ManifestValidator checks a decoded manifest document.
type ManifestValidator interface {
	Validate(doc any) []Issue
}

// SchemaValidator validates manifests against a compiled JSON schema.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles the embedded Presentation 3 schema, or the
// schema file at override when it is non-empty.
func NewSchemaValidator(override []byte) (*SchemaValidator, error) {
	src := presentationSchema
	if len(override) > 0 {
		src = override
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("presentation3.json", bytes.NewReader(src)); err != nil {
		return nil, fmt.Errorf("iiif: load schema: %w", err)
	}
	schema, err := compiler.Compile("presentation3.json")
	if err != nil {
		return nil, fmt.Errorf("iiif: compile schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate implements ManifestValidator.
func (v *SchemaValidator) Validate(doc any) []Issue {
	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []Issue{{Message: err.Error()}}
	}
	var issues []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if len(node.Causes) == 0 {
			issues = append(issues, Issue{
				Location: strings.TrimSpace(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, c := range node.Causes {
			walk(c)
		}
	}
	walk(verr)
	return issues
}

// ValidateManifests checks every <objectsDir>/<id>/manifest.json and returns
// one warning per invalid or unreadable manifest, listing at most MaxIssues
// issues each. A nil validator skips validation.
func ValidateManifests(store storage.Reader, objectsDir string, v ManifestValidator) ([]string, error) {
	if v == nil || !store.Exists(objectsDir) {
		return nil, nil
	}
	dirs, err := store.Dirs(objectsDir)
	if err != nil {
		return nil, err
	}

	var warnings []string
	for _, id := range dirs {
		p := path.Join(objectsDir, id, ManifestFile)
		if !store.Exists(p) {
			continue
		}
		data, err := store.Read(p)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("[iiif] %s: %v", id, err))
			continue
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			warnings = append(warnings, fmt.Sprintf("[iiif] %s: manifest is not valid JSON: %v", id, err))
			continue
		}
		issues := v.Validate(doc)
		if len(issues) == 0 {
			continue
		}
		shown := issues[:min(len(issues), MaxIssues)]
		parts := make([]string, len(shown))
		for i, is := range shown {
			parts[i] = is.String()
		}
		warnings = append(warnings, fmt.Sprintf("[iiif] %s: invalid manifest (%d issues): %s",
			id, len(issues), strings.Join(parts, "; ")))
	}
	return warnings, nil
}
