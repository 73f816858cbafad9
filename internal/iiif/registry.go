// Package iiif covers self-hosted zoomable images: the registry of objects
// with local tile pyramids, derived IIIF URLs, Presentation 3 manifests,
// tiling through an external builder, and manifest validation.
package iiif

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/starford/storybundle/internal/columns"
	"github.com/starford/storybundle/internal/records"
	"github.com/starford/storybundle/internal/storage"
)

// Registry is the read-only set of object ids that have locally generated
// image pyramids. It is loaded once per run and shared by all languages.
type Registry struct {
	ids     map[string]struct{}
	entries []records.RegistryEntry
}

// NewRegistry builds a registry from parsed entries; a later duplicate id
// replaces the earlier entry.
func NewRegistry(entries []records.RegistryEntry) *Registry {
	r := &Registry{ids: make(map[string]struct{}, len(entries))}
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		if i, ok := index[e.ObjectID]; ok {
			r.entries[i] = e
			continue
		}
		index[e.ObjectID] = len(r.entries)
		r.ids[e.ObjectID] = struct{}{}
		r.entries = append(r.entries, e)
	}
	return r
}

// LoadRegistry reads the registry table at path. A missing table yields an
// empty registry and no error; an unreadable one yields an empty registry
// and the error.
func LoadRegistry(store storage.Reader, path string) (*Registry, error) {
	data, err := store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewRegistry(nil), nil
		}
		return NewRegistry(nil), err
	}
	recs, err := records.ReadRows(bytes.NewReader(data), columns.KindRegistry)
	if err != nil {
		return NewRegistry(nil), fmt.Errorf("iiif: registry %s: %w", path, err)
	}
	return NewRegistry(records.ParseRegistry(recs)), nil
}

// Contains reports whether id is self-hosted.
func (r *Registry) Contains(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.ids[id]
	return ok
}

// Entries returns registry rows in table order.
func (r *Registry) Entries() []records.RegistryEntry {
	if r == nil {
		return nil
	}
	return r.entries
}

// Len returns the number of registered objects.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}
