package iiif

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/starford/storybundle/internal/storage"
)

// Size is one pre-rendered resolution.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SizeDescriptor is the subset of an image service info.json used here.
type SizeDescriptor struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Sizes  []Size `json:"sizes"`
}

// Largest returns the first sizes entry, which tiling tools emit as the
// largest available width.
func (d *SizeDescriptor) Largest() (Size, bool) {
	if d == nil || len(d.Sizes) == 0 {
		return Size{}, false
	}
	return d.Sizes[0], true
}

// SizeSource reads the size descriptor of a tiled object.
type SizeSource interface {
	Sizes(objectID string) (*SizeDescriptor, error)
}

// InfoFile is the side-channel file written next to each tile pyramid.
const InfoFile = "info.json"

// FileSizes reads <Dir>/<id>/info.json from the content tree.
type FileSizes struct {
	Store storage.Reader
	Dir   string
}

// Sizes implements SizeSource.
func (f FileSizes) Sizes(objectID string) (*SizeDescriptor, error) {
	return ReadInfo(f.Store, path.Join(f.Dir, objectID, InfoFile))
}

// ReadInfo decodes a size descriptor file.
func ReadInfo(store storage.Reader, p string) (*SizeDescriptor, error) {
	data, err := store.Read(p)
	if err != nil {
		return nil, err
	}
	var d SizeDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("iiif: decode %s: %w", p, err)
	}
	return &d, nil
}
