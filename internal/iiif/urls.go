package iiif

import (
	"fmt"
	"strings"
)

// URLs builds public IIIF URLs below a site base URL.
type URLs struct {
	Base string
}

// NewURLs trims any trailing slash from base.
func NewURLs(base string) URLs {
	return URLs{Base: strings.TrimRight(base, "/")}
}

// ObjectsBase is the IIIF base published in every bundle.
func (u URLs) ObjectsBase() string { return u.Base + "/iiif/objects" }

// Service is the image service id of an object.
func (u URLs) Service(id string) string { return u.ObjectsBase() + "/" + id }

// Manifest is the Presentation manifest URL of an object.
func (u URLs) Manifest(id string) string { return u.Service(id) + "/manifest.json" }

// Thumbnail is a full-region image request at the given width.
func (u URLs) Thumbnail(id string, width int) string {
	return fmt.Sprintf("%s/full/%d,/0/default.jpg", u.Service(id), width)
}

// BaseImage is the copied full-resolution JPEG served next to the tiles.
func (u URLs) BaseImage(id string) string { return fmt.Sprintf("%s/%s.jpg", u.Service(id), id) }

// Canvas, Page and Annotation are the resource ids used inside a manifest.
func (u URLs) Canvas(id string) string     { return u.Service(id) + "/canvas" }
func (u URLs) Page(id string) string       { return u.Service(id) + "/page" }
func (u URLs) Annotation(id string) string { return u.Service(id) + "/annotation" }
