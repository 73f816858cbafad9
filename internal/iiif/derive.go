package iiif

import (
	"fmt"

	"github.com/starford/storybundle/internal/models"
)

// Deriver fills source_url and thumbnail for self-hosted objects. Authored
// values always win.
type Deriver struct {
	URLs     URLs
	Registry *Registry
	Sizes    SizeSource
}

// Apply derives missing fields of obj in place. The returned error reports a
// side-channel read failure; obj is still usable and its thumbnail stays unset.
func (d *Deriver) Apply(obj *models.Object) error {
	if d == nil || !d.Registry.Contains(obj.ObjectID) {
		return nil
	}
	if obj.SourceURL == "" {
		obj.SourceURL = d.URLs.Manifest(obj.ObjectID)
	}
	if obj.Thumbnail != "" || d.Sizes == nil {
		return nil
	}
	desc, err := d.Sizes.Sizes(obj.ObjectID)
	if err != nil {
		return fmt.Errorf("could not read size descriptor for %s: %w", obj.ObjectID, err)
	}
	if largest, ok := desc.Largest(); ok && largest.Width > 0 {
		obj.Thumbnail = d.URLs.Thumbnail(obj.ObjectID, largest.Width)
	}
	return nil
}
