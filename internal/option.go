package internal

import (
	"io"
	"time"

	"github.com/starford/storybundle/internal/iiif"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	pyramids  iiif.PyramidBuilder
	now       func() time.Time
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sets where the JSON logger writes; stdout by default. The
// MCP server logs to stderr because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithPyramidBuilder replaces the libvips tile builder.
func WithPyramidBuilder(b iiif.PyramidBuilder) Option {
	return func(a *application) {
		a.pyramids = b
	}
}

// WithClock sets the time source stamped into bundle metadata.
func WithClock(now func() time.Time) Option {
	return func(a *application) {
		a.now = now
	}
}
