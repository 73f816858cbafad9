package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionNotFound = errors.New("version directory not found")
	ErrNoContent       = errors.New("no language produced content")
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrBusy            = errors.New("build already running")
)
