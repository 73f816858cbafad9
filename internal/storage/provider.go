// Package storage defines the content-tree file-system abstraction.
package storage

// Reader is the read side of the content tree, used by the parsers and the
// bundle assembler.
type Reader interface {
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Exists reports whether path names an existing file or directory.
	Exists(path string) bool
	// Files returns the names of regular files in dir ending with suffix, sorted.
	Files(dir, suffix string) ([]string, error)
	// Dirs returns the names of subdirectories of dir, sorted, skipping dot-dirs.
	Dirs(dir string) ([]string, error)
}

// Provider is the interface for content-tree file operations.
type Provider interface {
	Reader
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Remove deletes the file or directory tree at path.
	Remove(path string) error
	// Abs returns the absolute file-system path for path.
	Abs(path string) (string, error)
}
