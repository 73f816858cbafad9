package catalog

import "github.com/starford/storybundle/internal/models"

// Catalog defines the catalog operations used by the API and the build
// pipeline. Consumers depend on this interface rather than on *DB.
type Catalog interface {
	StartRun(version string) (string, error)
	FinishRun(id string, runErr error) error
	LastRun(version string) (*Run, error)
	RecordBundle(row BundleRow, b *models.Bundle, warnings, advisories []string) error
	DeleteBundle(version, lang string) error
	GetBundle(version, lang string) (*BundleRow, error)
	ListBundles(version string) ([]BundleRow, error)
	Advisories(version, lang string) ([]Advisory, error)
	SearchTerms(query, version, lang string, limit int) ([]TermHit, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
