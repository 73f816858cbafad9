package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/storybundle/internal/apperr"
	"github.com/starford/storybundle/internal/models"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Advisory kinds.
const (
	KindWarning  = "warning"
	KindAdvisory = "advisory"
)

// Run is one build of a version.
type Run struct {
	ID         string
	Version    string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// BundleRow is the catalog entry of a written bundle.
type BundleRow struct {
	Version   string
	Lang      string
	Path      string
	Checksum  string
	RunID     string
	Generated string
	Projects  int
	Objects   int
	Stories   int
	Glossary  int
	UpdatedAt time.Time
}

// Advisory is one warning or validator advisory attached to a bundle.
type Advisory struct {
	Kind    string
	Message string
}

// TermHit is one glossary search result.
type TermHit struct {
	Version string
	Lang    string
	TermID  string
	Term    string
	Snippet string
}

type termRow struct {
	id, term, body string
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// plainText strips markup from rendered glossary HTML for indexing.
func plainText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(tagRe.ReplaceAllString(s, " "))), " ")
}

// StartRun records the start of a build and returns its id.
func (db *DB) StartRun(version string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(`INSERT INTO runs (id, version, status, started_at) VALUES (?, ?, ?, ?)`,
		id, version, RunRunning, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("catalog: start run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run as succeeded, or failed with runErr.
func (db *DB) FinishRun(id string, runErr error) error {
	status, msg := RunSucceeded, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	_, err := db.conn.Exec(`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, msg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("catalog: finish run: %w", err)
	}
	return nil
}

// LastRun returns the most recent run of version.
func (db *DB) LastRun(version string) (*Run, error) {
	var r Run
	var finished sql.NullTime
	err := db.conn.QueryRow(`
		SELECT id, version, status, error, started_at, finished_at
		FROM runs WHERE version = ?
		ORDER BY started_at DESC, rowid DESC LIMIT 1
	`, version).Scan(&r.ID, &r.Version, &r.Status, &r.Error, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: last run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return &r, nil
}

// RecordBundle stores a written bundle, its glossary, and replaces its
// warnings and advisories, within a transaction.
func (db *DB) RecordBundle(row BundleRow, b *models.Bundle, warnings, advisories []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := upsertBundle(tx, row, b); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM advisories WHERE version = ? AND lang = ?`, row.Version, row.Lang)
	stmt, err := tx.Prepare(`INSERT INTO advisories (version, lang, seq, kind, message) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("catalog: prepare advisory insert: %w", err)
	}
	defer stmt.Close()
	seq := 0
	for _, group := range []struct {
		kind string
		msgs []string
	}{{KindWarning, warnings}, {KindAdvisory, advisories}} {
		for _, m := range group.msgs {
			if _, err := stmt.Exec(row.Version, row.Lang, seq, group.kind, m); err != nil {
				return fmt.Errorf("catalog: insert advisory: %w", err)
			}
			seq++
		}
	}

	return tx.Commit()
}

// upsertBundle writes the bundle row and replaces its glossary terms.
func upsertBundle(tx *sql.Tx, row BundleRow, b *models.Bundle) error {
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	if b != nil {
		row.Generated = b.Meta.Generated
		row.Projects = len(b.Project)
		row.Objects = len(b.Objects)
		row.Stories = len(b.Stories)
		row.Glossary = len(b.Glossary)
	}
	_, err := tx.Exec(`
		INSERT INTO bundles (version, lang, path, checksum, run_id, generated,
		                     projects, objects, stories, glossary, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(version, lang) DO UPDATE SET
			path       = excluded.path,
			checksum   = excluded.checksum,
			run_id     = excluded.run_id,
			generated  = excluded.generated,
			projects   = excluded.projects,
			objects    = excluded.objects,
			stories    = excluded.stories,
			glossary   = excluded.glossary,
			updated_at = excluded.updated_at
	`, row.Version, row.Lang, row.Path, row.Checksum, row.RunID, row.Generated,
		row.Projects, row.Objects, row.Stories, row.Glossary, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert bundle: %w", err)
	}

	_, _ = tx.Exec(`DELETE FROM terms WHERE version = ? AND lang = ?`, row.Version, row.Lang)
	if b == nil {
		return ftsReplaceTerms(tx, row.Version, row.Lang, nil)
	}
	terms := make([]termRow, 0, len(b.Glossary))
	for id, t := range b.Glossary {
		tr := termRow{id: id, term: t.Term, body: plainText(t.Content)}
		terms = append(terms, tr)
		if _, err := tx.Exec(`INSERT INTO terms (version, lang, term_id, term, body) VALUES (?, ?, ?, ?, ?)`,
			row.Version, row.Lang, tr.id, tr.term, tr.body); err != nil {
			return fmt.Errorf("catalog: insert term: %w", err)
		}
	}
	return ftsReplaceTerms(tx, row.Version, row.Lang, terms)
}

// DeleteBundle removes a bundle with its terms and advisories.
func (db *DB) DeleteBundle(version, lang string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, version, lang)
	_, _ = tx.Exec(`DELETE FROM terms WHERE version = ? AND lang = ?`, version, lang)
	_, _ = tx.Exec(`DELETE FROM advisories WHERE version = ? AND lang = ?`, version, lang)
	_, _ = tx.Exec(`DELETE FROM bundles WHERE version = ? AND lang = ?`, version, lang)

	return tx.Commit()
}

const bundleColumns = `version, lang, path, checksum, run_id, generated,
	projects, objects, stories, glossary, updated_at`

func scanBundle(s interface{ Scan(...any) error }) (BundleRow, error) {
	var r BundleRow
	err := s.Scan(&r.Version, &r.Lang, &r.Path, &r.Checksum, &r.RunID, &r.Generated,
		&r.Projects, &r.Objects, &r.Stories, &r.Glossary, &r.UpdatedAt)
	return r, err
}

// GetBundle returns the catalog entry of one bundle.
func (db *DB) GetBundle(version, lang string) (*BundleRow, error) {
	r, err := scanBundle(db.conn.QueryRow(
		`SELECT `+bundleColumns+` FROM bundles WHERE version = ? AND lang = ?`, version, lang))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get bundle: %w", err)
	}
	return &r, nil
}

// ListBundles returns bundles ordered by version then language; an empty
// version lists every version.
func (db *DB) ListBundles(version string) ([]BundleRow, error) {
	rows, err := db.conn.Query(`SELECT `+bundleColumns+` FROM bundles
		WHERE (? = '' OR version = ?) ORDER BY version, lang`, version, version)
	if err != nil {
		return nil, fmt.Errorf("catalog: list bundles: %w", err)
	}
	defer rows.Close()

	var out []BundleRow
	for rows.Next() {
		r, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Advisories returns the warnings and advisories of a bundle in report order.
func (db *DB) Advisories(version, lang string) ([]Advisory, error) {
	rows, err := db.conn.Query(`SELECT kind, message FROM advisories
		WHERE version = ? AND lang = ? ORDER BY seq`, version, lang)
	if err != nil {
		return nil, fmt.Errorf("catalog: advisories: %w", err)
	}
	defer rows.Close()

	out := []Advisory{}
	for rows.Next() {
		var a Advisory
		if err := rows.Scan(&a.Kind, &a.Message); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AllChecksums returns the stored checksum of every bundle keyed by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM bundles`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
