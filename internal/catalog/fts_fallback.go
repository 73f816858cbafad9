//go:build !sqlite_fts5

package catalog

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; term search uses LIKE on the terms table.
	return nil
}

func ftsReplaceTerms(_ *sql.Tx, _, _ string, _ []termRow) error { return nil }

func ftsDelete(_ *sql.Tx, _, _ string) {}

// SearchTerms performs a LIKE-based search over glossary titles and bodies
// (fallback when FTS5 is not compiled in). Empty version or lang match every
// value.
func (db *DB) SearchTerms(query, version, lang string, limit int) ([]TermHit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT version, lang, term_id, term, substr(body, 1, 200)
		FROM terms
		WHERE (term LIKE ? OR body LIKE ? OR term_id LIKE ?)
		  AND (? = '' OR version = ?)
		  AND (? = '' OR lang = ?)
		ORDER BY version, lang, term_id
		LIMIT ?
	`, like, like, like, version, version, lang, lang, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: search: %w", err)
	}
	defer rows.Close()

	var out []TermHit
	for rows.Next() {
		var h TermHit
		if err := rows.Scan(&h.Version, &h.Lang, &h.TermID, &h.Term, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
