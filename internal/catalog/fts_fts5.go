//go:build sqlite_fts5

package catalog

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS terms_fts USING fts5(
			version UNINDEXED,
			lang UNINDEXED,
			term_id UNINDEXED,
			term,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsReplaceTerms(tx *sql.Tx, version, lang string, terms []termRow) error {
	_, _ = tx.Exec(`DELETE FROM terms_fts WHERE version = ? AND lang = ?`, version, lang)
	for _, t := range terms {
		_, err := tx.Exec(`INSERT INTO terms_fts (version, lang, term_id, term, body) VALUES (?, ?, ?, ?, ?)`,
			version, lang, t.id, t.term, t.body)
		if err != nil {
			return fmt.Errorf("catalog: upsert fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, version, lang string) {
	_, _ = tx.Exec(`DELETE FROM terms_fts WHERE version = ? AND lang = ?`, version, lang)
}

// SearchTerms runs an FTS5 query over glossary titles and bodies. Empty
// version or lang match every value.
func (db *DB) SearchTerms(query, version, lang string, limit int) ([]TermHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT version, lang, term_id, term,
		       snippet(terms_fts, 4, '<b>', '</b>', '...', 32)
		FROM terms_fts
		WHERE terms_fts MATCH ?
		  AND (? = '' OR version = ?)
		  AND (? = '' OR lang = ?)
		ORDER BY rank
		LIMIT ?
	`, query, version, version, lang, lang, limit)
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
