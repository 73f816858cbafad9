// Package records turns normalized spreadsheet rows into typed content records.
//
// Parsers never fail a batch because of one bad row: rows with an empty or
// commented-out key, or with a required number that does not parse, are
// skipped silently.
package records

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/starford/storybundle/internal/columns"
)

// CommentMarker starts a row that authors have commented out.
const CommentMarker = "#"

// ErrInvalidEncoding reports a table that is not valid UTF-8.
var ErrInvalidEncoding = errors.New("table is not valid UTF-8")

// Record is one normalized data row with its 1-based line in the source.
type Record struct {
	Line      int
	Row       columns.Row
	Conflicts []columns.Conflict
}

// ReadRows decodes a CSV table and normalizes every row for kind. Short rows
// are padded with empty values and surplus cells are dropped. A table that is
// not UTF-8 yields ErrInvalidEncoding and no rows.
func ReadRows(r io.Reader, kind columns.Kind) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("records: read: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("records: %w", ErrInvalidEncoding)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("records: read header: %w", err)
	}

	var out []Record
	for {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("records: read row: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(cells) {
			continue
		}
		raw := make(map[string]string, len(header))
		for i, h := range header {
			if strings.TrimSpace(h) == "" {
				continue
			}
			if i < len(cells) {
				raw[h] = cells[i]
			} else {
				raw[h] = ""
			}
		}
		row, conflicts := columns.Normalize(kind, raw)
		out = append(out, Record{Line: line, Row: row, Conflicts: conflicts})
	}
	return out, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// skipKey reports whether a primary key value disqualifies the row.
func skipKey(v string) bool {
	return v == "" || strings.HasPrefix(v, CommentMarker)
}

func parseInt(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	return n, err == nil
}

// parseFloat returns def for an empty value and false for a malformed one.
func parseFloat(v string, def float64) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ConflictWarnings formats alias conflicts of a table for the warnings list.
func ConflictWarnings(table string, recs []Record) []string {
	var out []string
	for _, rec := range recs {
		for _, c := range rec.Conflicts {
			out = append(out, fmt.Sprintf("%s line %d: columns for %q disagree, kept %q and ignored %q",
				table, rec.Line, c.Field, c.Kept, c.Dropped))
		}
	}
	return out
}
