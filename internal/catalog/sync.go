package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/storybundle/internal/checksum"
	"github.com/starford/storybundle/internal/models"
	"github.com/starford/storybundle/internal/storage"
)

// Sync walks <demosDir>/v*/<lang>/<bundleName> and brings the catalog up to
// date:
//   - new/changed bundles are decoded and upserted (advisories are kept)
//   - bundles removed from disk are deleted from the catalog
func Sync(db *DB, store storage.Reader, demosDir, bundleName string, logger *slog.Logger) error {
	found, err := bundleFiles(store, demosDir, bundleName)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(found))
	for _, f := range found {
		disk[f.path] = struct{}{}

		data, err := store.Read(f.path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", f.path), slog.String("error", err.Error()))
			continue
		}
		cs := checksum.Sum(data)
		if checksums[f.path] == cs {
			continue
		}
		if err := indexBundle(db, f, cs, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", f.path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", f.path))
		}
	}

	// Remove stale entries.
	rows, err := db.ListBundles("")
	if err != nil {
		return err
	}
	for _, r := range rows {
		if _, ok := disk[r.Path]; ok {
			continue
		}
		if err := db.DeleteBundle(r.Version, r.Lang); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", r.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("path", r.Path))
		}
	}

	return nil
}

type bundleFile struct {
	version, lang, path string
}

func bundleFiles(store storage.Reader, demosDir, bundleName string) ([]bundleFile, error) {
	if !store.Exists(demosDir) {
		return nil, nil
	}
	versionDirs, err := store.Dirs(demosDir)
	if err != nil {
		return nil, err
	}
	var out []bundleFile
	for _, vd := range versionDirs {
		if !strings.HasPrefix(vd, "v") {
			continue
		}
		langs, err := store.Dirs(path.Join(demosDir, vd))
		if err != nil {
			return nil, err
		}
		for _, lang := range langs {
			p := path.Join(demosDir, vd, lang, bundleName)
			if store.Exists(p) {
				out = append(out, bundleFile{version: vd[1:], lang: lang, path: p})
			}
		}
	}
	return out, nil
}

// indexBundle decodes data and upserts it without touching advisories.
func indexBundle(db *DB, f bundleFile, cs string, data []byte) error {
	var b models.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := BundleRow{Version: f.version, Lang: f.lang, Path: f.path, Checksum: cs}
	if err := upsertBundle(tx, row, &b); err != nil {
		return err
	}
	return tx.Commit()
}
