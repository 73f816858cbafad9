// Package versions maintains the index of versions that have at least one
// built bundle.
package versions

import (
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/storybundle/internal/models"
	"github.com/starford/storybundle/internal/storage"
)

// IndexFile is written directly below the demos directory.
const IndexFile = "versions.json"

// Scan returns the versions under demosDir (directories named v<version>)
// where at least one language directory holds bundleName. An empty languages
// list accepts every language directory. The result is unsorted.
func Scan(store storage.Reader, demosDir string, languages []string, bundleName string) ([]string, error) {
	if !store.Exists(demosDir) {
		return nil, nil
	}
	dirs, err := store.Dirs(demosDir)
	if err != nil {
		return nil, fmt.Errorf("versions: scan: %w", err)
	}

	var out []string
	for _, d := range dirs {
		if !strings.HasPrefix(d, "v") || len(d) == 1 {
			continue
		}
		langs := languages
		if len(langs) == 0 {
			if langs, err = store.Dirs(path.Join(demosDir, d)); err != nil {
				return nil, fmt.Errorf("versions: scan %s: %w", d, err)
			}
		}
		for _, lang := range langs {
			if store.Exists(path.Join(demosDir, d, lang, bundleName)) {
				out = append(out, d[1:])
				break
			}
		}
	}
	return out, nil
}

// Key parses a dotted version into its numeric components. A version with
// any non-numeric component sorts as 0.0.0.
func Key(v string) []int {
	parts := strings.Split(v, ".")
	key := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return []int{0, 0, 0}
		}
		key[i] = n
	}
	return key
}

// Sort orders versions by numeric key, ascending. Equal keys keep their order.
func Sort(vs []string) {
	slices.SortStableFunc(vs, func(a, b string) int {
		return slices.Compare(Key(a), Key(b))
	})
}

// Build scans, sorts and atomically writes <demosDir>/versions.json. Nothing
// is written when no version has a bundle.
func Build(store storage.Provider, demosDir string, languages []string, bundleName string) ([]string, error) {
	vs, err := Scan(store, demosDir, languages, bundleName)
	if err != nil || len(vs) == 0 {
		return nil, err
	}
	Sort(vs)

	data, err := json.MarshalIndent(models.VersionIndex{Versions: vs}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("versions: encode: %w", err)
	}
	if err := store.Write(path.Join(demosDir, IndexFile), append(data, '\n')); err != nil {
		return nil, fmt.Errorf("versions: write: %w", err)
	}
	return vs, nil
}

// Read returns the versions listed in <demosDir>/versions.json.
func Read(store storage.Reader, demosDir string) ([]string, error) {
	data, err := store.Read(path.Join(demosDir, IndexFile))
	if err != nil {
		return nil, err
	}
	var idx models.VersionIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("versions: decode: %w", err)
	}
	return idx.Versions, nil
}
