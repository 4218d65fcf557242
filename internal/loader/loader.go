// Package loader delivers raw dataset payloads into the dataset store. It is
// the boundary collaborator of the index: collection jobs write their output
// as JSON files or a SQLite results database, and the loader replaces the
// corresponding datasets wholesale.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/weft/internal/dataset"
)

// LoadFile parses one JSON file and puts it as the dataset named after the
// file (basename minus extension). Returns the dataset name.
func LoadFile(store *dataset.Store, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read dataset %s: %w", path, err)
	}
	payload, err := oj.Parse(data)
	if err != nil {
		return "", fmt.Errorf("parse dataset json %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	store.Put(name, payload)
	return name, nil
}

// LoadDir loads every *.json file in dir as one dataset each, in lexical
// order. Returns the number of datasets loaded. A directory with no JSON
// files is not an error; the index simply reports missing datasets.
func LoadDir(store *dataset.Store, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dataset dir: %w", err)
	}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		if _, err := LoadFile(store, filepath.Join(dir, entry.Name())); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
