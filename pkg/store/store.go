// Package store reads and writes the intermediate JSON files exchanged
// between pipeline stages.
//
// Every write replaces the whole file: content goes to a temporary file in
// the same directory which is then renamed over the target, so readers see
// either the previous file or the new one.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/soundprediction/graphfuse/pkg/config"
	"github.com/soundprediction/graphfuse/pkg/types"
)

var (
	// ErrMissingInput is returned when an upstream file or directory does not exist.
	ErrMissingInput = errors.New("missing input")
	// ErrInvalidName is returned for file names containing path traversal or separators.
	ErrInvalidName = errors.New("invalid file name: contains path traversal or invalid characters")
)

// File naming of per-document chunk and extraction-map files.
const (
	MainBodySuffix     = "_abstract_main_body.json"
	ReferencesSuffix   = "_info_references.json"
	RefRelationsSuffix = "_ref_relations.json"
	FusedRelationsFile = "all_relations_fused.json"
)

// Layout locates the stage directories.
type Layout struct {
	ChunksDir        string
	ExtractionMapDir string
	RelationshipDir  string
	EntityDir        string
	KGEntityDir      string
	KGRelationDir    string
}

// NewLayout resolves the configured directories against the data directory.
func NewLayout(cfg config.PathsConfig) Layout {
	resolve := func(dir string) string {
		if filepath.IsAbs(dir) || cfg.DataDir == "" {
			return dir
		}
		return filepath.Join(cfg.DataDir, dir)
	}
	return Layout{
		ChunksDir:        resolve(cfg.ChunksDir),
		ExtractionMapDir: resolve(cfg.ExtractionMapDir),
		RelationshipDir:  resolve(cfg.RelationshipDir),
		EntityDir:        resolve(cfg.EntityDir),
		KGEntityDir:      resolve(cfg.KGEntityDir),
		KGRelationDir:    resolve(cfg.KGRelationDir),
	}
}

// FileStore reads and writes stage files under a Layout.
type FileStore struct {
	layout Layout
}

// NewFileStore creates a file store. Directories are created on first write.
func NewFileStore(layout Layout) *FileStore {
	return &FileStore{layout: layout}
}

// Layout returns the store's directory layout.
func (s *FileStore) Layout() Layout {
	return s.layout
}

// validateName checks that name is a plain file name.
func validateName(name string) error {
	if name == "" || name == "." {
		return ErrInvalidName
	}
	if strings.Contains(name, "..") {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	if strings.ContainsRune(name, '\x00') {
		return ErrInvalidName
	}
	return nil
}

func (s *FileStore) path(dir, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", fmt.Errorf("%q: %w", name, err)
	}
	return filepath.Join(dir, name), nil
}

// readFile reads dir/name, mapping a missing file to ErrMissingInput.
func (s *FileStore) readFile(dir, name string) ([]byte, error) {
	path, err := s.path(dir, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// writeJSON atomically replaces dir/name with the indented JSON encoding of v.
// Non-ASCII text is written as-is.
func (s *FileStore) writeJSON(dir, name string, v any) error {
	path, err := s.path(dir, name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}
	return nil
}

// listJSON returns the sorted names of the .json files in dir.
func listJSON(dir string, keep func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, dir)
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		if keep != nil && !keep(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListExtractionMaps returns the names of the extraction-map files. Each has
// a chunk file of the same name.
func (s *FileStore) ListExtractionMaps() ([]string, error) {
	return listJSON(s.layout.ExtractionMapDir, nil)
}

// LoadChunks reads a chunk file.
func (s *FileStore) LoadChunks(name string) ([]types.Chunk, error) {
	data, err := s.readFile(s.layout.ChunksDir, name)
	if err != nil {
		return nil, err
	}
	var chunks []types.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks %s: %w", name, err)
	}
	return chunks, nil
}

// LoadExtractionMap reads an extraction-map file and indexes it by chunk id.
func (s *FileStore) LoadExtractionMap(name string) (types.ExtractionMap, error) {
	data, err := s.readFile(s.layout.ExtractionMapDir, name)
	if err != nil {
		return nil, err
	}
	var entries []types.ExtractionMapEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode extraction map %s: %w", name, err)
	}
	return types.NewExtractionMap(entries), nil
}
