package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soundprediction/graphfuse/pkg/relation"
	"github.com/soundprediction/graphfuse/pkg/types"
)

// DocumentFiles holds the four inputs of one document.
type DocumentFiles struct {
	Name              string
	BodyChunks        []types.Chunk
	ReferenceChunks   []types.Chunk
	BodyEntities      types.ExtractionMap
	ReferenceEntities types.ExtractionMap
}

// ListDocuments returns the base names of documents with a main-body chunk file.
func (s *FileStore) ListDocuments() ([]string, error) {
	names, err := listJSON(s.layout.ChunksDir, func(name string) bool {
		return strings.HasSuffix(name, MainBodySuffix)
	})
	if err != nil {
		return nil, err
	}
	docs := make([]string, 0, len(names))
	for _, name := range names {
		if base := strings.TrimSuffix(name, MainBodySuffix); base != "" {
			docs = append(docs, base)
		}
	}
	return docs, nil
}

// LoadDocument reads the body and reference chunks of a document and their
// extraction maps. Any missing file yields ErrMissingInput.
func (s *FileStore) LoadDocument(name string) (*DocumentFiles, error) {
	doc := &DocumentFiles{Name: name}
	var err error

	if doc.BodyChunks, err = s.LoadChunks(name + MainBodySuffix); err != nil {
		return nil, err
	}
	if doc.ReferenceChunks, err = s.LoadChunks(name + ReferencesSuffix); err != nil {
		return nil, err
	}
	if doc.BodyEntities, err = s.LoadExtractionMap(name + MainBodySuffix); err != nil {
		return nil, err
	}
	if doc.ReferenceEntities, err = s.LoadExtractionMap(name + ReferencesSuffix); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListRelationFiles returns every relation file, per-chunk-file and
// per-document reference files alike.
func (s *FileStore) ListRelationFiles() ([]string, error) {
	return listJSON(s.layout.RelationshipDir, nil)
}

// LoadRelations reads a relation file. The int return counts items that
// were not triples.
func (s *FileStore) LoadRelations(name string) ([]types.Triple, int, error) {
	data, err := s.readFile(s.layout.RelationshipDir, name)
	if err != nil {
		return nil, 0, err
	}
	triples, skipped, err := relation.DecodeTriples(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", name, err)
	}
	return triples, skipped, nil
}

// WriteRelations replaces a relation file.
func (s *FileStore) WriteRelations(name string, triples []types.Triple) error {
	return s.writeJSON(s.layout.RelationshipDir, name, triples)
}

// WriteRefRelations replaces the reference relation file of a document.
func (s *FileStore) WriteRefRelations(doc string, triples []types.Triple) error {
	return s.writeJSON(s.layout.RelationshipDir, doc+RefRelationsSuffix, triples)
}

// WriteFusedRelations replaces the fused relation set.
func (s *FileStore) WriteFusedRelations(triples []types.Triple) error {
	if triples == nil {
		triples = []types.Triple{}
	}
	return s.writeJSON(s.layout.KGRelationDir, FusedRelationsFile, triples)
}

// LoadFusedRelations reads the fused relation set.
func (s *FileStore) LoadFusedRelations() ([]types.Triple, error) {
	data, err := s.readFile(s.layout.KGRelationDir, FusedRelationsFile)
	if err != nil {
		return nil, err
	}
	var triples []types.Triple
	if err := json.Unmarshal(data, &triples); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", FusedRelationsFile, err)
	}
	return triples, nil
}

func entityFile(t types.EntityType) string {
	return string(t) + ".json"
}

// LoadRawEntities reads the extracted records of one entity type. The int
// return counts list items that were not objects.
func (s *FileStore) LoadRawEntities(t types.EntityType) ([]types.Entity, int, error) {
	return s.loadEntities(s.layout.EntityDir, t)
}

// LoadFusedEntities reads the fused records of one entity type.
func (s *FileStore) LoadFusedEntities(t types.EntityType) ([]types.Entity, int, error) {
	return s.loadEntities(s.layout.KGEntityDir, t)
}

// WriteFusedEntities replaces the fused records of one entity type.
func (s *FileStore) WriteFusedEntities(t types.EntityType, records []types.Entity) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", types.ErrUnknownEntityType, t)
	}
	if records == nil {
		records = []types.Entity{}
	}
	return s.writeJSON(s.layout.KGEntityDir, entityFile(t), records)
}

// loadEntities decodes numbers as json.Number so large integers survive.
func (s *FileStore) loadEntities(dir string, t types.EntityType) ([]types.Entity, int, error) {
	if !t.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", types.ErrUnknownEntityType, t)
	}
	data, err := s.readFile(dir, entityFile(t))
	if err != nil {
		return nil, 0, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s entities: %w", t, err)
	}

	records := make([]types.Entity, 0, len(items))
	skipped := 0
	for _, item := range items {
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()
		var record types.Entity
		if err := dec.Decode(&record); err != nil || record == nil {
			skipped++
			continue
		}
		records = append(records, record)
	}
	return records, skipped, nil
}
