package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/soundprediction/graphfuse/pkg/config"
	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(NewLayout(config.PathsConfig{
		DataDir:          t.TempDir(),
		ChunksDir:        "raw/overview/json",
		ExtractionMapDir: "extraction_map",
		RelationshipDir:  "relationship",
		EntityDir:        "entity",
		KGEntityDir:      "KG/entity",
		KGRelationDir:    "KG/relationship",
	}))
}

func writeFile(t *testing.T, dir, name string, v any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}

func TestNewLayout(t *testing.T) {
	layout := NewLayout(config.PathsConfig{
		DataDir:     "./data",
		ChunksDir:   "raw/overview/json",
		KGEntityDir: "/abs/KG/entity",
	})
	assert.Equal(t, filepath.Join("data", "raw", "overview", "json"), layout.ChunksDir)
	assert.Equal(t, "/abs/KG/entity", layout.KGEntityDir)
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"", ".", "../etc/passwd", "a/b.json", `a\b.json`, "a\x00.json"} {
		assert.ErrorIs(t, validateName(name), ErrInvalidName, name)
	}
	assert.NoError(t, validateName("paper_abstract_main_body.json"))
}

func TestDocuments(t *testing.T) {
	s := newTestStore(t)
	layout := s.Layout()

	body := []types.Chunk{{ID: "b1", Content: "TransE [1] embeds triples."}}
	refs := []types.Chunk{{ID: "r1", Content: "[1] Bordes et al."}}
	writeFile(t, layout.ChunksDir, "paper"+MainBodySuffix, body)
	writeFile(t, layout.ChunksDir, "paper"+ReferencesSuffix, refs)
	writeFile(t, layout.ExtractionMapDir, "paper"+MainBodySuffix, []types.ExtractionMapEntry{{ID: "b1", Concept: []string{"TransE"}}})
	writeFile(t, layout.ExtractionMapDir, "paper"+ReferencesSuffix, []types.ExtractionMapEntry{{ID: "r1", Document: []string{"Bordes"}}})
	writeFile(t, layout.ChunksDir, "orphan"+MainBodySuffix, body)
	writeFile(t, layout.ChunksDir, "notes.json", body)

	docs, err := s.ListDocuments()
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan", "paper"}, docs)

	doc, err := s.LoadDocument("paper")
	require.NoError(t, err)
	assert.Equal(t, body, doc.BodyChunks)
	assert.Equal(t, refs, doc.ReferenceChunks)
	assert.Equal(t, []string{"TransE"}, doc.BodyEntities["b1"].Concept)
	assert.Equal(t, []string{"Bordes"}, doc.ReferenceEntities["r1"].Document)

	_, err = s.LoadDocument("orphan")
	assert.ErrorIs(t, err, ErrMissingInput)

	maps, err := s.ListExtractionMaps()
	require.NoError(t, err)
	assert.Len(t, maps, 2)
}

func TestListMissingDirectory(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ListRelationFiles()
	assert.ErrorIs(t, err, ErrMissingInput)
	_, err = s.ListDocuments()
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestRelations(t *testing.T) {
	s := newTestStore(t)

	triples := []types.Triple{
		{Subject: "TransE", Relation: types.RelationIsA, Object: "知识图谱嵌入", ChunkID: "c1"},
	}
	require.NoError(t, s.WriteRelations("paper"+MainBodySuffix, triples))
	require.NoError(t, s.WriteRefRelations("paper", []types.Triple{
		{Subject: "TransE", Relation: types.RelationDescribedIn, Object: "Bordes", MainChunkID: "b1", ReferenceChunkID: "r1"},
	}))

	names, err := s.ListRelationFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"paper" + MainBodySuffix, "paper" + RefRelationsSuffix}, names)

	loaded, skipped, err := s.LoadRelations("paper" + MainBodySuffix)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, triples, loaded)

	raw, err := os.ReadFile(filepath.Join(s.Layout().RelationshipDir, "paper"+MainBodySuffix))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "知识图谱嵌入", "non-ASCII text is not escaped")

	entries, err := os.ReadDir(s.Layout().RelationshipDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(e.Name()), "no temporary files remain")
	}

	assert.ErrorIs(t, s.WriteRelations("../escape.json", triples), ErrInvalidName)
}

func TestFusedRelations(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadFusedRelations()
	assert.ErrorIs(t, err, ErrMissingInput)

	require.NoError(t, s.WriteFusedRelations(nil))
	loaded, err := s.LoadFusedRelations()
	require.NoError(t, err)
	assert.Empty(t, loaded)

	fused := []types.Triple{{Subject: "a", Relation: types.RelationUses, Object: "b"}}
	require.NoError(t, s.WriteFusedRelations(fused))
	loaded, err = s.LoadFusedRelations()
	require.NoError(t, err)
	assert.Equal(t, fused, loaded)
}

func TestEntities(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, os.MkdirAll(s.Layout().EntityDir, 0755))
	raw := `[{"name": "TransE", "year": 2013, "aliases": ["Translating Embeddings"]}, "junk", null, {"name": "RESCAL"}]`
	require.NoError(t, os.WriteFile(filepath.Join(s.Layout().EntityDir, "concept.json"), []byte(raw), 0644))

	records, skipped, err := s.LoadRawEntities(types.ConceptEntityType)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, json.Number("2013"), records[0]["year"])

	_, _, err = s.LoadRawEntities(types.TechnologyEntityType)
	assert.ErrorIs(t, err, ErrMissingInput)
	_, _, err = s.LoadRawEntities(types.EntityType("person"))
	assert.ErrorIs(t, err, types.ErrUnknownEntityType)

	require.NoError(t, s.WriteFusedEntities(types.ConceptEntityType, records))
	fused, skipped, err := s.LoadFusedEntities(types.ConceptEntityType)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, records, fused)

	require.NoError(t, s.WriteFusedEntities(types.ApplicationEntityType, nil))
	empty, _, err := s.LoadFusedEntities(types.ApplicationEntityType)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
