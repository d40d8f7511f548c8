package graphfuse

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soundprediction/graphfuse/pkg/fusion"
	"github.com/soundprediction/graphfuse/pkg/importer"
	"github.com/soundprediction/graphfuse/pkg/linker"
	"github.com/soundprediction/graphfuse/pkg/nlp"
	"github.com/soundprediction/graphfuse/pkg/relation"
	"github.com/soundprediction/graphfuse/pkg/types"
)

// ExtractReport totals relation extraction over all chunk files.
type ExtractReport struct {
	Files        int      `json:"files" yaml:"files"`
	SkippedFiles int      `json:"skipped_files" yaml:"skipped_files"`
	Chunks       int      `json:"chunks" yaml:"chunks"`
	Calls        int      `json:"calls" yaml:"calls"`
	Skipped      int      `json:"skipped_chunks" yaml:"skipped_chunks"`
	Malformed    int      `json:"malformed" yaml:"malformed"`
	Dropped      int      `json:"dropped" yaml:"dropped"`
	Triples      int      `json:"triples" yaml:"triples"`
	Written      []string `json:"written,omitempty" yaml:"written,omitempty"`
}

// Add folds the result of one chunk file into the report.
func (r *ExtractReport) Add(res *relation.ExtractResult) {
	r.Files++
	r.Chunks += res.Chunks
	r.Calls += res.Calls
	r.Skipped += res.Skipped
	r.Malformed += res.Malformed
	r.Dropped += res.Dropped
	r.Triples += len(res.Triples)
}

// LinkReport totals reference linking over all documents.
type LinkReport struct {
	Documents             int      `json:"documents" yaml:"documents"`
	SkippedDocuments      int      `json:"skipped_documents" yaml:"skipped_documents"`
	Calls                 int      `json:"calls" yaml:"calls"`
	Triples               int      `json:"triples" yaml:"triples"`
	SkippedNoCitations    int      `json:"skipped_no_citations" yaml:"skipped_no_citations"`
	SkippedUnresolved     int      `json:"skipped_unresolved" yaml:"skipped_unresolved"`
	SkippedNoEntities     int      `json:"skipped_no_entities" yaml:"skipped_no_entities"`
	SkippedReferenceEmpty int      `json:"skipped_reference_empty" yaml:"skipped_reference_empty"`
	Malformed             int      `json:"malformed" yaml:"malformed"`
	Dropped               int      `json:"dropped" yaml:"dropped"`
	Written               []string `json:"written,omitempty" yaml:"written,omitempty"`
}

// Add folds the result of one document into the report.
func (r *LinkReport) Add(res *linker.Result) {
	r.Documents++
	r.Calls += res.Calls
	r.Triples += len(res.Triples)
	r.SkippedNoCitations += res.SkippedNoCitations
	r.SkippedUnresolved += res.SkippedUnresolved
	r.SkippedNoEntities += res.SkippedNoEntities
	r.SkippedReferenceEmpty += res.SkippedReferenceEmpty
	r.Malformed += res.Malformed
	r.Dropped += res.Dropped
}

// Report collects the results of a full run.
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Extract   *ExtractReport                      `json:"extract,omitempty" yaml:"extract,omitempty"`
	Link      *LinkReport                         `json:"link,omitempty" yaml:"link,omitempty"`
	Relations *relation.DedupeResult              `json:"relations,omitempty" yaml:"relations,omitempty"`
	Entities  map[types.EntityType]*fusion.Result `json:"entities,omitempty" yaml:"entities,omitempty"`
	Import    *importer.Report                    `json:"import,omitempty" yaml:"import,omitempty"`
	Usage     *nlp.UsageTotals                    `json:"usage,omitempty" yaml:"usage,omitempty"`
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// SaveYAML writes the report to path, creating parent directories.
func (r *Report) SaveYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := r.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
