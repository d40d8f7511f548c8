package graphfuse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/graphfuse/pkg/fusion"
	"github.com/soundprediction/graphfuse/pkg/importer"
	"github.com/soundprediction/graphfuse/pkg/linker"
	"github.com/soundprediction/graphfuse/pkg/relation"
	"github.com/soundprediction/graphfuse/pkg/store"
	"github.com/soundprediction/graphfuse/pkg/types"
	"github.com/soundprediction/graphfuse/pkg/utils"
)

// ExtractRelations extracts triples from every chunk file that has an
// extraction map and writes one relation file per chunk file. Files without
// triples are not written.
func (p *Pipeline) ExtractRelations(ctx context.Context) (report *ExtractReport, err error) {
	ctx = p.stageContext(ctx, StageExtractRelations)
	start := time.Now()
	defer func() { p.observe(StageExtractRelations, start, err) }()

	report = &ExtractReport{}
	names, err := p.files.ListExtractionMaps()
	if err != nil {
		if p.skipMissing(ctx, err, "No extraction maps") {
			return report, nil
		}
		return report, fmt.Errorf("failed to list extraction maps: %w", err)
	}

	for _, name := range names {
		chunks, entities, err := p.loadChunkFile(name)
		if err != nil {
			if !p.skipMissing(ctx, err, "Skipping chunk file", "file", name) {
				p.logger.ErrorContext(ctx, "Skipping unreadable chunk file", "file", name, "error", err)
			}
			report.SkippedFiles++
			continue
		}
		if err := p.extractFile(ctx, name, chunks, entities, report); err != nil {
			return report, err
		}
	}

	p.logger.InfoContext(ctx, "Relation extraction finished",
		"files", report.Files, "skipped_files", report.SkippedFiles,
		"calls", report.Calls, "triples", report.Triples)
	if p.metrics != nil {
		p.metrics.RecordOracle(StageExtractRelations, report.Calls, report.Malformed)
		p.metrics.RecordTriples(StageExtractRelations, "extracted", report.Triples)
		p.metrics.RecordTriples(StageExtractRelations, "dropped", report.Dropped)
	}
	return report, nil
}

func (p *Pipeline) loadChunkFile(name string) ([]types.Chunk, types.ExtractionMap, error) {
	chunks, err := p.files.LoadChunks(name)
	if err != nil {
		return nil, nil, err
	}
	entities, err := p.files.LoadExtractionMap(name)
	if err != nil {
		return nil, nil, err
	}
	return chunks, entities, nil
}

func (p *Pipeline) extractFile(ctx context.Context, name string, chunks []types.Chunk, entities types.ExtractionMap, report *ExtractReport) error {
	res, err := p.extractor.Extract(ctx, chunks, entities)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	report.Add(res)

	if len(res.Triples) == 0 {
		p.logger.InfoContext(ctx, "No relations extracted", "file", name)
		return nil
	}
	if err := p.files.WriteRelations(name, res.Triples); err != nil {
		return fmt.Errorf("failed to write relations for %s: %w", name, err)
	}
	report.Written = append(report.Written, name)
	p.logger.InfoContext(ctx, "Relation file persisted", "file", name, "triples", len(res.Triples))
	return nil
}

// LinkReferences links body entities to the entities of the references they
// cite, document by document, and writes one reference relation file per
// document with results. Documents missing any input file are skipped.
func (p *Pipeline) LinkReferences(ctx context.Context) (report *LinkReport, err error) {
	ctx = p.stageContext(ctx, StageLinkReferences)
	start := time.Now()
	defer func() { p.observe(StageLinkReferences, start, err) }()

	report = &LinkReport{}
	docs, err := p.files.ListDocuments()
	if err != nil {
		if p.skipMissing(ctx, err, "No chunk directory") {
			return report, nil
		}
		return report, fmt.Errorf("failed to list documents: %w", err)
	}

	results := make([]*linker.Result, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, name := range docs {
		g.Go(func() (err error) {
			defer utils.RecoverAsError(&err)
			results[i], err = p.linkDocument(gctx, name)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for i, res := range results {
		if res == nil {
			report.SkippedDocuments++
			continue
		}
		report.Add(res)
		if len(res.Triples) > 0 {
			report.Written = append(report.Written, docs[i]+store.RefRelationsSuffix)
		}
	}

	p.logger.InfoContext(ctx, "Reference linking finished",
		"documents", report.Documents, "skipped_documents", report.SkippedDocuments,
		"calls", report.Calls, "triples", report.Triples)
	if p.metrics != nil {
		p.metrics.RecordOracle(StageLinkReferences, report.Calls, report.Malformed)
		p.metrics.RecordTriples(StageLinkReferences, "linked", report.Triples)
		p.metrics.RecordTriples(StageLinkReferences, "dropped", report.Dropped)
	}
	return report, nil
}

// linkDocument returns a nil result for a skipped document.
func (p *Pipeline) linkDocument(ctx context.Context, name string) (*linker.Result, error) {
	files, err := p.files.LoadDocument(name)
	if err != nil {
		if !p.skipMissing(ctx, err, "Skipping document", "document", name) {
			p.logger.ErrorContext(ctx, "Skipping unreadable document", "document", name, "error", err)
		}
		return nil, nil
	}

	res, err := p.linker.LinkDocument(ctx, linker.Document{
		Name:              files.Name,
		BodyChunks:        files.BodyChunks,
		ReferenceChunks:   files.ReferenceChunks,
		BodyEntities:      files.BodyEntities,
		ReferenceEntities: files.ReferenceEntities,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if len(res.Triples) > 0 {
		if err := p.files.WriteRefRelations(name, res.Triples); err != nil {
			return nil, fmt.Errorf("failed to write reference relations for %s: %w", name, err)
		}
		p.logger.InfoContext(ctx, "Reference relation file persisted", "document", name, "triples", len(res.Triples))
	}
	return res, nil
}

// FuseRelations unions every relation file, removes duplicates and writes
// the fused relation set. With no relation files nothing is written.
func (p *Pipeline) FuseRelations(ctx context.Context) (result *relation.DedupeResult, err error) {
	ctx = p.stageContext(ctx, StageFuseRelations)
	start := time.Now()
	defer func() { p.observe(StageFuseRelations, start, err) }()

	names, err := p.files.ListRelationFiles()
	if err != nil && !p.skipMissing(ctx, err, "No relation directory") {
		return nil, fmt.Errorf("failed to list relation files: %w", err)
	}
	if len(names) == 0 {
		p.logger.WarnContext(ctx, "No relation files found")
		empty := relation.Dedupe()
		return &empty, nil
	}

	sources := make([][]types.Triple, 0, len(names))
	for _, name := range names {
		triples, skipped, err := p.files.LoadRelations(name)
		if err != nil {
			p.logger.ErrorContext(ctx, "Skipping unreadable relation file", "file", name, "error", err)
			continue
		}
		if skipped > 0 {
			p.logger.WarnContext(ctx, "Skipped malformed relation entries", "file", name, "count", skipped)
		}
		sources = append(sources, triples)
	}

	res := relation.Dedupe(sources...)
	if err := p.files.WriteFusedRelations(res.Triples); err != nil {
		return &res, fmt.Errorf("failed to write fused relations: %w", err)
	}

	p.logger.InfoContext(ctx, "Fused relations persisted",
		"files", len(sources), "input", res.Input, "unique", res.Unique, "duplicates", res.Duplicates,
		"self_relations", res.SelfRelations, "unknown_types", res.UnknownTypes, "malformed", res.Malformed)
	if p.metrics != nil {
		p.metrics.RecordTriples(StageFuseRelations, "unique", res.Unique)
		p.metrics.RecordTriples(StageFuseRelations, "duplicate", res.Duplicates)
		p.metrics.RecordTriples(StageFuseRelations, "self_relation", res.SelfRelations)
		p.metrics.RecordTriples(StageFuseRelations, "unknown_type", res.UnknownTypes)
		p.metrics.RecordTriples(StageFuseRelations, "malformed", res.Malformed)
	}
	return &res, nil
}

// FuseEntities fuses the raw records of every entity type and writes one
// fused file per type. Types without a raw file are skipped.
func (p *Pipeline) FuseEntities(ctx context.Context) (results map[types.EntityType]*fusion.Result, err error) {
	ctx = p.stageContext(ctx, StageFuseEntities)
	start := time.Now()
	defer func() { p.observe(StageFuseEntities, start, err) }()

	results = make(map[types.EntityType]*fusion.Result, len(types.AllEntityTypes))
	for _, t := range types.AllEntityTypes {
		records, skipped, err := p.files.LoadRawEntities(t)
		if err != nil {
			if !p.skipMissing(ctx, err, "Skipping entity type", "type", t) {
				p.logger.ErrorContext(ctx, "Skipping unreadable entity file", "type", t, "error", err)
			}
			continue
		}
		if skipped > 0 {
			p.logger.WarnContext(ctx, "Skipped non-object entity entries", "type", t, "count", skipped)
		}

		res, err := p.fusion.FuseEntities(ctx, t, records)
		if err != nil {
			return results, fmt.Errorf("failed to fuse %s entities: %w", t, err)
		}
		if err := p.files.WriteFusedEntities(t, res.Entities); err != nil {
			return results, fmt.Errorf("failed to write fused %s entities: %w", t, err)
		}
		results[t] = res

		p.logger.InfoContext(ctx, "Fused entities persisted",
			"type", t, "input", res.Input, "output", len(res.Entities),
			"merged", res.Merged, "calls", res.OracleCalls, "fallbacks", res.Fallbacks)
		if p.metrics != nil {
			p.metrics.RecordOracle(StageFuseEntities, res.OracleCalls, res.Fallbacks)
			p.metrics.RecordEntities(string(t), "input", res.Input)
			p.metrics.RecordEntities(string(t), "fused", len(res.Entities))
			p.metrics.RecordEntities(string(t), "dropped", res.Dropped)
		}
	}
	return results, nil
}

// Import loads the fused entity and relation files and writes them to the
// graph store.
func (p *Pipeline) Import(ctx context.Context) (report *importer.Report, err error) {
	ctx = p.stageContext(ctx, StageImport)
	start := time.Now()
	defer func() { p.observe(StageImport, start, err) }()

	if p.importer == nil {
		return nil, ErrNoGraphStore
	}

	graph := importer.FusedGraph{Entities: make(map[types.EntityType][]types.Entity)}
	for _, t := range types.AllEntityTypes {
		records, skipped, err := p.files.LoadFusedEntities(t)
		if err != nil {
			if !p.skipMissing(ctx, err, "Skipping fused entity file", "type", t) {
				p.logger.ErrorContext(ctx, "Skipping unreadable fused entity file", "type", t, "error", err)
			}
			continue
		}
		if skipped > 0 {
			p.logger.WarnContext(ctx, "Skipped non-object entity entries", "type", t, "count", skipped)
		}
		graph.Entities[t] = records
	}

	relations, err := p.files.LoadFusedRelations()
	switch {
	case err == nil:
		graph.Relations = relations
	case errors.Is(err, store.ErrMissingInput):
		p.logger.WarnContext(ctx, "No fused relation file", "reason", err)
	default:
		p.logger.ErrorContext(ctx, "Skipping unreadable fused relation file", "error", err)
	}

	report, err = p.importer.Import(ctx, graph)
	if err != nil {
		return report, err
	}

	if p.metrics != nil {
		for _, n := range report.Nodes {
			label := n.EntityType.Label()
			p.metrics.RecordNodes(label, "written", n.Written)
			p.metrics.RecordNodes(label, "created", n.Created)
			p.metrics.RecordNodes(label, "skipped_no_identity", n.SkippedNoIdentity)
		}
		p.metrics.RecordEdges("merged", report.Relations.Merged)
		p.metrics.RecordEdges("created", report.Relations.Created)
		p.metrics.RecordEdges("unresolved", report.Relations.Unresolved)
		p.metrics.RecordEdges("rejected", report.Relations.Rejected)
		p.metrics.SetGraphStats(report.Stats)
	}
	return report, nil
}

// Run executes every stage in order and stops at the first stage error.
// The report holds the results of the stages that ran.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: p.runID, StartedAt: time.Now().UTC()}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	var err error
	if report.Extract, err = p.ExtractRelations(ctx); err != nil {
		return report, fmt.Errorf("%s: %w", StageExtractRelations, err)
	}
	if report.Link, err = p.LinkReferences(ctx); err != nil {
		return report, fmt.Errorf("%s: %w", StageLinkReferences, err)
	}
	if report.Relations, err = p.FuseRelations(ctx); err != nil {
		return report, fmt.Errorf("%s: %w", StageFuseRelations, err)
	}
	if report.Entities, err = p.FuseEntities(ctx); err != nil {
		return report, fmt.Errorf("%s: %w", StageFuseEntities, err)
	}
	if report.Import, err = p.Import(ctx); err != nil {
		return report, fmt.Errorf("%s: %w", StageImport, err)
	}
	return report, nil
}
