// Package graphfuse consolidates the output of an entity extraction run into
// a knowledge graph.
//
// The input is a directory tree of intermediate JSON files: chunked documents,
// the entities extracted from every chunk, and the raw entity records of the
// whole corpus. A Pipeline turns them into a property graph in five stages:
//
//   - ExtractRelations asks the oracle for the relations among the entities of
//     each chunk.
//   - LinkReferences resolves the citation markers in body chunks and links
//     body entities to the entities of the cited references.
//   - FuseRelations unions every relation file and removes duplicates.
//   - FuseEntities merges the records that share an identity into one record.
//   - Import writes the fused entities and relations to a graph store.
//
// # Basic Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := nlp.NewOpenAIClient(cfg.Oracle.APIKey, &nlp.LLMConfig{
//		Model:   cfg.Oracle.Model,
//		BaseURL: cfg.Oracle.BaseURL,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	graph, err := driver.NewNeo4jDriver(cfg.Database.URI, cfg.Database.Username,
//		cfg.Database.Password, cfg.Database.Database)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer graph.Close()
//
//	pipeline, err := graphfuse.New(cfg, client, graph, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report, err := pipeline.Run(ctx)
//
// Every stage can also run on its own. A stage reads only files written by an
// earlier stage, so a failed run resumes from the stage that failed.
//
// # Error Handling
//
// Oracle failures never fail a stage. A chunk or reference pair whose request
// fails contributes no relations, and a fusion batch whose request fails keeps
// its first record. Both are counted in the stage report. Missing input
// directories are logged as warnings. Stages return errors for context
// cancellation, unwritable output files and, for Import, a missing graph
// store (ErrNoGraphStore).
//
// # Architecture
//
//   - pkg/citation: citation marker parsing and reference indexing
//   - pkg/relation: relation extraction and deduplication
//   - pkg/linker: body to reference relation linking
//   - pkg/fusion: entity fusion
//   - pkg/importer: graph import over pkg/driver
//   - pkg/store: the intermediate file layout
//   - pkg/nlp: oracle clients with caching, retries and circuit breaking
package graphfuse
