package main

import (
	"log/slog"

	"github.com/soundprediction/graphfuse/pkg/logger"
)

func main() {
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("graphfuse colored logger demo")
	log.Debug("Debug message - standard color")
	log.Info("Info message - standard color")
	log.Info("Persisting nodes", "label", "Concept", "written", 1000, "total", 2400)
	log.Info("Persisting relations", "processed", 1000, "total", 1800, "created", 950)
	log.Info("Relation file persisted", "file", "paper_ref_relations.json")
	log.Warn("Skipped relations with unresolved endpoints", "count", 17)
	log.Error("Node batch failed, stopping import for this type", "label", "Document", "batch", 2)
}
