package main

import (
	"log/slog"

	"github.com/rumorgraph/rumorgraph/pkg/logger"
)

func main() {
	// Create a colored logger
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Debug("Debug message - standard color")
	log.Info("Info message - green!")
	log.Warn("Warning message - yellow!")
	log.Error("Error message - red!")

	log.Info("Pipeline stages log with attributes:")
	log.Info("Loaded dataset tables", "claims", 12914, "tweets", 21565)
	log.Info("Hydrated tweets", "duration", "4m12s")
	log.Info("Filtered subgraph", "threshold", 0.75, "dropped_edges", 1024)

	log.Warn("Warnings appear in yellow for attention")
	log.Error("Errors appear in red for immediate visibility")
}
