package logger_test

import (
	"log/slog"

	"github.com/rumorgraph/rumorgraph/pkg/logger"
)

func ExampleNewDefaultLogger() {
	// Create a logger with default settings
	log := logger.NewDefaultLogger(slog.LevelDebug)

	// Log different levels
	log.Debug("This is a debug message")
	log.Info("Loading dataset tables")    // Will be green in terminal
	log.Warn("This is a warning message") // Will be yellow in terminal
	log.Error("This is an error message") // Will be red in terminal
}

func ExampleNewLogger() {
	// Create a logger with custom configuration
	log := logger.NewLogger("info", "color")

	// Log with attributes
	log.Info("Hydrating tweets", "batch", 100, "remaining", 4200)
	log.Warn("Rate limit approaching", "current", 95, "limit", 100)                           // Yellow
	log.Error("Article fetch failed", "error", "timeout", "url", "https://news.example/nope") // Red
}
