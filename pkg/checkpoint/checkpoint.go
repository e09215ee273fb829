package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidRunID is returned when a run ID contains invalid characters
var ErrInvalidRunID = errors.New("invalid run ID: contains path traversal or invalid characters")

// CompileStep represents a stage in the dataset compile pipeline
type CompileStep string

const (
	StepInitial    CompileStep = "initial"
	StepDownloaded CompileStep = "downloaded"
	StepLoaded     CompileStep = "loaded"
	StepHydrated   CompileStep = "hydrated"
	StepRelations  CompileStep = "relations"
	StepFiltered   CompileStep = "filtered"
	StepEnriched   CompileStep = "enriched"
	StepProjected  CompileStep = "projected"
	StepCompleted  CompileStep = "completed"
)

// CompileCheckpoint records the progress of one compile run. Tables are too
// large to serialize here; the checkpoint carries the stage marker and the
// per-stage counts needed to resume and to report.
type CompileCheckpoint struct {
	// Run identification
	RunID      string      `json:"run_id"`
	DatasetDir string      `json:"dataset_dir"`
	Size       string      `json:"size"`
	Step       CompileStep `json:"step"`

	// Timestamp tracking
	CreatedAt      time.Time `json:"created_at"`
	LastUpdatedAt  time.Time `json:"last_updated_at"`
	AttemptCount   int       `json:"attempt_count"`
	LastError      string    `json:"last_error,omitempty"`
	LastErrorStack string    `json:"last_error_stack,omitempty"`

	// Per-stage counts
	NodeCounts     map[string]int `json:"node_counts,omitempty"`
	RelationCounts map[string]int `json:"relation_counts,omitempty"`

	// Enrichment outcome
	EnrichSubmitted int64 `json:"enrich_submitted,omitempty"`
	EnrichSucceeded int64 `json:"enrich_succeeded,omitempty"`
	EnrichFailed    int64 `json:"enrich_failed,omitempty"`
	EnrichTimedOut  int64 `json:"enrich_timed_out,omitempty"`
}

// Manager manages compile run checkpoints
type Manager struct {
	checkpointDir string
}

// NewManager creates a new checkpoint manager.
// If checkpointDir is empty, uses os.TempDir()/rumorgraph-checkpoints
func NewManager(checkpointDir string) (*Manager, error) {
	if checkpointDir == "" {
		checkpointDir = filepath.Join(os.TempDir(), "rumorgraph-checkpoints")
	}

	// Create checkpoint directory if it doesn't exist
	if err := os.MkdirAll(checkpointDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Manager{
		checkpointDir: checkpointDir,
	}, nil
}

// validateRunID checks that the run ID is safe for use in file paths.
// It rejects IDs containing path separators, path traversal sequences, or null bytes.
func validateRunID(runID string) error {
	if runID == "" {
		return ErrInvalidRunID
	}

	// Check for path traversal sequences
	if strings.Contains(runID, "..") {
		return ErrInvalidRunID
	}

	// Check for path separators
	if strings.ContainsAny(runID, `/\`) {
		return ErrInvalidRunID
	}

	// Check for null bytes (can truncate paths in some systems)
	if strings.ContainsRune(runID, '\x00') {
		return ErrInvalidRunID
	}

	return nil
}

// isPathWithinDirectory checks that the resolved path is within the expected directory.
func isPathWithinDirectory(path, directory string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(directory)

	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}

	return strings.HasPrefix(cleanPath, cleanDir) || cleanPath == filepath.Clean(directory)
}

// GetCheckpointPath returns the file path for a run's checkpoint.
// Returns an error if the run ID contains invalid characters or path traversal sequences.
func (m *Manager) GetCheckpointPath(runID string) (string, error) {
	if err := validateRunID(runID); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("checkpoint_%s.json", runID)
	fullPath := filepath.Join(m.checkpointDir, filename)

	if !isPathWithinDirectory(fullPath, m.checkpointDir) {
		return "", ErrInvalidRunID
	}

	return fullPath, nil
}

// Save persists the checkpoint to disk
func (m *Manager) Save(ctx context.Context, checkpoint *CompileCheckpoint) error {
	checkpoint.LastUpdatedAt = time.Now()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	checkpointPath, err := m.GetCheckpointPath(checkpoint.RunID)
	if err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}

	// Write to a temporary file first, then rename for atomic write
	tmpPath := checkpointPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, checkpointPath); err != nil {
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	return nil
}

// Load retrieves a checkpoint from disk
func (m *Manager) Load(ctx context.Context, runID string) (*CompileCheckpoint, error) {
	checkpointPath, err := m.GetCheckpointPath(runID)
	if err != nil {
		return nil, fmt.Errorf("invalid run ID: %w", err)
	}

	data, err := os.ReadFile(checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No checkpoint exists
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint CompileCheckpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	return &checkpoint, nil
}

// Delete removes a checkpoint from disk
func (m *Manager) Delete(ctx context.Context, runID string) error {
	checkpointPath, err := m.GetCheckpointPath(runID)
	if err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}

	if err := os.Remove(checkpointPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}

	return nil
}

// Exists checks if a checkpoint exists for a run
func (m *Manager) Exists(ctx context.Context, runID string) (bool, error) {
	checkpointPath, err := m.GetCheckpointPath(runID)
	if err != nil {
		return false, fmt.Errorf("invalid run ID: %w", err)
	}

	_, err = os.Stat(checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check checkpoint existence: %w", err)
	}

	return true, nil
}

// List returns all checkpoints in the checkpoint directory
func (m *Manager) List(ctx context.Context) ([]*CompileCheckpoint, error) {
	entries, err := os.ReadDir(m.checkpointDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var checkpoints []*CompileCheckpoint
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		// Only process .json files, skip .tmp files
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.checkpointDir, entry.Name()))
		if err != nil {
			continue // Skip files we can't read
		}

		var checkpoint CompileCheckpoint
		if err := json.Unmarshal(data, &checkpoint); err != nil {
			continue // Skip files we can't unmarshal
		}

		checkpoints = append(checkpoints, &checkpoint)
	}

	return checkpoints, nil
}

// UpdateStep updates the checkpoint's current step
func (m *Manager) UpdateStep(ctx context.Context, runID string, step CompileStep) error {
	checkpoint, err := m.Load(ctx, runID)
	if err != nil {
		return err
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint not found for run %s", runID)
	}

	checkpoint.Step = step
	return m.Save(ctx, checkpoint)
}

// RecordError records an error in the checkpoint
func (m *Manager) RecordError(ctx context.Context, runID string, err error, stackTrace string) error {
	checkpoint, loadErr := m.Load(ctx, runID)
	if loadErr != nil {
		return loadErr
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint not found for run %s", runID)
	}

	checkpoint.AttemptCount++
	checkpoint.LastError = err.Error()
	checkpoint.LastErrorStack = stackTrace

	return m.Save(ctx, checkpoint)
}

// GetCheckpointDir returns the checkpoint directory path
func (m *Manager) GetCheckpointDir() string {
	return m.checkpointDir
}

// CleanOld removes checkpoints older than the specified duration
func (m *Manager) CleanOld(ctx context.Context, maxAge time.Duration) (int, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, checkpoint := range checkpoints {
		if checkpoint.LastUpdatedAt.Before(cutoff) {
			if err := m.Delete(ctx, checkpoint.RunID); err != nil {
				// Log but don't fail the entire cleanup
				continue
			}
			removed++
		}
	}

	return removed, nil
}
