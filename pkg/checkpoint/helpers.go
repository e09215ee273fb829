package checkpoint

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// NewCheckpoint creates a new checkpoint for a compile run at the initial step
func NewCheckpoint(datasetDir, size string) *CompileCheckpoint {
	now := time.Now()
	return &CompileCheckpoint{
		RunID:          uuid.New().String(),
		DatasetDir:     datasetDir,
		Size:           size,
		Step:           StepInitial,
		CreatedAt:      now,
		LastUpdatedAt:  now,
		AttemptCount:   0,
		NodeCounts:     make(map[string]int),
		RelationCounts: make(map[string]int),
	}
}

// CanRetry determines if a checkpoint should be retried based on attempt count and age
func (c *CompileCheckpoint) CanRetry(maxAttempts int, maxAge time.Duration) bool {
	if c.AttemptCount >= maxAttempts {
		return false
	}

	age := time.Since(c.CreatedAt)
	if age > maxAge {
		return false
	}

	return true
}

// pipelineSteps is the compile pipeline in order.
var pipelineSteps = []CompileStep{
	StepInitial,
	StepDownloaded,
	StepLoaded,
	StepHydrated,
	StepRelations,
	StepFiltered,
	StepEnriched,
	StepProjected,
	StepCompleted,
}

// GetProgress returns a human-readable progress description
func (c *CompileCheckpoint) GetProgress() string {
	currentIdx := -1
	for i, step := range pipelineSteps {
		if step == c.Step {
			currentIdx = i
			break
		}
	}

	if currentIdx == -1 {
		return "Unknown step"
	}

	percentage := (float64(currentIdx) / float64(len(pipelineSteps)-1)) * 100
	return fmt.Sprintf("%.0f%% (%s)", percentage, c.Step)
}

// IsRecoverable determines if an error at the current step is likely recoverable
func (c *CompileCheckpoint) IsRecoverable() bool {
	// Steps that involve network calls are generally recoverable (transient failures)
	recoverableSteps := map[CompileStep]bool{
		StepInitial:    true,
		StepDownloaded: true,
		StepHydrated:   true,
		StepEnriched:   true,
	}

	return recoverableSteps[c.Step]
}

// SaveWithStep is a helper that updates the step and saves in one operation
func (m *Manager) SaveWithStep(ctx context.Context, checkpoint *CompileCheckpoint, step CompileStep) error {
	checkpoint.Step = step
	return m.Save(ctx, checkpoint)
}

// SaveWithError is a helper that records an error and saves in one operation
func (m *Manager) SaveWithError(ctx context.Context, checkpoint *CompileCheckpoint, err error) error {
	checkpoint.AttemptCount++
	checkpoint.LastError = err.Error()
	checkpoint.LastErrorStack = string(debug.Stack())
	return m.Save(ctx, checkpoint)
}

// LoadOrCreate loads an existing checkpoint or creates a new one
func (m *Manager) LoadOrCreate(ctx context.Context, runID, datasetDir, size string) (*CompileCheckpoint, bool, error) {
	if runID != "" {
		existing, err := m.Load(ctx, runID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	// Create new checkpoint
	checkpoint := NewCheckpoint(datasetDir, size)
	if err := m.Save(ctx, checkpoint); err != nil {
		return nil, false, err
	}

	return checkpoint, false, nil
}

// GetNextStep returns the next step in the pipeline after the current step
func GetNextStep(current CompileStep) (CompileStep, error) {
	for i, step := range pipelineSteps {
		if step == current {
			if i == len(pipelineSteps)-1 {
				return "", fmt.Errorf("no step after %s", current)
			}
			return pipelineSteps[i+1], nil
		}
	}
	return "", fmt.Errorf("unknown current step: %s", current)
}

// Summary provides a human-readable summary of the checkpoint
func (c *CompileCheckpoint) Summary() string {
	summary := fmt.Sprintf("Run: %s\n", c.RunID)
	summary += fmt.Sprintf("Dataset: %s (%s)\n", c.DatasetDir, c.Size)
	summary += fmt.Sprintf("Progress: %s\n", c.GetProgress())
	summary += fmt.Sprintf("Created: %s\n", c.CreatedAt.Format(time.RFC3339))
	summary += fmt.Sprintf("Last Updated: %s\n", c.LastUpdatedAt.Format(time.RFC3339))
	summary += fmt.Sprintf("Attempts: %d\n", c.AttemptCount)

	if c.LastError != "" {
		summary += fmt.Sprintf("Last Error: %s\n", c.LastError)
	}

	if len(c.NodeCounts) > 0 {
		total := 0
		for _, n := range c.NodeCounts {
			total += n
		}
		summary += fmt.Sprintf("Nodes: %d\n", total)
	}

	if len(c.RelationCounts) > 0 {
		total := 0
		for _, n := range c.RelationCounts {
			total += n
		}
		summary += fmt.Sprintf("Relations: %d\n", total)
	}

	if c.EnrichSubmitted > 0 {
		summary += fmt.Sprintf("Enriched: %d/%d\n", c.EnrichSucceeded, c.EnrichSubmitted)
	}

	return summary
}

// FindStalled returns checkpoints that haven't been updated recently
func (m *Manager) FindStalled(ctx context.Context, stalledDuration time.Duration) ([]*CompileCheckpoint, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-stalledDuration)
	var stalled []*CompileCheckpoint

	for _, checkpoint := range checkpoints {
		if checkpoint.Step != StepCompleted && checkpoint.LastUpdatedAt.Before(cutoff) {
			stalled = append(stalled, checkpoint)
		}
	}

	return stalled, nil
}

// FindFailed returns checkpoints that have exceeded max attempts
func (m *Manager) FindFailed(ctx context.Context, maxAttempts int) ([]*CompileCheckpoint, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	var failed []*CompileCheckpoint
	for _, checkpoint := range checkpoints {
		if checkpoint.Step != StepCompleted && checkpoint.AttemptCount >= maxAttempts {
			failed = append(failed, checkpoint)
		}
	}

	return failed, nil
}

// Statistics summarizes checkpoints by state
type Statistics struct {
	Total      int
	Completed  int
	InProgress int
	Failed     int
	Stalled    int
	ByStep     map[CompileStep]int
}

func (m *Manager) GetStatistics(ctx context.Context, maxAttempts int, stalledDuration time.Duration) (*Statistics, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		Total:  len(checkpoints),
		ByStep: make(map[CompileStep]int),
	}

	cutoff := time.Now().Add(-stalledDuration)

	for _, checkpoint := range checkpoints {
		stats.ByStep[checkpoint.Step]++

		if checkpoint.Step == StepCompleted {
			stats.Completed++
		} else if checkpoint.AttemptCount >= maxAttempts {
			stats.Failed++
		} else if checkpoint.LastUpdatedAt.Before(cutoff) {
			stats.Stalled++
		} else {
			stats.InProgress++
		}
	}

	return stats, nil
}
