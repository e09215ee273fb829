package rumorgraph

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rumorgraph/rumorgraph/pkg/checkpoint"
	"github.com/rumorgraph/rumorgraph/pkg/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show compile run checkpoints",
	Long: `Show the persisted checkpoints of past and current compile runs: the last
completed stage, table counts, and any recorded error.`,
	RunE: runStatus,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old compile checkpoints",
	RunE:  runClean,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanCmd)

	statusCmd.Flags().Int("max-attempts", 3, "Attempts before a run counts as failed")
	statusCmd.Flags().Duration("stalled-after", time.Hour, "Idle time before a run counts as stalled")

	cleanCmd.Flags().Duration("older-than", 7*24*time.Hour, "Remove checkpoints older than this")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	manager, err := checkpoint.NewManager(cfg.Checkpoint.Dir)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint directory: %w", err)
	}

	checkpoints, err := manager.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}
	if len(checkpoints) == 0 {
		fmt.Println("No compile runs recorded.")
		return nil
	}

	for _, ckpt := range checkpoints {
		fmt.Println(ckpt.Summary())
	}

	maxAttempts, _ := cmd.Flags().GetInt("max-attempts")
	stalledAfter, _ := cmd.Flags().GetDuration("stalled-after")
	stats, err := manager.GetStatistics(cmd.Context(), maxAttempts, stalledAfter)
	if err != nil {
		return err
	}
	fmt.Printf("Total: %d (completed %d, in progress %d, failed %d, stalled %d)\n",
		stats.Total, stats.Completed, stats.InProgress, stats.Failed, stats.Stalled)
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	manager, err := checkpoint.NewManager(cfg.Checkpoint.Dir)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint directory: %w", err)
	}

	olderThan, _ := cmd.Flags().GetDuration("older-than")
	removed, err := manager.CleanOld(cmd.Context(), olderThan)
	if err != nil {
		return fmt.Errorf("failed to clean checkpoints: %w", err)
	}
	fmt.Printf("Removed %d checkpoint(s).\n", removed)
	return nil
}
