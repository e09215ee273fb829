package rumorgraph

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rumorgraph/rumorgraph"
	"github.com/rumorgraph/rumorgraph/pkg/config"
	"github.com/rumorgraph/rumorgraph/pkg/logger"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the dataset",
	Long: `Compile the dataset: download the claim and tweet tables if needed,
rehydrate tweets through the Twitter API, extract the graph relations, filter
the subgraph to the configured size, enrich it with linked articles and
images, and write the compiled tables to <dataset-dir>/compiled.

Rehydration requires a Twitter API bearer token, provided through the
TWITTER_BEARER_TOKEN environment variable, the config file, or the
--bearer-token flag.`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	// Dataset flags
	compileCmd.Flags().String("dataset-dir", "", "Directory holding the dataset tables")
	compileCmd.Flags().String("size", "", "Dataset size preset (small, medium, large)")
	compileCmd.Flags().String("download-url", "", "Archive URL for the raw dataset tables")
	compileCmd.Flags().Bool("overwrite", false, "Recompile even if compiled output exists")
	compileCmd.Flags().Bool("parquet", false, "Also write compiled tables as Parquet")

	// Inclusion flags
	compileCmd.Flags().Bool("include-articles", true, "Include linked articles")
	compileCmd.Flags().Bool("include-images", true, "Include images")
	compileCmd.Flags().Bool("include-videos", true, "Include videos")
	compileCmd.Flags().Bool("include-hashtags", true, "Include hashtags")
	compileCmd.Flags().Bool("include-mentions", true, "Include mentioned users")
	compileCmd.Flags().Bool("include-places", true, "Include places")
	compileCmd.Flags().Bool("include-polls", true, "Include polls")

	// Rehydration flags
	compileCmd.Flags().String("bearer-token", "", "Twitter API bearer token")
	compileCmd.Flags().Int("batch-size", 0, "Tweet lookup batch size")

	// Enrichment flags
	compileCmd.Flags().Int("enrich-workers", 0, "Enrichment worker count (0 = CPU count)")
	compileCmd.Flags().Int("enrich-timeout", 0, "Per-fetch timeout in seconds")
}

func runCompile(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	overrideCompileConfig(cmd, cfg)

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)

	dataset, err := rumorgraph.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize dataset: %w", err)
	}
	defer dataset.Close()

	// Cancel the pipeline on SIGINT/SIGTERM; in-flight enrichment fetches
	// drain before Compile returns.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dataset.Compile(ctx); err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}

	fmt.Println(dataset)
	return nil
}

func overrideCompileConfig(cmd *cobra.Command, cfg *config.Config) {
	// Dataset flags
	if cmd.Flags().Changed("dataset-dir") {
		cfg.Dataset.Dir, _ = cmd.Flags().GetString("dataset-dir")
	}
	if cmd.Flags().Changed("size") {
		cfg.Dataset.Size, _ = cmd.Flags().GetString("size")
	}
	if cmd.Flags().Changed("download-url") {
		cfg.Dataset.DownloadURL, _ = cmd.Flags().GetString("download-url")
	}
	if cmd.Flags().Changed("overwrite") {
		cfg.Dataset.Overwrite, _ = cmd.Flags().GetBool("overwrite")
	}
	if cmd.Flags().Changed("parquet") {
		cfg.Dataset.WriteParquet, _ = cmd.Flags().GetBool("parquet")
	}

	// Inclusion flags
	if cmd.Flags().Changed("include-articles") {
		cfg.Dataset.Include.Articles, _ = cmd.Flags().GetBool("include-articles")
	}
	if cmd.Flags().Changed("include-images") {
		cfg.Dataset.Include.Images, _ = cmd.Flags().GetBool("include-images")
	}
	if cmd.Flags().Changed("include-videos") {
		cfg.Dataset.Include.Videos, _ = cmd.Flags().GetBool("include-videos")
	}
	if cmd.Flags().Changed("include-hashtags") {
		cfg.Dataset.Include.Hashtags, _ = cmd.Flags().GetBool("include-hashtags")
	}
	if cmd.Flags().Changed("include-mentions") {
		cfg.Dataset.Include.Mentions, _ = cmd.Flags().GetBool("include-mentions")
	}
	if cmd.Flags().Changed("include-places") {
		cfg.Dataset.Include.Places, _ = cmd.Flags().GetBool("include-places")
	}
	if cmd.Flags().Changed("include-polls") {
		cfg.Dataset.Include.Polls, _ = cmd.Flags().GetBool("include-polls")
	}

	// Rehydration flags
	if cmd.Flags().Changed("bearer-token") {
		cfg.Twitter.BearerToken, _ = cmd.Flags().GetString("bearer-token")
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.Twitter.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	}

	// Enrichment flags
	if cmd.Flags().Changed("enrich-workers") {
		cfg.Enrich.Workers, _ = cmd.Flags().GetInt("enrich-workers")
	}
	if cmd.Flags().Changed("enrich-timeout") {
		cfg.Enrich.TimeoutSeconds, _ = cmd.Flags().GetInt("enrich-timeout")
	}
}
