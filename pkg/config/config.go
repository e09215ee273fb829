// Package config holds the compiler's configuration surface: the dataset
// size presets with their relevance thresholds, the entity inclusion flags,
// and the collaborator settings.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Dataset size presets. Each maps to the relevance threshold the subgraph
// filter applies to its seed relations: a stricter cut yields a smaller
// dataset.
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

var sizeThresholds = map[string]float64{
	SizeSmall:  0.80,
	SizeMedium: 0.75,
	SizeLarge:  0.70,
}

// Threshold returns the relevance threshold for a size preset.
func Threshold(size string) (float64, error) {
	tau, ok := sizeThresholds[size]
	if !ok {
		return 0, fmt.Errorf("unknown dataset size %q (want small, medium, or large)", size)
	}
	return tau, nil
}

// Config holds all configuration for the compiler
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Dataset configuration
	Dataset DatasetConfig `mapstructure:"dataset"`

	// Twitter rehydration configuration
	Twitter TwitterConfig `mapstructure:"twitter"`

	// Enrichment pool configuration
	Enrich EnrichConfig `mapstructure:"enrich"`

	// Checkpoint configuration
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatasetConfig holds the dataset location, size preset, and entity
// inclusion flags
type DatasetConfig struct {
	Dir          string        `mapstructure:"dir"`
	Size         string        `mapstructure:"size"`
	DownloadURL  string        `mapstructure:"download_url"`
	Overwrite    bool          `mapstructure:"overwrite"`
	WriteParquet bool          `mapstructure:"write_parquet"`
	Include      IncludeConfig `mapstructure:"include"`
}

// IncludeConfig is the fixed set of optional entity inclusion flags.
// Claims, tweets, users, and articles are always compiled.
type IncludeConfig struct {
	Articles bool `mapstructure:"articles"`
	Images   bool `mapstructure:"images"`
	Videos   bool `mapstructure:"videos"`
	Hashtags bool `mapstructure:"hashtags"`
	Mentions bool `mapstructure:"mentions"`
	Places   bool `mapstructure:"places"`
	Polls    bool `mapstructure:"polls"`
}

// TwitterConfig holds rehydration API settings
type TwitterConfig struct {
	BearerToken       string  `mapstructure:"bearer_token"`
	BatchSize         int     `mapstructure:"batch_size"`
	MaxParallel       int     `mapstructure:"max_parallel"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// EnrichConfig holds enrichment pool settings. Zero workers means the
// available CPU parallelism.
type EnrichConfig struct {
	Workers           int     `mapstructure:"workers"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxBytes          int64   `mapstructure:"max_bytes"`
	CacheDir          string  `mapstructure:"cache_dir"`
	RespectRobots     bool    `mapstructure:"respect_robots"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// CheckpointConfig holds compile checkpoint settings
type CheckpointConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	if _, err := Threshold(config.Dataset.Size); err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Dataset defaults
	viper.SetDefault("dataset.dir", "./rumorgraph")
	viper.SetDefault("dataset.size", SizeLarge)
	viper.SetDefault("dataset.overwrite", false)
	viper.SetDefault("dataset.write_parquet", false)
	viper.SetDefault("dataset.include.articles", true)
	viper.SetDefault("dataset.include.images", true)
	viper.SetDefault("dataset.include.videos", true)
	viper.SetDefault("dataset.include.hashtags", true)
	viper.SetDefault("dataset.include.mentions", true)
	viper.SetDefault("dataset.include.places", true)
	viper.SetDefault("dataset.include.polls", true)

	// Rehydration defaults
	viper.SetDefault("twitter.batch_size", 100)
	viper.SetDefault("twitter.max_parallel", 4)

	// Enrichment defaults
	viper.SetDefault("enrich.timeout_seconds", 10)
	viper.SetDefault("enrich.respect_robots", true)

	// Checkpoint defaults
	viper.SetDefault("checkpoint.enabled", true)
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("checkpoint.dir", fmt.Sprintf("%s/.rumorgraph/checkpoints", home))
		viper.SetDefault("enrich.cache_dir", fmt.Sprintf("%s/.rumorgraph/cache", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if token := os.Getenv("TWITTER_BEARER_TOKEN"); token != "" {
		config.Twitter.BearerToken = token
	}
	if dir := os.Getenv("RUMORGRAPH_DATASET_DIR"); dir != "" {
		config.Dataset.Dir = dir
	}
	if size := os.Getenv("RUMORGRAPH_SIZE"); size != "" {
		config.Dataset.Size = size
	}
	if dir := os.Getenv("RUMORGRAPH_CACHE_DIR"); dir != "" {
		config.Enrich.CacheDir = dir
	}
	if dir := os.Getenv("RUMORGRAPH_CHECKPOINT_DIR"); dir != "" {
		config.Checkpoint.Dir = dir
	}
}
