package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreshold(t *testing.T) {
	cases := map[string]float64{
		SizeSmall:  0.80,
		SizeMedium: 0.75,
		SizeLarge:  0.70,
	}
	for size, want := range cases {
		tau, err := Threshold(size)
		require.NoError(t, err)
		assert.Equal(t, want, tau)
	}

	_, err := Threshold("gigantic")
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, SizeLarge, cfg.Dataset.Size)
	assert.True(t, cfg.Dataset.Include.Hashtags)
	assert.True(t, cfg.Dataset.Include.Videos)
	assert.Equal(t, 100, cfg.Twitter.BatchSize)
	assert.Equal(t, 10, cfg.Enrich.TimeoutSeconds)
	assert.True(t, cfg.Checkpoint.Enabled)
}

func TestLoadRejectsUnknownSize(t *testing.T) {
	viper.Reset()
	viper.Set("dataset.size", "huge")
	defer viper.Reset()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dataset size")
}

func TestEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Setenv("TWITTER_BEARER_TOKEN", "secret-token")
	t.Setenv("RUMORGRAPH_DATASET_DIR", "/data/rumorgraph")
	t.Setenv("RUMORGRAPH_SIZE", "small")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Twitter.BearerToken)
	assert.Equal(t, "/data/rumorgraph", cfg.Dataset.Dir)
	assert.Equal(t, "small", cfg.Dataset.Size)
}
