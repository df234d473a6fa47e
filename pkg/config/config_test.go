package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "data/features", cfg.Paths.Features)
	assert.Equal(t, "artifacts/models", cfg.Paths.Models)
	assert.InDelta(t, 0.2, cfg.Training.TestFraction, 1e-9)
	assert.InDelta(t, 0.1, cfg.Drift.WarnPSI, 1e-9)
	assert.InDelta(t, 0.25, cfg.Drift.FailPSI, 1e-9)
	assert.Equal(t, 10, cfg.Drift.Buckets)
	assert.Contains(t, cfg.Drift.FeatureCols, "sessions_7d")
	assert.Equal(t, 50, cfg.Scoring.TopK)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DRIFT_WARN_PSI", "0.05")
	t.Setenv("DRIFT_FEATURE_COLS", "a, b ,c")
	t.Setenv("SCORE_TOP_K", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.InDelta(t, 0.05, cfg.Drift.WarnPSI, 1e-9)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Drift.FeatureCols)
	assert.Equal(t, 10, cfg.Scoring.TopK)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad env", func(c *Config) { c.Env = "prod" }, true},
		{"test fraction zero", func(c *Config) { c.Training.TestFraction = 0 }, true},
		{"test fraction one", func(c *Config) { c.Training.TestFraction = 1 }, true},
		{"fail below warn", func(c *Config) { c.Drift.WarnPSI = 0.3; c.Drift.FailPSI = 0.1 }, true},
		{"single bucket", func(c *Config) { c.Drift.Buckets = 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
