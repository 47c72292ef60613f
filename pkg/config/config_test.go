package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataforge/dataprep/pkg/model"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, OutlierMethodZScore, cfg.OutlierMethod)
	assert.Equal(t, model.ContinueOnError, cfg.FailurePolicy)
	assert.Equal(t, model.SeverityMedium, cfg.MinActionableSeverity)
	assert.Equal(t, 5, cfg.MaxIncrementalIterations)
	assert.Equal(t, 0.5, cfg.MissingDropRatio)
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown outlier method", func(c *Config) { c.OutlierMethod = "mad" }},
		{"zero outlier threshold", func(c *Config) { c.OutlierThreshold = 0 }},
		{"cardinality ratio above one", func(c *Config) { c.HighCardinalityRatio = 1.5 }},
		{"minority ratio of one", func(c *Config) { c.MinorityClassRatio = 1.0 }},
		{"zero drop ratio", func(c *Config) { c.MissingDropRatio = 0 }},
		{"zero max categories", func(c *Config) { c.MaxCategories = 0 }},
		{"zero iterations", func(c *Config) { c.MaxIncrementalIterations = 0 }},
		{"zero rule duration", func(c *Config) { c.MaxRuleDuration = 0 }},
		{"negative rule budget", func(c *Config) { c.RuleBudget = -time.Second }},
		{"negative workers", func(c *Config) { c.DetectorWorkers = -1 }},
		{"inverted bands", func(c *Config) {
			c.MissingValueBands = model.SeverityBands{Critical: 0.1, High: 0.5, Medium: 0.05}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATAPREP_OUTLIER_METHOD", "iqr")
	t.Setenv("DATAPREP_OUTLIER_THRESHOLD", "1.5")
	t.Setenv("DATAPREP_MAX_ITERATIONS", "3")
	t.Setenv("DATAPREP_MIN_ACTIONABLE_SEVERITY", "high")
	t.Setenv("DATAPREP_FAILURE_POLICY", "fail_fast")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, OutlierMethodIQR, cfg.OutlierMethod)
	assert.Equal(t, 1.5, cfg.OutlierThreshold)
	assert.Equal(t, 3, cfg.MaxIncrementalIterations)
	assert.Equal(t, model.SeverityHigh, cfg.MinActionableSeverity)
	assert.Equal(t, model.FailFast, cfg.FailurePolicy)
}

func TestLoadConfigRejectsBadSeverity(t *testing.T) {
	t.Setenv("DATAPREP_MIN_ACTIONABLE_SEVERITY", "urgent")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestApplyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	content := `
missing_value_bands:
  critical: 0.6
  high: 0.3
  medium: 0.1
outlier_method: iqr
outlier_threshold: 1.5
max_rule_duration: 30s
failure_policy: fail_fast
min_actionable_severity: low
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyFile(path))

	assert.Equal(t, model.SeverityBands{Critical: 0.6, High: 0.3, Medium: 0.1}, cfg.MissingValueBands)
	assert.Equal(t, OutlierMethodIQR, cfg.OutlierMethod)
	assert.Equal(t, 1.5, cfg.OutlierThreshold)
	assert.Equal(t, 30*time.Second, cfg.MaxRuleDuration)
	assert.Equal(t, model.FailFast, cfg.FailurePolicy)
	assert.Equal(t, model.SeverityLow, cfg.MinActionableSeverity)

	// Untouched fields keep their defaults
	assert.Equal(t, 50, cfg.MaxCategories)
}

func TestApplyFileRejectsInvalidOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("outlier_method: mad\n"), 0o600))

	cfg := DefaultConfig()
	assert.Error(t, cfg.ApplyFile(path))
}

func TestApplyFileMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.ApplyFile(filepath.Join(t.TempDir(), "absent.yaml")))
}
