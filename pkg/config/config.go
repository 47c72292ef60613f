// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dataforge/dataprep/pkg/model"
)

// OutlierMethodZScore flags numeric cells whose z-score exceeds the
// configured threshold; OutlierMethodIQR uses Tukey fences with the
// threshold as the IQR multiplier.
const (
	OutlierMethodZScore = "zscore"
	OutlierMethodIQR    = "iqr"
)

// Config carries every threshold and policy the preprocessing engine
// uses. It is threaded explicitly into each component constructor; there
// is no ambient or global configuration state.
type Config struct {
	// Detection thresholds
	MissingValueBands    model.SeverityBands
	DuplicateRowBands    model.SeverityBands
	OutlierMethod        string
	OutlierThreshold     float64
	HighCardinalityRatio float64
	MinorityClassRatio   float64

	// Discovery policy
	MissingDropRatio float64 // above this missing ratio a column is dropped, not imputed
	MaxCategories    int     // categories kept by high-cardinality truncation

	// Application policy
	FailurePolicy   model.FailurePolicy
	MaxRuleDuration time.Duration // single-rule guard; exceeding it is a transformation error
	RuleBudget      time.Duration // wall-clock budget for one bulk run; 0 means unlimited

	// Orchestration
	MaxIncrementalIterations int
	MinActionableSeverity    model.Severity

	// Detection concurrency; 0 means one worker per CPU
	DetectorWorkers int

	// Logging
	LogLevel  string
	LogFormat string

	// External collaborators (optional; nil when the in-memory surface
	// is used without a database-backed provider or lineage recorder)
	Postgres  *PostgresConfig
	Snowflake *SnowflakeConfig
}

// DefaultConfig returns the documented defaults
func DefaultConfig() *Config {
	return &Config{
		MissingValueBands:        model.SeverityBands{Critical: 0.5, High: 0.2, Medium: 0.05},
		DuplicateRowBands:        model.SeverityBands{Critical: 0.5, High: 0.3, Medium: 0.2},
		OutlierMethod:            OutlierMethodZScore,
		OutlierThreshold:         3.0,
		HighCardinalityRatio:     0.9,
		MinorityClassRatio:       0.1,
		MissingDropRatio:         0.5,
		MaxCategories:            50,
		FailurePolicy:            model.ContinueOnError,
		MaxRuleDuration:          time.Minute,
		RuleBudget:               0,
		MaxIncrementalIterations: 5,
		MinActionableSeverity:    model.SeverityMedium,
		DetectorWorkers:          0,
		LogLevel:                 "info",
		LogFormat:                "json",
	}
}

// LoadConfig loads configuration from environment variables on top of
// the defaults. A .env file is honored when present.
func LoadConfig() (*Config, error) {
	// Best effort; a missing .env file is not an error
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.OutlierMethod = getEnv("DATAPREP_OUTLIER_METHOD", cfg.OutlierMethod)
	cfg.OutlierThreshold = getEnvAsFloat("DATAPREP_OUTLIER_THRESHOLD", cfg.OutlierThreshold)
	cfg.HighCardinalityRatio = getEnvAsFloat("DATAPREP_HIGH_CARDINALITY_RATIO", cfg.HighCardinalityRatio)
	cfg.MinorityClassRatio = getEnvAsFloat("DATAPREP_MINORITY_CLASS_RATIO", cfg.MinorityClassRatio)
	cfg.MissingDropRatio = getEnvAsFloat("DATAPREP_MISSING_DROP_RATIO", cfg.MissingDropRatio)
	cfg.MaxCategories = getEnvAsInt("DATAPREP_MAX_CATEGORIES", cfg.MaxCategories)
	cfg.MaxIncrementalIterations = getEnvAsInt("DATAPREP_MAX_ITERATIONS", cfg.MaxIncrementalIterations)
	cfg.DetectorWorkers = getEnvAsInt("DATAPREP_DETECTOR_WORKERS", cfg.DetectorWorkers)
	cfg.MaxRuleDuration = time.Duration(getEnvAsInt("DATAPREP_MAX_RULE_DURATION_SECONDS", int(cfg.MaxRuleDuration.Seconds()))) * time.Second
	cfg.RuleBudget = time.Duration(getEnvAsInt("DATAPREP_RULE_BUDGET_SECONDS", 0)) * time.Second
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if v := os.Getenv("DATAPREP_MIN_ACTIONABLE_SEVERITY"); v != "" {
		sev, err := model.ParseSeverity(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DATAPREP_MIN_ACTIONABLE_SEVERITY: %w", err)
		}
		cfg.MinActionableSeverity = sev
	}
	if v := os.Getenv("DATAPREP_FAILURE_POLICY"); v != "" {
		policy, err := model.ParseFailurePolicy(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DATAPREP_FAILURE_POLICY: %w", err)
		}
		cfg.FailurePolicy = policy
	}

	// Database configuration is optional; only loaded when the
	// corresponding connection variables are present.
	if os.Getenv("POSTGRES_HOST") != "" {
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
		}
		cfg.Postgres = pgConfig
	}
	if os.Getenv("SNOWFLAKE_ACCOUNT") != "" {
		snowConfig, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, errors.New("failed to load Snowflake configuration: " + err.Error())
		}
		cfg.Snowflake = snowConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures all thresholds and policies are usable
func (c *Config) Validate() error {
	if err := c.MissingValueBands.Validate(); err != nil {
		return fmt.Errorf("missing value bands: %w", err)
	}
	if err := c.DuplicateRowBands.Validate(); err != nil {
		return fmt.Errorf("duplicate row bands: %w", err)
	}
	if c.OutlierMethod != OutlierMethodZScore && c.OutlierMethod != OutlierMethodIQR {
		return fmt.Errorf("unknown outlier method %q", c.OutlierMethod)
	}
	if c.OutlierThreshold <= 0 {
		return errors.New("outlier threshold must be positive")
	}
	if c.HighCardinalityRatio <= 0 || c.HighCardinalityRatio > 1 {
		return errors.New("high cardinality ratio must be in (0,1]")
	}
	if c.MinorityClassRatio < 0 || c.MinorityClassRatio >= 1 {
		return errors.New("minority class ratio must be in [0,1)")
	}
	if c.MissingDropRatio <= 0 || c.MissingDropRatio > 1 {
		return errors.New("missing drop ratio must be in (0,1]")
	}
	if c.MaxCategories <= 0 {
		return errors.New("max categories must be positive")
	}
	if c.MaxIncrementalIterations <= 0 {
		return errors.New("max incremental iterations must be positive")
	}
	if c.MaxRuleDuration <= 0 {
		return errors.New("max rule duration must be positive")
	}
	if c.RuleBudget < 0 {
		return errors.New("rule budget cannot be negative")
	}
	if c.DetectorWorkers < 0 {
		return errors.New("detector workers cannot be negative")
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
