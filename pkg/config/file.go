// pkg/config/file.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dataforge/dataprep/pkg/model"
)

// fileOverlay is the YAML shape of a threshold override file. Every
// field is optional; absent fields keep their current value.
type fileOverlay struct {
	MissingValueBands        *model.SeverityBands `yaml:"missing_value_bands"`
	DuplicateRowBands        *model.SeverityBands `yaml:"duplicate_row_bands"`
	OutlierMethod            *string              `yaml:"outlier_method"`
	OutlierThreshold         *float64             `yaml:"outlier_threshold"`
	HighCardinalityRatio     *float64             `yaml:"high_cardinality_ratio"`
	MinorityClassRatio       *float64             `yaml:"minority_class_ratio"`
	MissingDropRatio         *float64             `yaml:"missing_drop_ratio"`
	MaxCategories            *int                 `yaml:"max_categories"`
	FailurePolicy            *string              `yaml:"failure_policy"`
	MaxRuleDuration          *string              `yaml:"max_rule_duration"`
	RuleBudget               *string              `yaml:"rule_budget"`
	MaxIncrementalIterations *int                 `yaml:"max_incremental_iterations"`
	MinActionableSeverity    *string              `yaml:"min_actionable_severity"`
	DetectorWorkers          *int                 `yaml:"detector_workers"`
}

// ApplyFile overlays thresholds from a YAML file onto the
// configuration and re-validates it.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if overlay.MissingValueBands != nil {
		c.MissingValueBands = *overlay.MissingValueBands
	}
	if overlay.DuplicateRowBands != nil {
		c.DuplicateRowBands = *overlay.DuplicateRowBands
	}
	if overlay.OutlierMethod != nil {
		c.OutlierMethod = *overlay.OutlierMethod
	}
	if overlay.OutlierThreshold != nil {
		c.OutlierThreshold = *overlay.OutlierThreshold
	}
	if overlay.HighCardinalityRatio != nil {
		c.HighCardinalityRatio = *overlay.HighCardinalityRatio
	}
	if overlay.MinorityClassRatio != nil {
		c.MinorityClassRatio = *overlay.MinorityClassRatio
	}
	if overlay.MissingDropRatio != nil {
		c.MissingDropRatio = *overlay.MissingDropRatio
	}
	if overlay.MaxCategories != nil {
		c.MaxCategories = *overlay.MaxCategories
	}
	if overlay.MaxIncrementalIterations != nil {
		c.MaxIncrementalIterations = *overlay.MaxIncrementalIterations
	}
	if overlay.DetectorWorkers != nil {
		c.DetectorWorkers = *overlay.DetectorWorkers
	}

	if overlay.FailurePolicy != nil {
		policy, err := model.ParseFailurePolicy(*overlay.FailurePolicy)
		if err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		c.FailurePolicy = policy
	}
	if overlay.MinActionableSeverity != nil {
		sev, err := model.ParseSeverity(*overlay.MinActionableSeverity)
		if err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		c.MinActionableSeverity = sev
	}
	if overlay.MaxRuleDuration != nil {
		d, err := time.ParseDuration(*overlay.MaxRuleDuration)
		if err != nil {
			return fmt.Errorf("config file %s: invalid max_rule_duration: %w", path, err)
		}
		c.MaxRuleDuration = d
	}
	if overlay.RuleBudget != nil {
		d, err := time.ParseDuration(*overlay.RuleBudget)
		if err != nil {
			return fmt.Errorf("config file %s: invalid rule_budget: %w", path, err)
		}
		c.RuleBudget = d
	}

	return c.Validate()
}
