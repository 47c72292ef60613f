// pkg/model/severity.go
package model

import (
	"fmt"
	"strings"
)

// Severity ranks quality issues from informational to critical.
// Higher values are more severe.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns a string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "Info"
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	case SeverityCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// ParseSeverity converts a case-insensitive severity name to a Severity
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "info":
		return SeverityInfo, nil
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity %q", name)
	}
}

// SeverityBands maps a defect ratio to a severity. Each field is the
// exclusive lower bound of its band: a ratio strictly greater than
// Critical classifies as Critical, and so on down. A ratio sitting
// exactly on a boundary falls to the lower band, so a column that is
// exactly half missing is High rather than Critical.
type SeverityBands struct {
	Critical float64 `yaml:"critical"`
	High     float64 `yaml:"high"`
	Medium   float64 `yaml:"medium"`
}

// Classify maps a ratio in [0,1] to a severity. The boolean is false
// when the ratio is zero or negative, meaning no issue at all.
func (b SeverityBands) Classify(ratio float64) (Severity, bool) {
	switch {
	case ratio <= 0:
		return SeverityInfo, false
	case ratio > b.Critical:
		return SeverityCritical, true
	case ratio > b.High:
		return SeverityHigh, true
	case ratio > b.Medium:
		return SeverityMedium, true
	default:
		return SeverityLow, true
	}
}

// Validate checks that band boundaries are ordered and in range
func (b SeverityBands) Validate() error {
	if b.Medium < 0 || b.Critical > 1 {
		return fmt.Errorf("band boundaries must lie in [0,1]: %+v", b)
	}
	if !(b.Medium <= b.High && b.High <= b.Critical) {
		return fmt.Errorf("band boundaries must be non-decreasing: %+v", b)
	}
	return nil
}

// FailurePolicy controls how the application engine reacts to a failed rule
type FailurePolicy int

const (
	// FailFast stops scheduling further rules after the first transformation error
	FailFast FailurePolicy = iota
	// ContinueOnError records the failure and proceeds with the next rule
	ContinueOnError
)

// String returns a string representation of the failure policy
func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "FailFast"
	case ContinueOnError:
		return "ContinueOnError"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// ParseFailurePolicy converts a policy name to a FailurePolicy
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "failfast", "fail_fast":
		return FailFast, nil
	case "continueonerror", "continue_on_error", "continue":
		return ContinueOnError, nil
	default:
		return FailFast, fmt.Errorf("unknown failure policy %q", name)
	}
}
