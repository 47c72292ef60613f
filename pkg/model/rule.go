// pkg/model/rule.go
package model

// TransformationKind is the closed set of corrective transformations
// the application engine knows how to execute.
type TransformationKind string

const (
	KindDropColumn              TransformationKind = "drop_column"
	KindDropRows                TransformationKind = "drop_rows"
	KindImputeMean              TransformationKind = "impute_mean"
	KindImputeMedian            TransformationKind = "impute_median"
	KindImputeMode              TransformationKind = "impute_mode"
	KindTrimWhitespace          TransformationKind = "trim_whitespace"
	KindCastType                TransformationKind = "cast_type"
	KindClipOutliers            TransformationKind = "clip_outliers"
	KindDedupeRows              TransformationKind = "dedupe_rows"
	KindResampleMinorityClass   TransformationKind = "resample_minority_class"
	KindTruncateHighCardinality TransformationKind = "truncate_high_cardinality"
	KindNormalizeDateFormat     TransformationKind = "normalize_date_format"
)

// applyPrecedence orders rules for safe sequential application:
// dataset-level structural fixes run before column-level value fixes,
// so a value rule never references rows or columns a structural rule
// already removed. Lower runs first.
var applyPrecedence = map[TransformationKind]int{
	KindDedupeRows:              0,
	KindDropColumn:              1,
	KindDropRows:                2,
	KindCastType:                3,
	KindTrimWhitespace:          3,
	KindNormalizeDateFormat:     3,
	KindImputeMean:              3,
	KindImputeMedian:            3,
	KindImputeMode:              3,
	KindClipOutliers:            3,
	KindTruncateHighCardinality: 3,
	KindResampleMinorityClass:   4,
}

// ApplyPrecedence returns the ordering group for sequential application
func (k TransformationKind) ApplyPrecedence() int {
	if p, ok := applyPrecedence[k]; ok {
		return p
	}
	return len(applyPrecedence)
}

// Structural reports whether the transformation changes dataset shape
// rather than individual cell values. Structural fixes outrank
// value-level fixes when conflicting rules target the same column.
func (k TransformationKind) Structural() bool {
	switch k {
	case KindDropColumn, KindDropRows, KindDedupeRows, KindResampleMinorityClass:
		return true
	default:
		return false
	}
}

// PreprocessingRule is a deterministic corrective transformation
// derived from one or more issues. Immutable once discovered; the
// originating issues are referenced by ID only.
type PreprocessingRule struct {
	ID         string
	IssueIDs   []string
	Kind       TransformationKind
	Column     string // empty for dataset-level rules
	Parameters map[string]interface{}
	Priority   int
}

// RuleID derives a deterministic rule identifier
func RuleID(k TransformationKind, column string) string {
	if column == "" {
		return string(k)
	}
	return string(k) + "/" + column
}

// ParamString reads a string parameter, returning the fallback if absent
func (r PreprocessingRule) ParamString(key, fallback string) string {
	if r.Parameters == nil {
		return fallback
	}
	if v, ok := r.Parameters[key].(string); ok {
		return v
	}
	return fallback
}

// ParamFloat reads a float parameter, returning the fallback if absent
func (r PreprocessingRule) ParamFloat(key string, fallback float64) float64 {
	if r.Parameters == nil {
		return fallback
	}
	switch v := r.Parameters[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

// ParamInt reads an integer parameter, returning the fallback if absent
func (r PreprocessingRule) ParamInt(key string, fallback int) int {
	if r.Parameters == nil {
		return fallback
	}
	switch v := r.Parameters[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}
