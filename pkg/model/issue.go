// pkg/model/issue.go
package model

// IssueType identifies the kind of quality defect detected in a snapshot
type IssueType string

const (
	IssueEncoding          IssueType = "encoding_issue"
	IssueMissingValues     IssueType = "missing_values"
	IssueDuplicateRows     IssueType = "duplicate_rows"
	IssueTypeInconsistency IssueType = "type_inconsistency"
	IssueOutliers          IssueType = "outliers"
	IssueClassImbalance    IssueType = "class_imbalance"
	IssueHighCardinality   IssueType = "high_cardinality"
	IssueConstantColumn    IssueType = "constant_column"
	IssueWhitespace        IssueType = "whitespace_issues"
	IssueDateFormat        IssueType = "date_format_issue"
)

// mergePriority fixes the relative order of issue types within a single
// column when detection results are merged. Lower sorts first.
var mergePriority = map[IssueType]int{
	IssueDuplicateRows:     0,
	IssueClassImbalance:    1,
	IssueEncoding:          2,
	IssueMissingValues:     3,
	IssueTypeInconsistency: 4,
	IssueConstantColumn:    5,
	IssueOutliers:          6,
	IssueDateFormat:        7,
	IssueWhitespace:        8,
	IssueHighCardinality:   9,
}

// MergePriority returns the fixed ordering rank used when merging
// detection results; it never depends on detection completion order.
func (t IssueType) MergePriority() int {
	if p, ok := mergePriority[t]; ok {
		return p
	}
	return len(mergePriority)
}

// QualityIssue is a single quality defect found by a detection pass.
// Issues are value objects: produced fresh on every pass, never
// persisted by the engine, and linked to rules by ID only.
type QualityIssue struct {
	ID           string
	Type         IssueType
	Severity     Severity
	Column       string // empty for dataset-level issues
	Description  string
	SuggestedFix string
	Metadata     map[string]interface{}
}

// IssueID derives a deterministic issue identifier. Identifiers are
// stable across passes so replays of an identical snapshot produce
// identical issue lists.
func IssueID(t IssueType, column string) string {
	if column == "" {
		return string(t)
	}
	return string(t) + "/" + column
}

// MetadataFloat reads a float metadata entry, returning 0 if absent
func (q QualityIssue) MetadataFloat(key string) float64 {
	if q.Metadata == nil {
		return 0
	}
	if v, ok := q.Metadata[key].(float64); ok {
		return v
	}
	return 0
}

// MetadataString reads a string metadata entry, returning "" if absent
func (q QualityIssue) MetadataString(key string) string {
	if q.Metadata == nil {
		return ""
	}
	if v, ok := q.Metadata[key].(string); ok {
		return v
	}
	return ""
}
