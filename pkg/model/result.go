// pkg/model/result.go
package model

import "time"

// RuleApplicationResult records the outcome of applying one rule to the
// working copy. For row-scoped rules RowsAffected+RowsSkipped equals the
// row count of the working copy immediately before the rule executed;
// structural rules report the full row count as affected with zero
// skipped.
type RuleApplicationResult struct {
	Rule              PreprocessingRule
	RowsAffected      int
	RowsSkipped       int
	Duration          time.Duration
	Success           bool
	ErrorMessage      string
	ValidationMessage string
}

// BulkApplicationResult aggregates results of one sequential bulk run.
// Results preserves application order exactly.
type BulkApplicationResult struct {
	TotalRules        int
	SuccessfulRules   int
	FailedRules       int
	Results           []RuleApplicationResult
	TotalDuration     time.Duration
	TotalRowsAffected int
	SuccessRate       float64
}

// NewBulkResult initializes an aggregate for a planned number of rules
func NewBulkResult(totalRules int) *BulkApplicationResult {
	return &BulkApplicationResult{
		TotalRules: totalRules,
		Results:    make([]RuleApplicationResult, 0, totalRules),
	}
}

// Append records a per-rule result and updates the aggregate counters
func (b *BulkApplicationResult) Append(r RuleApplicationResult) {
	b.Results = append(b.Results, r)
	if r.Success {
		b.SuccessfulRules++
		b.TotalRowsAffected += r.RowsAffected
	} else {
		b.FailedRules++
	}
}

// Complete finalizes the aggregate, computing the total duration and
// success rate. A run with zero planned rules has a success rate of 0.
func (b *BulkApplicationResult) Complete(totalDuration time.Duration) {
	b.TotalDuration = totalDuration
	if b.TotalRules > 0 {
		b.SuccessRate = float64(b.SuccessfulRules) / float64(b.TotalRules)
	}
}

// RuleApplicationProgress is emitted once before each rule begins.
// RuleIndex counts rules already completed, so the first emission
// carries index 0 and percentage 0.
type RuleApplicationProgress struct {
	Rule       PreprocessingRule
	RuleIndex  int
	TotalRules int
	Percentage float64
	Message    string
}
