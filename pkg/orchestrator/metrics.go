// pkg/orchestrator/metrics.go
package orchestrator

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/model"
)

// IterationMetrics tracks one detect-discover-apply cycle
type IterationMetrics struct {
	Iteration        int
	IssuesFound      int
	ActionableIssues int
	RulesDiscovered  int
	RulesApplied     int
	RulesFailed      int
	RowsAffected     int
	RowsBefore       int
	RowsAfter        int
	Duration         time.Duration
}

// RunMetrics tracks metrics across a whole incremental run
type RunMetrics struct {
	mu     sync.Mutex
	logger *zap.Logger

	StartTime         time.Time
	EndTime           time.Time
	Iterations        []IterationMetrics
	TotalRulesApplied int
	TotalRulesFailed  int
	TotalRowsAffected int
	IssueCounts       map[model.IssueType]int
}

// NewRunMetrics creates a metrics collector for one run
func NewRunMetrics(logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		logger:      logger,
		StartTime:   time.Now(),
		Iterations:  make([]IterationMetrics, 0),
		IssueCounts: make(map[model.IssueType]int),
	}
}

// RecordIteration saves metrics for one completed iteration
func (rm *RunMetrics) RecordIteration(im IterationMetrics, issues []model.QualityIssue) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.Iterations = append(rm.Iterations, im)
	rm.TotalRulesApplied += im.RulesApplied
	rm.TotalRulesFailed += im.RulesFailed
	rm.TotalRowsAffected += im.RowsAffected
	for _, issue := range issues {
		rm.IssueCounts[issue.Type]++
	}

	if rm.logger != nil {
		rm.logger.Info("Iteration completed",
			zap.Int("iteration", im.Iteration),
			zap.Int("issuesFound", im.IssuesFound),
			zap.Int("actionableIssues", im.ActionableIssues),
			zap.Int("rulesApplied", im.RulesApplied),
			zap.Int("rulesFailed", im.RulesFailed),
			zap.Int("rowsBefore", im.RowsBefore),
			zap.Int("rowsAfter", im.RowsAfter),
			zap.Duration("duration", im.Duration))
	}
}

// Complete marks the run finished
func (rm *RunMetrics) Complete() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.EndTime = time.Now()
}

// Duration returns the total run duration so far
func (rm *RunMetrics) Duration() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.EndTime.IsZero() {
		return time.Since(rm.StartTime)
	}
	return rm.EndTime.Sub(rm.StartTime)
}

// IssueSummary returns a copy of the per-type issue counts
func (rm *RunMetrics) IssueSummary() map[model.IssueType]int {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	summary := make(map[model.IssueType]int, len(rm.IssueCounts))
	for issueType, count := range rm.IssueCounts {
		summary[issueType] = count
	}
	return summary
}

// LogSummary logs run totals
func (rm *RunMetrics) LogSummary() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.logger == nil {
		return
	}
	rm.logger.Info("Run summary",
		zap.Int("iterations", len(rm.Iterations)),
		zap.Int("totalRulesApplied", rm.TotalRulesApplied),
		zap.Int("totalRulesFailed", rm.TotalRulesFailed),
		zap.Int("totalRowsAffected", rm.TotalRowsAffected),
		zap.Duration("duration", rm.EndTime.Sub(rm.StartTime)))
}
