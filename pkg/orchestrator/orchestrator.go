// pkg/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/config"
	"github.com/dataforge/dataprep/pkg/detector"
	"github.com/dataforge/dataprep/pkg/discovery"
	"github.com/dataforge/dataprep/pkg/engine"
	"github.com/dataforge/dataprep/pkg/model"
)

// RunReport is the outcome of one incremental preprocessing run.
// History preserves one aggregate per iteration in execution order.
// RemainingIssues are the actionable issues outstanding at the last
// detection pass; empty when the run converged.
type RunReport struct {
	RunID           string
	Iterations      int
	Converged       bool
	Final           *model.DatasetSnapshot
	History         []model.BulkApplicationResult
	RemainingIssues []model.QualityIssue
	Duration        time.Duration
}

// Orchestrator repeats detect, discover, apply until no actionable
// issue remains or the iteration cap is hit. Iterations run strictly
// sequentially: each depends on the previous iteration's snapshot.
type Orchestrator struct {
	cfg       *config.Config
	detector  *detector.Detector
	discovery *discovery.Discovery
	engine    *engine.Engine
	metrics   *RunMetrics
	logger    *zap.Logger
}

// New creates an orchestrator and its components from one configuration
func New(cfg *config.Config, logger *zap.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	det, err := detector.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	disc, err := discovery.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery: %w", err)
	}
	eng, err := engine.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	return &Orchestrator{
		cfg:       cfg,
		detector:  det,
		discovery: disc,
		engine:    eng,
		metrics:   NewRunMetrics(logger.Named("metrics")),
		logger:    logger.Named("orchestrator"),
	}, nil
}

// Metrics exposes the run metrics collector
func (o *Orchestrator) Metrics() *RunMetrics {
	return o.metrics
}

// Run executes the incremental loop against the snapshot. The input
// snapshot is never mutated; the report carries the cleaned copy.
//
// The loop terminates with Converged=true once a detection pass yields
// nothing at or above the configured minimum severity, and with
// Converged=false when the iteration cap is reached, an iteration makes
// no progress (plateau), or a FailFast run stops on a transformation
// error. It never loops unboundedly.
func (o *Orchestrator) Run(ctx context.Context, snap *model.DatasetSnapshot, labelColumn string, progress engine.ProgressFunc) (*RunReport, error) {
	if snap == nil {
		return nil, errors.New("snapshot cannot be nil")
	}

	report := &RunReport{
		RunID:   uuid.New().String(),
		Final:   snap,
		History: make([]model.BulkApplicationResult, 0, o.cfg.MaxIncrementalIterations),
	}
	logger := o.logger.With(zap.String("runID", report.RunID))
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		o.metrics.Complete()
		o.metrics.LogSummary()
	}()

	logger.Info("Starting incremental preprocessing run",
		zap.Int("rows", snap.RowCount()),
		zap.Int("columns", len(snap.Columns)),
		zap.Int("maxIterations", o.cfg.MaxIncrementalIterations),
		zap.String("minActionableSeverity", o.cfg.MinActionableSeverity.String()),
		zap.String("failurePolicy", o.cfg.FailurePolicy.String()))

	current := snap
	for iteration := 0; iteration < o.cfg.MaxIncrementalIterations; iteration++ {
		iterStart := time.Now()

		issues, err := o.detector.Detect(ctx, current, labelColumn)
		if err != nil {
			// Detector errors are fatal; no partial result accompanies them.
			return nil, fmt.Errorf("iteration %d: %w", iteration, err)
		}

		actionable := detector.FilterActionable(issues, o.cfg.MinActionableSeverity)
		report.RemainingIssues = actionable
		if len(actionable) == 0 {
			report.Converged = true
			logger.Info("Converged: no actionable issues remain",
				zap.Int("iteration", iteration),
				zap.Int("totalIssues", len(issues)))
			break
		}

		rules := o.discovery.Discover(actionable)
		if len(rules) == 0 {
			// Actionable issues without corrective rules cannot make
			// progress; retrying would repeat identical work.
			logger.Warn("Plateau: no rules discovered for actionable issues",
				zap.Int("iteration", iteration),
				zap.Int("actionableIssues", len(actionable)))
			break
		}

		rowsBefore := current.RowCount()
		next, bulk, applyErr := o.engine.Apply(ctx, current, rules, progress)
		report.History = append(report.History, *bulk)
		report.Final = next
		report.Iterations = iteration + 1

		o.metrics.RecordIteration(IterationMetrics{
			Iteration:        iteration,
			IssuesFound:      len(issues),
			ActionableIssues: len(actionable),
			RulesDiscovered:  len(rules),
			RulesApplied:     bulk.SuccessfulRules,
			RulesFailed:      bulk.FailedRules,
			RowsAffected:     bulk.TotalRowsAffected,
			RowsBefore:       rowsBefore,
			RowsAfter:        next.RowCount(),
			Duration:         time.Since(iterStart),
		}, issues)

		if applyErr != nil {
			// Cancelled at a rule boundary; the partial history stands.
			return report, applyErr
		}

		current = next

		if bulk.SuccessfulRules == 0 {
			logger.Warn("Plateau: iteration applied no rules successfully",
				zap.Int("iteration", iteration))
			break
		}
		if o.cfg.FailurePolicy == model.FailFast && bulk.FailedRules > 0 {
			logger.Warn("Stopping run after FailFast transformation error",
				zap.Int("iteration", iteration))
			break
		}
	}

	if !report.Converged && report.Iterations > 0 {
		// Re-detect so the report reflects the final snapshot rather
		// than the state before the last apply pass.
		if issues, err := o.detector.Detect(ctx, report.Final, labelColumn); err == nil {
			report.RemainingIssues = detector.FilterActionable(issues, o.cfg.MinActionableSeverity)
		}
	}

	if !report.Converged {
		logger.Warn("Run finished without convergence",
			zap.Int("iterations", report.Iterations),
			zap.Int("remainingIssues", len(report.RemainingIssues)))
	}

	return report, nil
}
