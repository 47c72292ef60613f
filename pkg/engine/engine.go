// pkg/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/config"
	"github.com/dataforge/dataprep/pkg/model"
)

// ProgressFunc receives a progress notification before each rule
// begins. It runs synchronously on the caller's goroutine between rule
// steps; a slow sink delays the run.
type ProgressFunc func(model.RuleApplicationProgress)

// Engine applies an ordered rule list sequentially to a working copy
// it exclusively owns. Rule k+1 begins only after rule k fully
// completes, and each rule is atomic: the working copy either fully
// reflects a rule or not at all. The engine is not reentrant for a
// given working copy.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a rule application engine
func New(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Engine{
		cfg:    cfg,
		logger: logger.Named("engine"),
	}, nil
}

// Apply clones the snapshot into a private working copy and applies
// the rules in order. The input snapshot is never mutated.
//
// Cancellation is cooperative and checked only at rule boundaries, so
// a cancelled run returns the working copy at a fully-applied rule
// boundary together with the partial aggregate and the context error.
// A configured rule budget stops scheduling further rules once
// exceeded; the rule in flight is allowed to finish, bounded by the
// max single-rule duration guard.
func (e *Engine) Apply(
	ctx context.Context,
	snap *model.DatasetSnapshot,
	rules []model.PreprocessingRule,
	progress ProgressFunc,
) (*model.DatasetSnapshot, *model.BulkApplicationResult, error) {
	if snap == nil {
		return nil, nil, errors.New("snapshot cannot be nil")
	}

	working := snap.Clone()
	bulk := model.NewBulkResult(len(rules))
	start := time.Now()

	for i, rule := range rules {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("Bulk run cancelled at rule boundary",
				zap.Int("completedRules", i),
				zap.Int("totalRules", len(rules)))
			bulk.Complete(time.Since(start))
			return working, bulk, err
		}
		if e.cfg.RuleBudget > 0 && time.Since(start) > e.cfg.RuleBudget {
			e.logger.Warn("Rule budget exhausted, stopping bulk run",
				zap.Duration("budget", e.cfg.RuleBudget),
				zap.Int("completedRules", i),
				zap.Int("totalRules", len(rules)))
			break
		}

		if progress != nil {
			progress(model.RuleApplicationProgress{
				Rule:       rule,
				RuleIndex:  i,
				TotalRules: len(rules),
				Percentage: float64(i) / float64(len(rules)),
				Message:    fmt.Sprintf("applying %s", rule.ID),
			})
		}

		next, result := e.applyRule(working, rule)
		bulk.Append(result)

		if result.Success {
			working = next
			e.logger.Debug("Rule applied",
				zap.String("rule", rule.ID),
				zap.Int("rowsAffected", result.RowsAffected),
				zap.Int("rowsSkipped", result.RowsSkipped),
				zap.Duration("duration", result.Duration))
			continue
		}

		if result.ValidationMessage != "" {
			// Validation failures are non-fatal under either policy.
			e.logger.Warn("Rule no longer applicable",
				zap.String("rule", rule.ID),
				zap.String("reason", result.ValidationMessage))
			continue
		}

		e.logger.Warn("Rule failed",
			zap.String("rule", rule.ID),
			zap.String("error", result.ErrorMessage),
			zap.String("policy", e.cfg.FailurePolicy.String()))
		if e.cfg.FailurePolicy == model.FailFast {
			break
		}
	}

	bulk.Complete(time.Since(start))
	return working, bulk, nil
}

// applyRule validates and executes one rule against the working copy,
// returning the next working copy on success (nil on failure) and the
// per-rule result either way.
func (e *Engine) applyRule(working *model.DatasetSnapshot, rule model.PreprocessingRule) (*model.DatasetSnapshot, model.RuleApplicationResult) {
	result := model.RuleApplicationResult{Rule: rule}
	start := time.Now()

	if err := e.validateRule(working, rule); err != nil {
		result.Duration = time.Since(start)
		result.ValidationMessage = err.Error()
		return nil, result
	}

	fn, ok := transforms[rule.Kind]
	if !ok {
		result.Duration = time.Since(start)
		result.ErrorMessage = (&TransformationError{
			RuleID: rule.ID,
			Err:    fmt.Errorf("unknown transformation kind %q", rule.Kind),
		}).Error()
		return nil, result
	}

	next, affected, skipped, err := fn(working, rule)
	result.Duration = time.Since(start)

	if err != nil {
		result.ErrorMessage = (&TransformationError{RuleID: rule.ID, Err: err}).Error()
		return nil, result
	}
	if result.Duration > e.cfg.MaxRuleDuration {
		// An over-budget rule is a transformation error, not a silent
		// success; its output is discarded.
		result.ErrorMessage = (&TransformationError{
			RuleID: rule.ID,
			Err:    fmt.Errorf("exceeded max rule duration %v", e.cfg.MaxRuleDuration),
		}).Error()
		return nil, result
	}

	result.Success = true
	result.RowsAffected = affected
	result.RowsSkipped = skipped
	return next, result
}

// validateRule checks that a rule is still applicable to the current
// working copy before anything mutates.
func (e *Engine) validateRule(working *model.DatasetSnapshot, rule model.PreprocessingRule) error {
	if rule.Column == "" {
		return nil
	}

	col := working.Column(rule.Column)
	if col == nil {
		return &ValidationError{RuleID: rule.ID, Reason: fmt.Sprintf("column %q no longer exists", rule.Column)}
	}

	switch rule.Kind {
	case model.KindImputeMean, model.KindImputeMedian, model.KindClipOutliers:
		if !col.Type.IsNumeric() {
			return &ValidationError{
				RuleID: rule.ID,
				Reason: fmt.Sprintf("column %q is %s, not numeric", rule.Column, col.Type),
			}
		}
	}
	return nil
}
