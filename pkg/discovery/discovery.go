// pkg/discovery/discovery.go
package discovery

import (
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/config"
	"github.com/dataforge/dataprep/pkg/model"
)

// Discovery maps detected issues to corrective preprocessing rules.
// The mapping is a fixed issue-type table; rule parameters derive from
// issue metadata, so discovery is deterministic for a given issue list.
type Discovery struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a rule discovery component
func New(cfg *config.Config, logger *zap.Logger) (*Discovery, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Discovery{
		cfg:    cfg,
		logger: logger.Named("discovery"),
	}, nil
}

// Discover derives an ordered rule list from the issues. At most one
// rule survives per target column: when several issues compete for the
// same column, the highest-severity issue wins, with structural fixes
// outranking value-level fixes on a severity tie. The remaining issues
// are picked up by the next incremental iteration. Output order is
// safe for sequential application: dedupe first, column drops second,
// value-level rules after, stable within each group.
func (d *Discovery) Discover(issues []model.QualityIssue) []model.PreprocessingRule {
	type candidate struct {
		rule  model.PreprocessingRule
		issue model.QualityIssue
		order int
	}

	// Columns with an outlier issue get median rather than mean
	// imputation, so one pass collects them up front.
	outlierColumns := make(map[string]bool)
	for _, issue := range issues {
		if issue.Type == model.IssueOutliers {
			outlierColumns[issue.Column] = true
		}
	}

	// Group candidates by target column; dataset-level rules use the
	// empty key and never conflict with column rules.
	byTarget := make(map[string]candidate)
	keys := make([]string, 0)

	for i, issue := range issues {
		rule, ok := d.ruleFor(issue, outlierColumns)
		if !ok {
			continue
		}

		cand := candidate{rule: rule, issue: issue, order: i}
		key := rule.Column
		if key == "" {
			key = "\x00" + string(rule.Kind)
		}

		existing, seen := byTarget[key]
		if !seen {
			byTarget[key] = cand
			keys = append(keys, key)
			continue
		}
		if wins(cand.issue, cand.rule, existing.issue, existing.rule) {
			cand.order = existing.order
			byTarget[key] = cand
		}
	}

	rules := make([]model.PreprocessingRule, 0, len(keys))
	orders := make(map[string]int, len(keys))
	for _, key := range keys {
		cand := byTarget[key]
		rules = append(rules, cand.rule)
		orders[cand.rule.ID] = cand.order
	}

	// Issue order already follows column declaration order, so a
	// stable sort by precedence group keeps the rest deterministic.
	sort.SliceStable(rules, func(a, b int) bool {
		pa, pb := rules[a].Kind.ApplyPrecedence(), rules[b].Kind.ApplyPrecedence()
		if pa != pb {
			return pa < pb
		}
		return orders[rules[a].ID] < orders[rules[b].ID]
	})

	d.logger.Debug("Discovered rules",
		zap.Int("issues", len(issues)),
		zap.Int("rules", len(rules)))

	return rules
}

// wins reports whether the challenger replaces the incumbent for a
// contested column.
func wins(challengerIssue model.QualityIssue, challengerRule model.PreprocessingRule,
	incumbentIssue model.QualityIssue, incumbentRule model.PreprocessingRule) bool {
	if challengerIssue.Severity != incumbentIssue.Severity {
		return challengerIssue.Severity > incumbentIssue.Severity
	}
	// Severity tie: structural fixes outrank value-level fixes, then
	// the earlier candidate stands.
	return challengerRule.Kind.ApplyPrecedence() < incumbentRule.Kind.ApplyPrecedence()
}

// ruleFor is the issue-type to transformation-kind table
func (d *Discovery) ruleFor(issue model.QualityIssue, outlierColumns map[string]bool) (model.PreprocessingRule, bool) {
	switch issue.Type {
	case model.IssueDuplicateRows:
		return d.build(issue, model.KindDedupeRows, "", nil), true

	case model.IssueMissingValues:
		if issue.MetadataFloat("ratio") > d.cfg.MissingDropRatio {
			return d.build(issue, model.KindDropColumn, issue.Column, nil), true
		}
		return d.build(issue, d.imputeKind(issue, outlierColumns), issue.Column, map[string]interface{}{
			"strategy": "fill_missing",
		}), true

	case model.IssueConstantColumn:
		return d.build(issue, model.KindDropColumn, issue.Column, nil), true

	case model.IssueEncoding:
		return d.build(issue, model.KindDropRows, issue.Column, map[string]interface{}{
			"predicate": "invalid_encoding",
		}), true

	case model.IssueTypeInconsistency:
		target := issue.MetadataString("dominant_type")
		if target == "" {
			return model.PreprocessingRule{}, false
		}
		return d.build(issue, model.KindCastType, issue.Column, map[string]interface{}{
			"target_type": target,
		}), true

	case model.IssueOutliers:
		return d.build(issue, model.KindClipOutliers, issue.Column, map[string]interface{}{
			"method":    issue.MetadataString("method"),
			"threshold": issue.MetadataFloat("threshold"),
		}), true

	case model.IssueClassImbalance:
		minority := issue.MetadataString("minority_class")
		if minority == "" {
			return model.PreprocessingRule{}, false
		}
		return d.build(issue, model.KindResampleMinorityClass, issue.Column, map[string]interface{}{
			"minority_class": minority,
			"target_ratio":   issue.MetadataFloat("target_ratio"),
		}), true

	case model.IssueHighCardinality:
		return d.build(issue, model.KindTruncateHighCardinality, issue.Column, map[string]interface{}{
			"max_categories": d.cfg.MaxCategories,
		}), true

	case model.IssueWhitespace:
		return d.build(issue, model.KindTrimWhitespace, issue.Column, nil), true

	case model.IssueDateFormat:
		return d.build(issue, model.KindNormalizeDateFormat, issue.Column, map[string]interface{}{
			"target_format": time.RFC3339,
		}), true

	default:
		return model.PreprocessingRule{}, false
	}
}

// imputeKind picks the imputation strategy from the column type
// recorded in the issue metadata: mean for well-behaved numerics,
// median when the same column also carries outliers, mode otherwise.
func (d *Discovery) imputeKind(issue model.QualityIssue, outlierColumns map[string]bool) model.TransformationKind {
	columnType := model.ColumnType(issue.MetadataString("column_type"))
	if !columnType.IsNumeric() {
		return model.KindImputeMode
	}
	if outlierColumns[issue.Column] {
		return model.KindImputeMedian
	}
	return model.KindImputeMean
}

// build assembles an immutable rule from an issue
func (d *Discovery) build(issue model.QualityIssue, kind model.TransformationKind, column string, params map[string]interface{}) model.PreprocessingRule {
	return model.PreprocessingRule{
		ID:         model.RuleID(kind, column),
		IssueIDs:   []string{issue.ID},
		Kind:       kind,
		Column:     column,
		Parameters: params,
		Priority:   int(issue.Severity),
	}
}
