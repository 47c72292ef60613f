// pkg/detector/detector.go
package detector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dataforge/dataprep/pkg/config"
	"github.com/dataforge/dataprep/pkg/model"
)

// DetectorError marks a snapshot too malformed to scan: it is fatal
// and no partial issue list accompanies it.
type DetectorError struct {
	Err error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector: malformed snapshot: %v", e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }

// IsDetectorError reports whether err is (or wraps) a DetectorError
func IsDetectorError(err error) bool {
	var de *DetectorError
	return errors.As(err, &de)
}

// Detector scans a dataset snapshot and emits quality issues. It is
// pure: no mutation of the snapshot, deterministic output for a given
// snapshot and configuration.
type Detector struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a quality detector
func New(cfg *config.Config, logger *zap.Logger) (*Detector, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Detector{
		cfg:    cfg,
		logger: logger.Named("detector"),
	}, nil
}

// Detect scans the snapshot and returns issues in a stable order:
// dataset-level issues first, then per-column issues in column
// declaration order, each column's issues ranked by the fixed
// issue-type priority. Column scans run on parallel workers, but the
// merged order never depends on completion order.
func (d *Detector) Detect(ctx context.Context, snap *model.DatasetSnapshot, labelColumn string) ([]model.QualityIssue, error) {
	if snap == nil {
		return nil, &DetectorError{Err: errors.New("snapshot is nil")}
	}
	if err := snap.Validate(); err != nil {
		return nil, &DetectorError{Err: err}
	}
	if labelColumn != "" && !snap.HasColumn(labelColumn) {
		return nil, &DetectorError{Err: fmt.Errorf("label column %q not found", labelColumn)}
	}

	rows := snap.RowCount()
	issues := make([]model.QualityIssue, 0)

	// Dataset-level checks run on the calling goroutine.
	if rows > 0 {
		if issue := checkDuplicateRows(snap, d.cfg); issue != nil {
			issues = append(issues, *issue)
		}
		if labelColumn != "" {
			if issue := checkClassImbalance(snap, labelColumn, d.cfg); issue != nil {
				issues = append(issues, *issue)
			}
		}
	}

	// Per-column checks are read-only and independent, so they fan out
	// across workers. Results land in a slot per column.
	perColumn := make([][]model.QualityIssue, len(snap.Columns))
	if rows > 0 {
		workers := d.cfg.DetectorWorkers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := range snap.Columns {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				perColumn[i] = checkColumn(snap.Columns[i], rows, d.cfg)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	// Deterministic merge: column declaration order, fixed issue-type
	// priority within a column.
	for _, columnIssues := range perColumn {
		sort.SliceStable(columnIssues, func(a, b int) bool {
			return columnIssues[a].Type.MergePriority() < columnIssues[b].Type.MergePriority()
		})
		issues = append(issues, columnIssues...)
	}

	d.logger.Debug("Detection pass completed",
		zap.Int("rows", rows),
		zap.Int("columns", len(snap.Columns)),
		zap.Int("issues", len(issues)))

	return issues, nil
}

// FilterActionable returns the issues at or above the minimum severity
func FilterActionable(issues []model.QualityIssue, minSeverity model.Severity) []model.QualityIssue {
	actionable := make([]model.QualityIssue, 0, len(issues))
	for _, issue := range issues {
		if issue.Severity >= minSeverity {
			actionable = append(actionable, issue)
		}
	}
	return actionable
}

// checkColumn runs every column-scoped check against one column
func checkColumn(col model.Column, rows int, cfg *config.Config) []model.QualityIssue {
	var issues []model.QualityIssue

	appendIfFound := func(issue *model.QualityIssue) {
		if issue != nil {
			issues = append(issues, *issue)
		}
	}

	appendIfFound(checkEncoding(col, rows, cfg))
	appendIfFound(checkMissingValues(col, rows, cfg))
	appendIfFound(checkTypeInconsistency(col, cfg))
	appendIfFound(checkConstantColumn(col, rows))
	appendIfFound(checkOutliers(col, rows, cfg))
	appendIfFound(checkDateFormat(col))
	appendIfFound(checkWhitespace(col, rows))
	appendIfFound(checkHighCardinality(col, cfg))

	return issues
}
