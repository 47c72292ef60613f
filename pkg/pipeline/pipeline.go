// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/config"
	"github.com/dataforge/dataprep/pkg/engine"
	"github.com/dataforge/dataprep/pkg/lineage"
	"github.com/dataforge/dataprep/pkg/model"
	"github.com/dataforge/dataprep/pkg/orchestrator"
	"github.com/dataforge/dataprep/pkg/provider"
)

// Training consumes a cleaned snapshot once preprocessing completes.
// Implementations receive the full run report so they can decide what
// a non-converged dataset is worth.
type Training interface {
	Train(ctx context.Context, snap *model.DatasetSnapshot, report *orchestrator.RunReport) error
}

// Pipeline wires a snapshot provider, the incremental orchestrator and
// an optional lineage recorder into one end-to-end preprocessing run
type Pipeline struct {
	cfg          *config.Config
	provider     provider.DataProvider
	orchestrator *orchestrator.Orchestrator
	recorder     *lineage.Recorder
	training     Training
	logger       *zap.Logger
}

// New creates a pipeline. The lineage recorder may be nil when no
// audit sink is configured.
func New(cfg *config.Config, dp provider.DataProvider, recorder *lineage.Recorder, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if dp == nil {
		return nil, errors.New("data provider cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	orch, err := orchestrator.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	return &Pipeline{
		cfg:          cfg,
		provider:     dp,
		orchestrator: orch,
		recorder:     recorder,
		logger:       logger.Named("pipeline"),
	}, nil
}

// WithTraining attaches a training consumer invoked after a successful run
func (p *Pipeline) WithTraining(t Training) *Pipeline {
	p.training = t
	return p
}

// Run fetches a table, validates the label column, drives the
// incremental preprocessing loop over it, and persists the lineage of
// every applied rule. The report carries the cleaned snapshot.
func (p *Pipeline) Run(ctx context.Context, table, labelColumn string, progress engine.ProgressFunc) (*orchestrator.RunReport, error) {
	start := time.Now()

	snap, err := p.provider.FetchTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch table %s: %w", table, err)
	}

	if err := provider.ValidateLabelColumn(snap, labelColumn); err != nil {
		return nil, fmt.Errorf("label validation failed: %w", err)
	}

	p.logger.Info("Starting preprocessing pipeline",
		zap.String("table", table),
		zap.String("labelColumn", labelColumn),
		zap.Int("rows", snap.RowCount()),
		zap.Int("columns", len(snap.Columns)))

	report, runErr := p.orchestrator.Run(ctx, snap, labelColumn, progress)
	if report != nil && p.recorder != nil {
		for i := range report.History {
			if err := p.recorder.RecordIteration(ctx, report.RunID, i, &report.History[i]); err != nil {
				// Lineage failures never invalidate the run itself
				p.logger.Error("Failed to record lineage",
					zap.String("runID", report.RunID),
					zap.Int("iteration", i),
					zap.Error(err))
			}
		}
	}
	if runErr != nil {
		return report, runErr
	}

	if p.training != nil {
		if err := p.training.Train(ctx, report.Final, report); err != nil {
			return report, fmt.Errorf("training handoff failed: %w", err)
		}
	}

	p.logger.Info("Preprocessing pipeline completed",
		zap.String("table", table),
		zap.String("runID", report.RunID),
		zap.Bool("converged", report.Converged),
		zap.Int("iterations", report.Iterations),
		zap.Int("remainingIssues", len(report.RemainingIssues)),
		zap.Duration("duration", time.Since(start)))

	return report, nil
}
