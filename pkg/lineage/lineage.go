// pkg/lineage/lineage.go
package lineage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/model"
)

// Recorder persists per-rule application outcomes so preprocessing
// runs stay auditable after the fact
type Recorder struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRecorder creates a Recorder and ensures the lineage table exists
func NewRecorder(db *sqlx.DB, logger *zap.Logger) (*Recorder, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	recorder := &Recorder{
		db:     db,
		logger: logger,
	}

	if err := recorder.setupLineageTable(); err != nil {
		return nil, fmt.Errorf("failed to setup lineage table: %w", err)
	}

	return recorder, nil
}

// setupLineageTable ensures the preprocessing_lineage tracking table exists
func (r *Recorder) setupLineageTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS public.preprocessing_lineage (
			id SERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			iteration INT NOT NULL,
			rule_id TEXT NOT NULL,
			rule_kind TEXT NOT NULL,
			column_name TEXT,
			rows_affected INT NOT NULL,
			rows_skipped INT NOT NULL,
			duration_ms BIGINT NOT NULL,
			success BOOLEAN NOT NULL,
			error_message TEXT,
			validation_message TEXT,
			recorded_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := r.db.ExecContext(ctx, createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create tracking table: %w", err)
	}

	r.logger.Info("Ensured preprocessing_lineage table exists")
	return nil
}

// RecordIteration batch inserts one iteration's rule results in a
// single transaction
func (r *Recorder) RecordIteration(ctx context.Context, runID string, iteration int, bulk *model.BulkApplicationResult) error {
	if bulk == nil || len(bulk.Results) == 0 {
		return nil
	}

	insertCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := r.db.BeginTxx(insertCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.Error(err))
			}
		}
	}()

	stmt, err := tx.PrepareContext(insertCtx, `
		INSERT INTO public.preprocessing_lineage
		(run_id, iteration, rule_id, rule_kind, column_name,
		 rows_affected, rows_skipped, duration_ms, success,
		 error_message, validation_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, result := range bulk.Results {
		_, err = stmt.ExecContext(insertCtx,
			runID,
			iteration,
			result.Rule.ID,
			string(result.Rule.Kind),
			toNullableString(result.Rule.Column),
			result.RowsAffected,
			result.RowsSkipped,
			result.Duration.Milliseconds(),
			result.Success,
			toNullableString(result.ErrorMessage),
			toNullableString(result.ValidationMessage),
		)
		if err != nil {
			return fmt.Errorf("failed to insert lineage record: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info("Recorded rule lineage",
		zap.String("runID", runID),
		zap.Int("iteration", iteration),
		zap.Int("count", len(bulk.Results)))
	return nil
}

// toNullableString converts empty strings to NULL for storage
func toNullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
