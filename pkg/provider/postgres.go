// pkg/provider/postgres.go
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/config"
	"github.com/dataforge/dataprep/pkg/model"
)

// PostgresProvider implements DataProvider for PostgreSQL sources
type PostgresProvider struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
}

// NewPostgresProvider creates and validates a PostgreSQL snapshot provider
func NewPostgresProvider(ctx context.Context, cfg *config.PostgresConfig, logger *zap.Logger) (*PostgresProvider, error) {
	if cfg == nil {
		return nil, errors.New("postgres config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	logger = logger.Named("postgres-provider")

	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	db, err := sqlx.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if cfg.StatementTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("SET statement_timeout = %d", cfg.StatementTimeout.Milliseconds()),
		)
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	LogConnectionStats(logger, cfg.Database, db.DB)
	return &PostgresProvider{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// DB returns the underlying database handle
func (p *PostgresProvider) DB() *sqlx.DB {
	return p.db
}

// FetchTable loads an entire table as a snapshot
func (p *PostgresProvider) FetchTable(ctx context.Context, table string) (*model.DatasetSnapshot, error) {
	return p.FetchQuery(ctx, fmt.Sprintf("SELECT * FROM %s", table))
}

// FetchQuery loads the result of a query as a snapshot
func (p *PostgresProvider) FetchQuery(ctx context.Context, query string, args ...interface{}) (*model.DatasetSnapshot, error) {
	start := time.Now()

	rows, err := p.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("snapshot query failed: %w", err)
	}
	defer rows.Close()

	snap, err := snapshotFromRows(rows)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Fetched dataset snapshot",
		zap.Int("rows", snap.RowCount()),
		zap.Int("columns", len(snap.Columns)),
		zap.Duration("duration", time.Since(start)))
	return snap, nil
}

// Close closes the database connection
func (p *PostgresProvider) Close() error {
	p.logger.Info("Closing PostgreSQL connection")
	LogConnectionStats(p.logger, p.cfg.Database, p.db.DB)
	return p.db.Close()
}
