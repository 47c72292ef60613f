// pkg/provider/snowflake.go
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/config"
	"github.com/dataforge/dataprep/pkg/model"
)

// SnowflakeProvider implements DataProvider for Snowflake sources
type SnowflakeProvider struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.SnowflakeConfig
}

// NewSnowflakeProvider creates and validates a Snowflake snapshot provider
func NewSnowflakeProvider(ctx context.Context, cfg *config.SnowflakeConfig, logger *zap.Logger) (*SnowflakeProvider, error) {
	if cfg == nil {
		return nil, errors.New("snowflake config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	logger = logger.Named("snowflake-provider")

	sfConfig := &sf.Config{
		Account:       cfg.Account,
		User:          cfg.User,
		Password:      cfg.Password,
		Database:      cfg.Database,
		Schema:        cfg.Schema,
		Warehouse:     cfg.Warehouse,
		Role:          cfg.Role,
		Authenticator: cfg.Authenticator,
	}

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	dsn, err := sf.DSN(sfConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}

	db, err := sqlx.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Snowflake connection: %w", err)
	}

	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if cfg.QueryTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d",
				int(cfg.QueryTimeout.Seconds())),
		)
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	if err := PingWithTimeout(ctx, db, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	LogConnectionStats(logger, cfg.Database, db.DB)
	return &SnowflakeProvider{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// DB returns the underlying database handle
func (p *SnowflakeProvider) DB() *sqlx.DB {
	return p.db
}

// FetchTable loads an entire table as a snapshot
func (p *SnowflakeProvider) FetchTable(ctx context.Context, table string) (*model.DatasetSnapshot, error) {
	return p.FetchQuery(ctx, fmt.Sprintf("SELECT * FROM %s", table))
}

// FetchQuery loads the result of a query as a snapshot
func (p *SnowflakeProvider) FetchQuery(ctx context.Context, query string, args ...interface{}) (*model.DatasetSnapshot, error) {
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
func (p *SnowflakeProvider) Close() error {
	p.logger.Info("Closing Snowflake connection")
	LogConnectionStats(p.logger, p.cfg.Database, p.db.DB)
	return p.db.Close()
}
