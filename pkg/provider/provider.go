// pkg/provider/provider.go
package provider

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/model"
)

// DataProvider loads immutable dataset snapshots from a source. Every
// call returns a fresh snapshot; providers never hand out shared
// mutable state.
type DataProvider interface {
	// FetchTable loads an entire table as a snapshot
	FetchTable(ctx context.Context, table string) (*model.DatasetSnapshot, error)

	// FetchQuery loads the result of an arbitrary query as a snapshot
	FetchQuery(ctx context.Context, query string, args ...interface{}) (*model.DatasetSnapshot, error)

	// Close releases the provider's resources
	Close() error
}

// ConnStats contains standardized connection statistics
type ConnStats struct {
	OpenConnections int
	InUse           int
	Idle            int
	MaxOpenConns    int
}

// LogConnectionStats logs connection pool statistics
func LogConnectionStats(logger *zap.Logger, name string, db *sql.DB) {
	stats := db.Stats()
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int("max_open", stats.MaxOpenConnections),
	)
}

// PingWithTimeout attempts to ping a database with a timeout
func PingWithTimeout(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- db.PingContext(pingCtx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-pingCtx.Done():
		return fmt.Errorf("ping timed out after %v: %w", timeout, pingCtx.Err())
	}
}

// ApplyConnectionSettings configures database connection pool settings
func ApplyConnectionSettings(db *sqlx.DB, maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	if maxIdleTime > 0 {
		db.SetConnMaxIdleTime(maxIdleTime)
	}
}

// snapshotFromRows drains a result set into a column-oriented snapshot.
// Driver type names seed the column types; columns the driver reports
// as text are re-inferred from the observed values so that numeric or
// datetime data stored as text still gets a useful type.
func snapshotFromRows(rows *sqlx.Rows) (*model.DatasetSnapshot, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("result set has no columns")
	}

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	columns := make([]model.Column, len(names))
	for i, name := range names {
		columns[i] = model.Column{
			Name:   name,
			Type:   driverColumnType(colTypes[i].DatabaseTypeName()),
			Values: make([]interface{}, 0, 64),
		}
	}

	for rows.Next() {
		raw, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, cell := range raw {
			columns[i].Values = append(columns[i].Values, normalizeCell(cell))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	for i := range columns {
		if columns[i].Type == model.TypeString {
			columns[i].Type = inferColumnType(columns[i].Values)
		}
	}

	return model.NewSnapshot(columns)
}

// driverColumnType maps a driver-reported database type name to a
// snapshot column type. Unknown names fall back to string.
func driverColumnType(dbType string) model.ColumnType {
	switch strings.ToUpper(dbType) {
	case "INT", "INT2", "INT4", "INT8", "BIGINT", "SMALLINT", "INTEGER", "SERIAL", "BIGSERIAL", "FIXED", "NUMBER":
		return model.TypeInteger
	case "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE PRECISION", "NUMERIC", "DECIMAL", "FLOAT":
		return model.TypeFloat
	case "BOOL", "BOOLEAN":
		return model.TypeBoolean
	case "DATE", "TIME", "TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP_NTZ", "TIMESTAMP_LTZ", "TIMESTAMP_TZ", "DATETIME":
		return model.TypeDateTime
	default:
		return model.TypeString
	}
}

// normalizeCell converts driver values into snapshot cell values.
// Byte slices become strings; NULL stays nil.
func normalizeCell(cell interface{}) interface{} {
	switch v := cell.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	default:
		return v
	}
}

// inferColumnType picks the dominant type of the non-missing values
func inferColumnType(values []interface{}) model.ColumnType {
	counts := make(map[model.ColumnType]int)
	total := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		counts[model.InferType(v)]++
		total++
	}
	if total == 0 {
		return model.TypeString
	}

	best := model.TypeString
	bestCount := 0
	for _, t := range []model.ColumnType{
		model.TypeInteger, model.TypeFloat, model.TypeBoolean,
		model.TypeDateTime, model.TypeString,
	} {
		if counts[t] > bestCount {
			best = t
			bestCount = counts[t]
		}
	}
	// Mixed int and float columns are float
	if best == model.TypeInteger && counts[model.TypeFloat] > 0 {
		return model.TypeFloat
	}
	return best
}

// ValidateLabelColumn checks that a label column is usable as a
// supervised training target: it must exist and contain at least one
// non-missing value.
func ValidateLabelColumn(snap *model.DatasetSnapshot, label string) error {
	if label == "" {
		return nil
	}
	col := snap.Column(label)
	if col == nil {
		return fmt.Errorf("label column %q not found in dataset", label)
	}
	if col.MissingCount() == len(col.Values) {
		return fmt.Errorf("label column %q contains no values", label)
	}
	return nil
}
