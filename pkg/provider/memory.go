// pkg/provider/memory.go
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/dataforge/dataprep/pkg/model"
)

// MemoryProvider serves snapshots from an in-memory table registry.
// It backs local runs and tests where no database is available.
type MemoryProvider struct {
	tables map[string]*model.DatasetSnapshot
}

// NewMemoryProvider creates a provider over the given named snapshots
func NewMemoryProvider(tables map[string]*model.DatasetSnapshot) (*MemoryProvider, error) {
	if len(tables) == 0 {
		return nil, errors.New("at least one table is required")
	}
	return &MemoryProvider{tables: tables}, nil
}

// FetchTable returns a clone of the registered snapshot
func (p *MemoryProvider) FetchTable(ctx context.Context, table string) (*model.DatasetSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, ok := p.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %q not found", table)
	}
	return snap.Clone(), nil
}

// FetchQuery is unsupported for in-memory sources
func (p *MemoryProvider) FetchQuery(ctx context.Context, query string, args ...interface{}) (*model.DatasetSnapshot, error) {
	return nil, errors.New("queries are not supported by the in-memory provider")
}

// Close releases nothing for in-memory sources
func (p *MemoryProvider) Close() error {
	return nil
}
