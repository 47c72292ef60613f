// pkg/provider/factory.go
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dataforge/dataprep/pkg/config"
)

// Factory creates snapshot providers from configuration
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new provider factory
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// Create builds a provider for the named source kind.
// Supported kinds are "postgres" and "snowflake".
func (f *Factory) Create(ctx context.Context, kind string) (DataProvider, error) {
	switch kind {
	case "postgres":
		if f.cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres source requested but no postgres configuration loaded")
		}
		f.logger.Info("Creating PostgreSQL provider")
		return NewPostgresProvider(ctx, f.cfg.Postgres, f.logger)
	case "snowflake":
		if f.cfg.Snowflake == nil {
			return nil, fmt.Errorf("snowflake source requested but no snowflake configuration loaded")
		}
		f.logger.Info("Creating Snowflake provider")
		return NewSnowflakeProvider(ctx, f.cfg.Snowflake, f.logger)
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", kind)
	}
}
