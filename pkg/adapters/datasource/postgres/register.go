package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        string(datasource.DialectPostgres),
			DisplayName: "PostgreSQL",
			Description: "PostgreSQL 12+ with the fuzzystrmatch extension, read-only sessions",
		},
		QueryExecutorFactory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.QueryExecutor, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewQueryExecutor(ctx, cfg, logger)
		},
	})
}
