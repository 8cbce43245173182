package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/retry"
)

// DatasourceAdapterInfo describes a registered engine adapter.
type DatasourceAdapterInfo struct {
	Type        string `json:"type"`         // "duckdb", "postgres"
	DisplayName string `json:"display_name"` // "DuckDB", "PostgreSQL"
	Description string `json:"description"`
}

// QueryExecutorFactory opens an executor from a generic option map.
type QueryExecutorFactory func(ctx context.Context, config map[string]any, logger *zap.Logger) (QueryExecutor, error)

// DatasourceAdapterRegistration contains info + factory for creating executors.
type DatasourceAdapterRegistration struct {
	Info                 DatasourceAdapterInfo
	QueryExecutorFactory QueryExecutorFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DatasourceAdapterRegistration)
)

// Register is called by each adapter's init() function.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetQueryExecutorFactory returns the factory for an engine type, or nil.
func GetQueryExecutorFactory(dsType string) QueryExecutorFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.QueryExecutorFactory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}

// Open creates an executor for dsType and pings it, retrying transient
// failures such as a database that is still starting or a locked file.
func Open(ctx context.Context, dsType string, config map[string]any, retryCfg *retry.Config, logger *zap.Logger) (QueryExecutor, error) {
	factory := GetQueryExecutorFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported engine type: %s (not compiled in)", dsType)
	}

	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	cfg := *retryCfg
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("Engine not ready, retrying",
			zap.String("engine", dsType),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	return retry.DoWithResult(ctx, &cfg, func() (QueryExecutor, error) {
		exec, err := factory(ctx, config, logger)
		if err != nil {
			return nil, err
		}
		if err := exec.Ping(ctx); err != nil {
			_ = exec.Close()
			return nil, fmt.Errorf("ping %s: %w", dsType, err)
		}
		return exec, nil
	})
}
