package duckdb

import (
	"fmt"
	"net/url"
)

// Config contains DuckDB-specific options.
type Config struct {
	Path         string
	Serialize    bool
	MaxOpenConns int
}

// DefaultMaxOpenConns bounds concurrent readers on one database handle.
func DefaultMaxOpenConns() int {
	return 4
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{MaxOpenConns: DefaultMaxOpenConns()}

	path, ok := config["path"].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("path is required")
	}
	cfg.Path = path

	if serialize, ok := config["serialize"].(bool); ok {
		cfg.Serialize = serialize
	}

	if n, ok := config["max_open_conns"].(float64); ok { // JSON numbers are float64
		cfg.MaxOpenConns = int(n)
	} else if n, ok := config["max_open_conns"].(int); ok {
		cfg.MaxOpenConns = n
	}
	if cfg.MaxOpenConns < 1 {
		cfg.MaxOpenConns = 1
	}

	return cfg, nil
}

// DSN opens the file read-only with filesystem and network access disabled,
// so generated SQL cannot reach read_csv, COPY, ATTACH or httpfs.
func (c *Config) DSN() string {
	q := url.Values{}
	q.Set("access_mode", "READ_ONLY")
	q.Set("enable_external_access", "false")
	return c.Path + "?" + q.Encode()
}
