package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/election-assistant/pkg/apperrors"
)

// DefaultConfigPath is read by Load when no explicit path is given.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for the election assistant.
// Values come from config.yaml with environment variable overrides.
// Secrets (API keys, database passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr       string        `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port           string        `yaml:"port" env:"PORT" env-default:"3443"`
	Env            string        `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"60s"`
	Version        string        `yaml:"-"` // Set at load time, not from config

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`

	// SchemaPath points at the schema registry source (JSON or YAML).
	SchemaPath string `yaml:"schema_path" env:"SCHEMA_PATH" env-default:"schema_for_agent.json"`

	Engine EngineConfig `yaml:"engine"`
	LLM    LLMConfig    `yaml:"llm"`

	// GreetingCacheSize bounds the number of memoized greeting replies.
	GreetingCacheSize int `yaml:"greeting_cache_size" env:"GREETING_CACHE_SIZE" env-default:"100"`

	MCP     MCPConfig     `yaml:"mcp"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// EngineConfig selects and configures the read-only data engine.
type EngineConfig struct {
	// Type is "duckdb" or "postgres".
	Type string `yaml:"type" env:"ENGINE_TYPE" env-default:"duckdb"`

	// DuckDB database file.
	Path string `yaml:"path" env:"ENGINE_PATH" env-default:"data/database/election_ci.db"`

	// PostgreSQL connection.
	Host     string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User     string `yaml:"user" env:"PGUSER" env-default:"election"`
	Password string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"PGDATABASE" env-default:"election_ci"`
	SSLMode  string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	// Serialize forces one query at a time for drivers without concurrent read support.
	Serialize    bool  `yaml:"serialize" env:"ENGINE_SERIALIZE" env-default:"false"`
	MaxOpenConns int32 `yaml:"max_open_conns" env:"ENGINE_MAX_OPEN_CONNS" env-default:"4"`
}

// Options flattens the engine settings into the generic map consumed by datasource factories.
func (e EngineConfig) Options() map[string]any {
	return map[string]any{
		"path":           e.Path,
		"host":           ResolveHostForDocker(e.Host),
		"port":           e.Port,
		"user":           e.User,
		"password":       e.Password,
		"database":       e.Database,
		"ssl_mode":       e.SSLMode,
		"serialize":      e.Serialize,
		"max_open_conns": int(e.MaxOpenConns),
	}
}

// LLMConfig configures the text-generation oracle.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint, including Ollama) or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL  string `yaml:"base_url" env:"LLM_BASE_URL" env-default:"http://localhost:11434/v1"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	SQLModel       string `yaml:"sql_model" env:"LLM_SQL_MODEL" env-default:"llama3"`
	NarrativeModel string `yaml:"narrative_model" env:"LLM_NARRATIVE_MODEL" env-default:"mistral"`

	MaxTokens          int `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"150"`
	NarrativeMaxTokens int `yaml:"narrative_max_tokens" env:"LLM_NARRATIVE_MAX_TOKENS" env-default:"256"`

	CircuitThreshold int           `yaml:"circuit_threshold" env:"LLM_CIRCUIT_THRESHOLD" env-default:"5"`
	CircuitReset     time.Duration `yaml:"circuit_reset" env:"LLM_CIRCUIT_RESET" env-default:"30s"`
}

// MCPConfig toggles the MCP tool surface.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigPath, version)
}

// LoadFrom reads configuration from path. When the file does not exist,
// configuration is taken from the environment alone.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("%w: read environment: %v", apperrors.ErrConfig, err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", apperrors.ErrConfig, path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
	}

	cfg.LLM.BaseURL = ResolveURLForDocker(cfg.LLM.BaseURL)

	return cfg, nil
}

func (c *Config) validate() error {
	c.Engine.Type = strings.ToLower(strings.TrimSpace(c.Engine.Type))
	switch c.Engine.Type {
	case "duckdb":
		if c.Engine.Path == "" {
			return fmt.Errorf("engine.path is required for duckdb")
		}
	case "postgres":
		if c.Engine.Host == "" || c.Engine.Database == "" {
			return fmt.Errorf("engine.host and engine.database are required for postgres")
		}
	default:
		return fmt.Errorf("unsupported engine type %q (expected duckdb or postgres)", c.Engine.Type)
	}

	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q (expected openai or anthropic)", c.LLM.Provider)
	}
	if c.LLM.Provider == "anthropic" && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required for the anthropic provider")
	}

	if c.GreetingCacheSize < 1 {
		return fmt.Errorf("greeting_cache_size must be positive, got %d", c.GreetingCacheSize)
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}
