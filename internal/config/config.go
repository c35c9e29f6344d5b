package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"pharmapulse/internal/metrics"
)

// EnvPrefix namespaces every environment variable, e.g. PHARMA_SERVER_PORT.
const EnvPrefix = "PHARMA"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Ingest    IngestConfig    `yaml:"ingest" envconfig:"INGEST"`
	Metrics   metrics.Config  `yaml:"metrics" envconfig:"METRICS"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	Scheduler SchedulerConfig `yaml:"scheduler" envconfig:"SCHEDULER"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains CORS and rate limiting configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig contains file system locations. Relative paths are resolved
// against the root directory.
type PathsConfig struct {
	RootDir       string `yaml:"root_dir" envconfig:"ROOT_DIR"`
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR"`
	MasterFile    string `yaml:"master_file" envconfig:"MASTER_FILE"`
	CacheFile     string `yaml:"cache_file" envconfig:"CACHE_FILE"`
	MoleculesFile string `yaml:"molecules_file" envconfig:"MOLECULES_FILE"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// IngestConfig tunes spreadsheet ingestion.
type IngestConfig struct {
	Teams           []string `yaml:"teams" envconfig:"TEAMS"`
	DefaultTeam     string   `yaml:"default_team" envconfig:"DEFAULT_TEAM"`
	SheetMarkers    []string `yaml:"sheet_markers" envconfig:"SHEET_MARKERS"`
	QuarterYears    []int    `yaml:"quarter_years" envconfig:"QUARTER_YEARS"`
	FallbackColumns int      `yaml:"fallback_columns" envconfig:"FALLBACK_COLUMNS"`
	Workers         int      `yaml:"workers" envconfig:"WORKERS"`
}

// StoreConfig selects the persisted fact store. Driver "csv" keeps only the
// master file; "sqlite" and "postgres" mirror facts into a SQL table.
type StoreConfig struct {
	Driver string `yaml:"driver" envconfig:"DRIVER"`
	DSN    string `yaml:"dsn" envconfig:"DSN"`
	Table  string `yaml:"table" envconfig:"TABLE"`
}

// CacheConfig controls the columnar snapshot cache.
type CacheConfig struct {
	UseParquet bool `yaml:"use_parquet" envconfig:"USE_PARQUET"`
}

// SchedulerConfig controls the background freshness check.
type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
	Schedule string `yaml:"schedule" envconfig:"SCHEDULE"`
	// AutoIngest re-ingests the team folders when a spreadsheet is newer
	// than the master. When false only the snapshot is refreshed.
	AutoIngest bool          `yaml:"auto_ingest" envconfig:"AUTO_INGEST"`
	Merge      bool          `yaml:"merge" envconfig:"MERGE"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// TelemetryConfig controls OpenTelemetry providers.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Load builds the configuration from defaults, then the first config.yaml
// found, then environment variables. Later sources win.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file. An empty path skips the
// file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := loadFromFile(configFile, cfg); err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg; keys absent from the file keep
// their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	switch c.Store.Driver {
	case "csv", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported store driver: %q", c.Store.Driver)
	}
	if c.Store.Driver != "csv" && c.Store.DSN == "" {
		return fmt.Errorf("store driver %s requires a dsn", c.Store.Driver)
	}

	switch c.Metrics.GrowthMode {
	case metrics.ModePct, metrics.ModeDelta:
	default:
		return fmt.Errorf("invalid growth mode: %q", c.Metrics.GrowthMode)
	}
	if c.Metrics.LeaderboardTopN < 0 {
		return fmt.Errorf("leaderboard top n must not be negative")
	}

	if len(c.Ingest.Teams) == 0 {
		return fmt.Errorf("at least one team folder must be configured")
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 1
	}
	if c.Ingest.FallbackColumns <= 0 {
		return fmt.Errorf("fallback columns must be positive")
	}

	if c.Scheduler.Enabled && c.Scheduler.Schedule == "" {
		return fmt.Errorf("scheduler enabled without a schedule")
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	switch c.Logging.Output {
	case "console", "stdout", "file", "both":
	default:
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			DataDir:       "data",
			MasterFile:    "data/master_data.csv",
			CacheFile:     "data/master_data.parquet",
			MoleculesFile: "data/molecules.yaml",
			LogsDir:       "logs",
		},
		Ingest: IngestConfig{
			Teams:           []string{"Team 1", "Team 2", "Team 3"},
			DefaultTeam:     "Team 1",
			SheetMarkers:    []string{"Bricks"},
			QuarterYears:    []int{2023, 2024, 2025, 2026},
			FallbackColumns: 12,
			Workers:         4,
		},
		Metrics: metrics.DefaultConfig(),
		Store: StoreConfig{
			Driver: "csv",
			Table:  "facts",
		},
		Cache: CacheConfig{
			UseParquet: true,
		},
		Scheduler: SchedulerConfig{
			Enabled:    true,
			Schedule:   "@every 5m",
			AutoIngest: true,
			Merge:      true,
			Timeout:    10 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "pharma-pulse",
			TracingEnabled: false,
			MetricsEnabled: true,
		},
	}
}
