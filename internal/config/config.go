package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
// Defaults live in Default(); envconfig only overrides variables that are set.
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Dashboard  DashboardConfig  `yaml:"dashboard" envconfig:"DASHBOARD"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Publish    PublishConfig    `yaml:"publish" envconfig:"PUBLISH"`
	Supervisor SupervisorConfig `yaml:"supervisor" envconfig:"SUPERVISOR"`
	Nightly    NightlyConfig    `yaml:"nightly" envconfig:"NIGHTLY"`
	History    HistoryConfig    `yaml:"history" envconfig:"HISTORY"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains the upload API server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// DashboardConfig contains the dashboard server configuration
type DashboardConfig struct {
	Host        string `yaml:"host" envconfig:"HOST"`
	Port        int    `yaml:"port" envconfig:"PORT"`
	PreviewRows int    `yaml:"preview_rows" envconfig:"PREVIEW_ROWS"`
}

// SecurityConfig contains security-related configuration
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

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	Root string `yaml:"root" envconfig:"ROOT"`
}

// PublishConfig controls how processed artifacts are written
type PublishConfig struct {
	// AtomicLatest writes latest.csv through a temp file and rename.
	AtomicLatest bool `yaml:"atomic_latest" envconfig:"ATOMIC_LATEST"`
}

// SupervisorConfig controls the combined launcher
type SupervisorConfig struct {
	StartupDelay  time.Duration `yaml:"startup_delay" envconfig:"STARTUP_DELAY"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace" envconfig:"SHUTDOWN_GRACE"`
}

// NightlyConfig controls the in-process scheduler. Zero disables it.
type NightlyConfig struct {
	Interval   time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	RunOnStart bool          `yaml:"run_on_start" envconfig:"RUN_ON_START"`
}

// HistoryConfig controls the ingestion ledger
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Path    string `yaml:"path" envconfig:"DB_PATH"`
}

// TelemetryConfig controls OpenTelemetry setup
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
}

// Load loads configuration from defaults, an optional YAML file, an optional
// .env file and the environment. An empty configFile searches the usual
// locations.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// loadDotEnv loads a .env file without overriding variables already set
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// ResolvePaths builds the data layout for this configuration.
func (c *Config) ResolvePaths() (*Paths, error) {
	return NewPaths(c.Paths.Root)
}

// HistoryPath returns the ledger location, defaulting into the data directory.
func (c *Config) HistoryPath(paths *Paths) string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return paths.HistoryDB
}

// APIAddr returns the listen address of the upload API.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DashboardAddr returns the listen address of the dashboard.
func (c *Config) DashboardAddr() string {
	return fmt.Sprintf("%s:%d", c.Dashboard.Host, c.Dashboard.Port)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("invalid dashboard port: %d", c.Dashboard.Port)
	}

	if c.Server.Port == c.Dashboard.Port && c.Server.Host == c.Dashboard.Host {
		return fmt.Errorf("server and dashboard cannot share port %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	if c.Dashboard.PreviewRows <= 0 {
		return fmt.Errorf("dashboard preview rows must be positive")
	}

	if c.Supervisor.ShutdownGrace <= 0 {
		return fmt.Errorf("supervisor shutdown grace must be positive")
	}

	if c.Supervisor.StartupDelay < 0 {
		return fmt.Errorf("supervisor startup delay cannot be negative")
	}

	if c.Nightly.Interval < 0 {
		return fmt.Errorf("nightly interval cannot be negative")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid logging output %q", c.Logging.Output)
	}

	switch c.Logging.Format {
	case "":
		c.Logging.Format = "json"
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
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
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            DefaultAPIPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			MaxUploadBytes:  DefaultMaxUploadSize,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Dashboard: DashboardConfig{
			Host:        "0.0.0.0",
			Port:        DefaultDashboardPort,
			PreviewRows: DefaultPreviewRows,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"*"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   20,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "console",
			FilePath:    "logs/app.log",
			Development: false,
		},
		Publish: PublishConfig{
			AtomicLatest: true,
		},
		Supervisor: SupervisorConfig{
			StartupDelay:  DefaultStartupDelay,
			ShutdownGrace: DefaultShutdownGrace,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "flsd",
			MetricsEnabled: true,
			TracingEnabled: false,
		},
	}
}
