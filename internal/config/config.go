// Package config loads the portal configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the portal API.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Portal        PortalConfig        `yaml:"portal"`
	Downloads     DownloadsConfig     `yaml:"downloads"`
	Exports       ExportsConfig       `yaml:"exports"`
	Logging       LoggingConfig       `yaml:"logging"`
	CORS          CORSConfig          `yaml:"cors"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name           string        `yaml:"name"`
	Version        string        `yaml:"version"`
	Port           int           `yaml:"port" env:"PORTAL_PORT"`
	Debug          bool          `yaml:"debug" env:"PORTAL_DEBUG"`
	PageSize       int           `yaml:"page_size" env:"PORTAL_PAGE_SIZE"`
	MaxPageSize    int           `yaml:"max_page_size"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"PORTAL_REQUEST_TIMEOUT"`
	ExportTimeout  time.Duration `yaml:"export_timeout"`
}

// ElasticsearchConfig holds the search cluster connection and index names.
type ElasticsearchConfig struct {
	URL                string        `yaml:"url" env:"ELASTICSEARCH_URL"`
	Username           string        `yaml:"username" env:"ELASTICSEARCH_USERNAME"`
	Password           string        `yaml:"password" env:"ELASTICSEARCH_PASSWORD"`
	APIKey             string        `yaml:"api_key" env:"ELASTICSEARCH_API_KEY"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	MaxRetries         int           `yaml:"max_retries"`
	Timeout            time.Duration `yaml:"timeout"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	ProcessIndex       string        `yaml:"process_index" env:"ELASTICSEARCH_PROCESS_INDEX"`
	ContractIndex      string        `yaml:"contract_index" env:"ELASTICSEARCH_CONTRACT_INDEX"`
	Retry              RetryConfig   `yaml:"retry"`
	Breaker            BreakerConfig `yaml:"breaker"`
}

// RetryConfig controls backoff for unavailable-class search errors.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// BreakerConfig controls the circuit breaker around search calls.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the PostgreSQL connection for manifests and releases.
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled" env:"DB_ENABLED"`
	Host            string        `yaml:"host" env:"DB_HOST"`
	Port            int           `yaml:"port" env:"DB_PORT"`
	User            string        `yaml:"user" env:"DB_USER"`
	Password        string        `yaml:"password" env:"DB_PASSWORD"`
	Name            string        `yaml:"name" env:"DB_NAME"`
	SSLMode         string        `yaml:"sslmode" env:"DB_SSLMODE"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

// DSN returns the lib/pq connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// URL returns the postgres:// form used by golang-migrate.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// RedisConfig holds the response cache connection.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" env:"REDIS_ENABLED"`
	Address  string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL"`
	Prefix   string        `yaml:"prefix"`
}

// PortalConfig holds procurement-domain constants.
type PortalConfig struct {
	PrecisionThreshold int    `yaml:"precision_threshold"`
	SEFINSourceID      string `yaml:"sefin_source_id"`
	DNCPSourceID       string `yaml:"dncp_source_id"`
	ONCAEPublisher     string `yaml:"oncae_publisher"`
	SEFINPublisher     string `yaml:"sefin_publisher"`
	MaxBuyerBuckets    int    `yaml:"max_buyer_buckets"`
	MaxTopN            int    `yaml:"max_top_n"`
}

// DownloadsConfig holds the bulk download paths.
type DownloadsConfig struct {
	URLPrefix       string `yaml:"url_prefix"`
	ProtectedPrefix string `yaml:"protected_prefix"`
}

// ExportsConfig holds streaming export tuning.
type ExportsConfig struct {
	ScrollSize      int           `yaml:"scroll_size"`
	ScrollKeepAlive time.Duration `yaml:"scroll_keep_alive"`
	RatePerSecond   float64       `yaml:"rate_per_second" env:"EXPORT_RATE_PER_SECOND"`
	Burst           int           `yaml:"burst"`
	FilePrefix      string        `yaml:"file_prefix"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Enabled          bool          `yaml:"enabled"`
	AllowedOrigins   []string      `yaml:"allowed_origins" env:"CORS_ORIGINS"`
	AllowedMethods   []string      `yaml:"allowed_methods"`
	AllowedHeaders   []string      `yaml:"allowed_headers"`
	AllowCredentials bool          `yaml:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path"`
}

// Load loads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithDefaults[Config](path, setDefaults)
	if err != nil {
		return nil, err
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return cfg, nil
}

// Default returns a configuration with every default applied, as if loaded from an empty file.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

//nolint:gocyclo // flat list of zero-value defaults
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "ocds-portal"
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = "1.0.0"
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = 8000
	}
	if cfg.Service.PageSize == 0 {
		cfg.Service.PageSize = 10
	}
	if cfg.Service.MaxPageSize == 0 {
		cfg.Service.MaxPageSize = 500
	}
	if cfg.Service.RequestTimeout == 0 {
		cfg.Service.RequestTimeout = 30 * time.Second
	}
	if cfg.Service.ExportTimeout == 0 {
		cfg.Service.ExportTimeout = 10 * time.Minute
	}

	setElasticsearchDefaults(&cfg.Elasticsearch)

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Database.MigrationsPath == "" {
		cfg.Database.MigrationsPath = "migrations"
	}

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = "localhost:6379"
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 10 * time.Minute
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "portal:"
	}

	if cfg.Portal.PrecisionThreshold == 0 {
		cfg.Portal.PrecisionThreshold = 40000
	}
	if cfg.Portal.SEFINSourceID == "" {
		cfg.Portal.SEFINSourceID = "HN.SIAFI2"
	}
	if cfg.Portal.DNCPSourceID == "" {
		cfg.Portal.DNCPSourceID = "dncp-sicp"
	}
	if cfg.Portal.ONCAEPublisher == "" {
		cfg.Portal.ONCAEPublisher = "Oficina Normativa de Contratación y Adquisiciones del Estado (ONCAE) / Honduras"
	}
	if cfg.Portal.SEFINPublisher == "" {
		cfg.Portal.SEFINPublisher = "Secretaria de Finanzas de Honduras"
	}
	if cfg.Portal.MaxBuyerBuckets == 0 {
		cfg.Portal.MaxBuyerBuckets = 10000
	}
	if cfg.Portal.MaxTopN == 0 {
		cfg.Portal.MaxTopN = 100
	}

	if cfg.Downloads.URLPrefix == "" {
		cfg.Downloads.URLPrefix = "/api/v1/descargas/"
	}
	if cfg.Downloads.ProtectedPrefix == "" {
		cfg.Downloads.ProtectedPrefix = "/protectedMedia/"
	}

	if cfg.Exports.ScrollSize == 0 {
		cfg.Exports.ScrollSize = 500
	}
	if cfg.Exports.ScrollKeepAlive == 0 {
		cfg.Exports.ScrollKeepAlive = time.Minute
	}
	if cfg.Exports.RatePerSecond == 0 {
		cfg.Exports.RatePerSecond = 2
	}
	if cfg.Exports.Burst == 0 {
		cfg.Exports.Burst = 4
	}
	if cfg.Exports.FilePrefix == "" {
		cfg.Exports.FilePrefix = "portalocdspy"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.CORS.AllowedMethods) == 0 {
		cfg.CORS.AllowedMethods = []string{"GET", "HEAD", "OPTIONS"}
	}
	if len(cfg.CORS.AllowedHeaders) == 0 {
		cfg.CORS.AllowedHeaders = []string{"Content-Type", "X-Request-ID"}
	}
	if cfg.CORS.MaxAge == 0 {
		cfg.CORS.MaxAge = 12 * time.Hour
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func setElasticsearchDefaults(es *ElasticsearchConfig) {
	if es.URL == "" {
		es.URL = "http://localhost:9200"
	}
	if es.MaxRetries == 0 {
		es.MaxRetries = 3
	}
	if es.Timeout == 0 {
		es.Timeout = 120 * time.Second
	}
	if es.PingTimeout == 0 {
		es.PingTimeout = 5 * time.Second
	}
	if es.ProcessIndex == "" {
		es.ProcessIndex = "ocds"
	}
	if es.ContractIndex == "" {
		es.ContractIndex = "contracts"
	}
	if es.Retry.MaxAttempts == 0 {
		es.Retry.MaxAttempts = 3
	}
	if es.Retry.InitialDelay == 0 {
		es.Retry.InitialDelay = 200 * time.Millisecond
	}
	if es.Retry.MaxDelay == 0 {
		es.Retry.MaxDelay = 2 * time.Second
	}
	if es.Breaker.FailureThreshold == 0 {
		es.Breaker.FailureThreshold = 5
	}
	if es.Breaker.SuccessThreshold == 0 {
		es.Breaker.SuccessThreshold = 2
	}
	if es.Breaker.Timeout == 0 {
		es.Breaker.Timeout = 30 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if c.Service.PageSize < 1 || c.Service.PageSize > c.Service.MaxPageSize {
		return &ValidationError{
			Field:   "service.page_size",
			Message: fmt.Sprintf("must be between 1 and %d", c.Service.MaxPageSize),
		}
	}
	if c.Service.RequestTimeout < 0 {
		return &ValidationError{Field: "service.request_timeout", Message: "must not be negative"}
	}
	if c.Elasticsearch.URL == "" {
		return &ValidationError{Field: "elasticsearch.url", Message: "is required"}
	}
	if c.Elasticsearch.MaxRetries < -1 {
		return &ValidationError{Field: "elasticsearch.max_retries", Message: "must be -1 (disabled) or greater"}
	}
	if c.Elasticsearch.Timeout < 0 {
		return &ValidationError{Field: "elasticsearch.timeout", Message: "must not be negative"}
	}
	if c.Elasticsearch.ProcessIndex == "" || c.Elasticsearch.ContractIndex == "" {
		return &ValidationError{Field: "elasticsearch.process_index", Message: "index names are required"}
	}
	if c.Database.Enabled {
		if c.Database.Name == "" {
			return &ValidationError{Field: "database.name", Message: "is required when database is enabled"}
		}
		if err := validatePort("database.port", c.Database.Port); err != nil {
			return err
		}
	}
	if c.Exports.ScrollSize < 1 {
		return &ValidationError{Field: "exports.scroll_size", Message: "must be greater than 0"}
	}
	if err := validateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	return validateLogFormat(c.Logging.Format)
}
