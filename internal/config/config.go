// Package config loads and validates the link importer configuration from
// config.yml with environment variable overrides.
package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServiceName = "link-importer"
	defaultServicePort = 8094
	defaultVersion     = "0.1.0"
	defaultEnvironment = "development"

	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"

	defaultDBHost    = "localhost"
	defaultDBPort    = 5432
	defaultDBName    = "link_importer"
	defaultDBUser    = "postgres"
	defaultDBSSLMode = "disable"

	defaultRedisAddress = "localhost:6379"

	defaultBitlyBaseURL     = "https://api-ssl.bitly.com"
	defaultRebrandlyBaseURL = "https://api.rebrandly.com"
	defaultProviderRPS      = 2
	defaultProviderTimeoutS = 15

	defaultMailTimeoutS = 10
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Queue     QueueConfig     `yaml:"queue"`
	Providers ProvidersConfig `yaml:"providers"`
	Mail      MailConfig      `yaml:"mail"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Port        int    `env:"LINK_IMPORTER_PORT" yaml:"port"`
	Debug       bool   `env:"APP_DEBUG"          yaml:"debug"`
	Environment string `env:"APP_ENV"            yaml:"environment"`
}

// Production reports whether the service runs in a production environment.
// Queue message signature verification is only skipped outside production.
func (s *ServiceConfig) Production() bool {
	return s.Environment == "production"
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_LINK_IMPORTER_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_LINK_IMPORTER_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_LINK_IMPORTER_USER"     yaml:"user"`
	Password string `env:"POSTGRES_LINK_IMPORTER_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_LINK_IMPORTER_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_LINK_IMPORTER_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// MigrateURL returns the PostgreSQL URL used by the migrate command.
func (d *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// RedisConfig holds key-value store configuration.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// QueueConfig holds durable queue transport configuration.
type QueueConfig struct {
	// PublishURL is the queue endpoint continuation messages are posted to.
	PublishURL string `env:"QUEUE_PUBLISH_URL" yaml:"publish_url"`
	// SigningSecret signs outbound messages and verifies inbound ones.
	SigningSecret string `env:"QUEUE_SIGNING_SECRET" yaml:"signing_secret"`
}

// ProvidersConfig holds per-provider adapter configuration.
type ProvidersConfig struct {
	Bitly     ProviderConfig `yaml:"bitly"`
	Rebrandly ProviderConfig `yaml:"rebrandly"`
}

// ProviderConfig configures one source platform adapter.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	// RequestsPerSecond caps outbound requests to the provider API.
	RequestsPerSecond int           `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// MailConfig holds outbound email delivery configuration.
type MailConfig struct {
	// Endpoint is the HTTP email delivery API.
	Endpoint string        `env:"MAIL_ENDPOINT" yaml:"endpoint"`
	APIKey   string        `env:"MAIL_API_KEY"  yaml:"api_key"`
	From     string        `env:"MAIL_FROM"     yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}
	setDefaults(&cfg)
	// Re-apply env overrides after defaults (env always wins)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setProviderDefaults(&cfg.Providers.Bitly, defaultBitlyBaseURL)
	setProviderDefaults(&cfg.Providers.Rebrandly, defaultRebrandlyBaseURL)
	setMailDefaults(&cfg.Mail)
	setLoggingDefaults(&cfg.Logging)
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if svc.Environment == "" {
		svc.Environment = defaultEnvironment
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
}

func setProviderDefaults(p *ProviderConfig, baseURL string) {
	if p.BaseURL == "" {
		p.BaseURL = baseURL
	}
	if p.RequestsPerSecond == 0 {
		p.RequestsPerSecond = defaultProviderRPS
	}
	if p.Timeout == 0 {
		p.Timeout = defaultProviderTimeoutS * time.Second
	}
}

func setMailDefaults(m *MailConfig) {
	if m.Timeout == 0 {
		m.Timeout = defaultMailTimeoutS * time.Second
	}
}

func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if c.Service.Production() {
		if err := validateRequired("queue.signing_secret", c.Queue.SigningSecret); err != nil {
			return err
		}
	}
	if err := validateRequired("redis.address", c.Redis.Address); err != nil {
		return err
	}
	return nil
}
