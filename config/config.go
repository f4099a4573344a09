package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/goforj/entitycache"
	"github.com/goforj/entitycache/logger"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultDriver       = "memory"
	DefaultFreshWindow  = entitycache.DefaultFreshWindow
	DefaultFetchTimeout = entitycache.DefaultFetchTimeout
	DefaultBaseURL      = "https://api.github.com"
	DefaultNATSBucket   = "entities"
	DefaultRedisAddr    = "127.0.0.1:6379"
)

// Config is the top-level configuration. Fields map 1:1 to entitycache.example.yaml.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Refresh RefreshConfig `yaml:"refresh"`
	Source  SourceConfig  `yaml:"source"`
	Log     logger.Config `yaml:"log"`
}

// StoreConfig selects and configures the store driver.
type StoreConfig struct {
	// Driver is one of: memory | file | redis | nats | sql | dynamodb | null.
	Driver string `yaml:"driver"`

	// Prefix namespaces keys on shared backends.
	Prefix string `yaml:"prefix"`

	// Compression is one of: none | gzip.
	Compression string `yaml:"compression"`

	// MaxRecordBytes rejects larger encoded records; 0 disables the limit.
	MaxRecordBytes int `yaml:"max_record_bytes"`

	// EncryptionKeyEnv names the variable holding a hex AES key (16, 24 or 32 bytes decoded).
	EncryptionKeyEnv string `yaml:"encryption_key_env"`

	// AllowOutOfOrderWrites lets older refresh stamps overwrite newer records.
	AllowOutOfOrderWrites bool `yaml:"allow_out_of_order_writes"`

	File   FileConfig   `yaml:"file"`
	Redis  RedisConfig  `yaml:"redis"`
	NATS   NATSConfig   `yaml:"nats"`
	SQL    SQLConfig    `yaml:"sql"`
	Dynamo DynamoConfig `yaml:"dynamodb"`
}

// FileConfig configures the file driver.
type FileConfig struct {
	Dir string `yaml:"dir"`
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
}

// Password returns the redis password resolved from the environment.
func (r RedisConfig) Password() string {
	if r.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(r.PasswordEnv)
}

// NATSConfig configures the JetStream key-value driver.
type NATSConfig struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`
}

// SQLConfig configures the database/sql driver.
type SQLConfig struct {
	// Driver is the database/sql driver name: sqlite | pgx | postgres | mysql.
	Driver string `yaml:"driver"`
	// DSNEnv names the variable holding the DSN. DSN is used when it is empty.
	DSNEnv string `yaml:"dsn_env"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

// ResolvedDSN returns the DSN from the environment, falling back to DSN.
func (s SQLConfig) ResolvedDSN() string {
	if s.DSNEnv != "" {
		if v := os.Getenv(s.DSNEnv); v != "" {
			return v
		}
	}
	return s.DSN
}

// DynamoConfig configures the DynamoDB driver.
type DynamoConfig struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Table    string `yaml:"table"`
}

// RefreshConfig configures the refresh policy.
type RefreshConfig struct {
	// FreshWindow is how long a refreshed entity is served without a new fetch.
	FreshWindow time.Duration `yaml:"fresh_window"`

	// FetchTimeout bounds one fetch from the source.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// Workers selects the executor: 0 runs each refresh on its own goroutine,
	// N > 0 uses a queue drained by N workers.
	Workers int `yaml:"workers"`

	// Dedupe collapses overlapping refreshes of one key into a single fetch.
	Dedupe bool `yaml:"dedupe"`
}

// SourceConfig configures the HTTP source.
type SourceConfig struct {
	BaseURL string `yaml:"base_url"`

	// TokenEnv names the variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`
}

// Token returns the bearer token resolved from the environment.
func (s SourceConfig) Token() string {
	if s.TokenEnv == "" {
		return ""
	}
	return os.Getenv(s.TokenEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:      DefaultDriver,
			Compression: string(entitycache.CompressionNone),
			Redis:       RedisConfig{Addr: DefaultRedisAddr},
			NATS:        NATSConfig{Bucket: DefaultNATSBucket},
		},
		Refresh: RefreshConfig{
			FreshWindow:  DefaultFreshWindow,
			FetchTimeout: DefaultFetchTimeout,
		},
		Source: SourceConfig{BaseURL: DefaultBaseURL},
		Log:    *logger.DefaultConfig(),
	}
}

func validate(cfg *Config) error {
	switch entitycache.Driver(cfg.Store.Driver) {
	case entitycache.DriverMemory, entitycache.DriverFile, entitycache.DriverNull:
	case entitycache.DriverRedis:
		if cfg.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required")
		}
	case entitycache.DriverNATS:
		if cfg.Store.NATS.URL == "" {
			return fmt.Errorf("store.nats.url is required")
		}
	case entitycache.DriverSQL:
		if cfg.Store.SQL.Driver == "" || cfg.Store.SQL.ResolvedDSN() == "" {
			return fmt.Errorf("store.sql.driver and a dsn are required")
		}
	case entitycache.DriverDynamo:
	default:
		return fmt.Errorf("store.driver: unknown driver %q", cfg.Store.Driver)
	}
	switch entitycache.CompressionCodec(cfg.Store.Compression) {
	case entitycache.CompressionNone, entitycache.CompressionGzip:
	default:
		return fmt.Errorf("store.compression: unknown codec %q", cfg.Store.Compression)
	}
	if cfg.Store.MaxRecordBytes < 0 {
		return fmt.Errorf("store.max_record_bytes must not be negative")
	}
	if cfg.Refresh.FreshWindow <= 0 {
		return fmt.Errorf("refresh.fresh_window must be positive")
	}
	if cfg.Refresh.FetchTimeout <= 0 {
		return fmt.Errorf("refresh.fetch_timeout must be positive")
	}
	if cfg.Refresh.Workers < 0 {
		return fmt.Errorf("refresh.workers must not be negative")
	}
	if cfg.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// EncryptionKey decodes the hex key named by EncryptionKeyEnv. It returns nil
// when no variable is configured.
func (s StoreConfig) EncryptionKey() ([]byte, error) {
	if s.EncryptionKeyEnv == "" {
		return nil, nil
	}
	raw := os.Getenv(s.EncryptionKeyEnv)
	if raw == "" {
		return nil, fmt.Errorf("config: %s is empty", s.EncryptionKeyEnv)
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", s.EncryptionKeyEnv, err)
	}
	return key, nil
}

// StoreOptions translates the file settings into store options. Redis and
// NATS clients are not built here; callers add WithRedisClient or
// WithNATSKeyValue once they hold a connection.
func (s StoreConfig) StoreOptions() ([]entitycache.StoreOption, error) {
	key, err := s.EncryptionKey()
	if err != nil {
		return nil, err
	}
	opts := []entitycache.StoreOption{
		entitycache.WithPrefix(s.Prefix),
		entitycache.WithCompression(entitycache.CompressionCodec(s.Compression)),
		entitycache.WithMaxRecordBytes(s.MaxRecordBytes),
		entitycache.WithOutOfOrderWrites(s.AllowOutOfOrderWrites),
	}
	if len(key) > 0 {
		opts = append(opts, entitycache.WithEncryptionKey(key))
	}
	switch entitycache.Driver(s.Driver) {
	case entitycache.DriverFile:
		opts = append(opts, entitycache.WithFileDir(s.File.Dir))
	case entitycache.DriverSQL:
		opts = append(opts, entitycache.WithSQL(s.SQL.Driver, s.SQL.ResolvedDSN(), s.SQL.Table))
	case entitycache.DriverDynamo:
		opts = append(opts,
			entitycache.WithDynamoEndpoint(s.Dynamo.Endpoint),
			entitycache.WithDynamoRegion(s.Dynamo.Region),
			entitycache.WithDynamoTable(s.Dynamo.Table),
		)
	}
	return opts, nil
}

// RepositoryOptions translates the refresh settings. The executor is chosen
// by the caller from Workers because it must be closed separately.
func (r RefreshConfig) RepositoryOptions() []entitycache.RepositoryOption {
	return []entitycache.RepositoryOption{
		entitycache.WithFreshWindow(r.FreshWindow),
		entitycache.WithFetchTimeout(r.FetchTimeout),
		entitycache.WithDedupe(r.Dedupe),
	}
}
