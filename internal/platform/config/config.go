// Package config loads server configuration. An optional YAML file provides
// base values; environment variables override it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Notification store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Defaults for non-secret configuration.
const (
	DefaultAddr                   = ":8080"
	DefaultEnv                    = "development"
	DefaultLogLevel               = "info"
	DefaultStoreTimeout           = 5 * time.Second
	DefaultMaxPageSize            = 200
	DefaultMaxExportRows          = 10000
	DefaultMarkAllReadConcurrency = 8
	DefaultSweepInterval          = time.Minute
	DefaultAuditKafkaTopic        = "contract-audit-events"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres backend")
	ErrMissingRedisURL    = errors.New("REDIS_URL is required for the redis backend")
	ErrUnknownBackend     = errors.New("NOTIFICATION_BACKEND must be memory, postgres or redis")
	ErrMissingJWTKey      = errors.New("JWT_SIGNING_KEY is required outside development")
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
	JWTSigningKey      string
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Storage selects and bounds the persistence backends.
type Storage struct {
	DatabaseURL         string
	NotificationBackend string
	Timeout             time.Duration
}

// Audit bounds audit queries and exports and configures the Kafka sink.
type Audit struct {
	MaxPageSize   int
	MaxExportRows int
	KafkaBrokers  []string
	KafkaTopic    string
}

// Notification tunes the mark-all-read fan-out.
type Notification struct {
	MarkAllReadConcurrency int
}

// Reminder tunes the overdue sweeper.
type Reminder struct {
	SweepInterval time.Duration
}

// Config is the complete server configuration.
type Config struct {
	Server       Server
	Storage      Storage
	Redis        RedisConfig
	Audit        Audit
	Notification Notification
	Reminder     Reminder
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == DefaultEnv
}

// Load reads an optional .env file and YAML file, then applies environment
// overrides. It returns the config and every problem found, so operators
// can fix all of them in one pass.
func Load(configFilePath string) (*Config, []error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	var errs []error
	durationOr := func(env, key string, def time.Duration) time.Duration {
		d, err := envDuration(env, k, key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}
	intOr := func(env, key string, def int) int {
		n, err := envInt(env, k, key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}

	cfg := &Config{
		Server: Server{
			Addr:               envString("ADDR", k, "server.addr", DefaultAddr),
			Env:                envString("ENV", k, "server.env", DefaultEnv),
			LogLevel:           envString("LOG_LEVEL", k, "server.log_level", DefaultLogLevel),
			CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", k, "server.cors_allowed_origins"),
			JWTSigningKey:      envString("JWT_SIGNING_KEY", k, "server.jwt_signing_key", ""),
		},
		Storage: Storage{
			DatabaseURL:         envString("DATABASE_URL", k, "storage.database_url", ""),
			NotificationBackend: strings.ToLower(envString("NOTIFICATION_BACKEND", k, "storage.notification_backend", BackendMemory)),
			Timeout:             durationOr("STORE_TIMEOUT", "storage.timeout", DefaultStoreTimeout),
		},
		Redis: RedisConfig{
			URL:          envString("REDIS_URL", k, "redis.url", ""),
			PoolSize:     intOr("REDIS_POOL_SIZE", "redis.pool_size", 10),
			MinIdleConns: intOr("REDIS_MIN_IDLE_CONNS", "redis.min_idle_conns", 2),
			DialTimeout:  durationOr("REDIS_DIAL_TIMEOUT", "redis.dial_timeout", 5*time.Second),
			ReadTimeout:  durationOr("REDIS_READ_TIMEOUT", "redis.read_timeout", 3*time.Second),
			WriteTimeout: durationOr("REDIS_WRITE_TIMEOUT", "redis.write_timeout", 3*time.Second),
		},
		Audit: Audit{
			MaxPageSize:   intOr("MAX_PAGE_SIZE", "audit.max_page_size", DefaultMaxPageSize),
			MaxExportRows: intOr("MAX_EXPORT_ROWS", "audit.max_export_rows", DefaultMaxExportRows),
			KafkaBrokers:  envList("KAFKA_BROKERS", k, "audit.kafka_brokers"),
			KafkaTopic:    envString("AUDIT_KAFKA_TOPIC", k, "audit.kafka_topic", DefaultAuditKafkaTopic),
		},
		Notification: Notification{
			MarkAllReadConcurrency: intOr("MARK_ALL_READ_CONCURRENCY", "notification.mark_all_read_concurrency", DefaultMarkAllReadConcurrency),
		},
		Reminder: Reminder{
			SweepInterval: durationOr("SWEEP_INTERVAL", "reminder.sweep_interval", DefaultSweepInterval),
		},
	}

	return cfg, append(errs, cfg.Validate()...)
}

// Validate checks cross-field rules and returns every violation.
func (c *Config) Validate() []error {
	var errs []error

	switch c.Storage.NotificationBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, ErrMissingRedisURL)
		}
	default:
		errs = append(errs, ErrUnknownBackend)
	}

	if c.Server.JWTSigningKey == "" && !c.IsDevelopment() {
		errs = append(errs, ErrMissingJWTKey)
	}
	if c.Storage.Timeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if c.Audit.MaxPageSize <= 0 {
		errs = append(errs, errors.New("MAX_PAGE_SIZE must be positive"))
	}
	if c.Audit.MaxExportRows <= 0 {
		errs = append(errs, errors.New("MAX_EXPORT_ROWS must be positive"))
	}
	if c.Notification.MarkAllReadConcurrency <= 0 {
		errs = append(errs, errors.New("MARK_ALL_READ_CONCURRENCY must be positive"))
	}
	if c.Reminder.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	return errs
}

func envString(envKey string, k *koanf.Koanf, koanfKey, def string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if v := k.String(koanfKey); v != "" {
		return v
	}
	return def
}

func envInt(envKey string, k *koanf.Koanf, koanfKey string, def int) (int, error) {
	if v := os.Getenv(envKey); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return def, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return n, nil
	}
	if k.Exists(koanfKey) {
		return k.Int(koanfKey), nil
	}
	return def, nil
}

func envDuration(envKey string, k *koanf.Koanf, koanfKey string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(envKey)
	if raw == "" {
		raw = k.String(koanfKey)
	}
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("%s must be a duration such as 5s: %w", envKey, err)
	}
	return d, nil
}

func envList(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if v := os.Getenv(envKey); v != "" {
		return splitList(v)
	}
	return k.Strings(koanfKey)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
