package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Remote     RemoteConfig
	Sync       SyncConfig
	Storefront StorefrontConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
}

// ServerConfig configures the local session API.
type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// RemoteConfig configures the client of the catalog/order service.
type RemoteConfig struct {
	BaseURL            string
	Timeout            time.Duration // 0 means no timeout
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration
}

type SyncConfig struct {
	Interval time.Duration
}

// StorefrontConfig configures the reference catalog/order service.
type StorefrontConfig struct {
	Port         string
	SettleAfter  time.Duration
	SettleEvery  time.Duration
	MigrationDir string
	// ResetSchema rolls every migration back before migrating up.
	ResetSchema  bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Enabled reports whether a Redis host was configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// DSN returns the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Database +
		"?sslmode=disable&search_path=" + d.Schema
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("REMOTE_BASE_URL", "http://localhost:3000")
	v.SetDefault("REMOTE_TIMEOUT", "0s")
	v.SetDefault("REMOTE_BREAKER_MAX_FAILURES", 5)
	v.SetDefault("REMOTE_BREAKER_OPEN_TIMEOUT", "30s")
	v.SetDefault("SYNC_INTERVAL", "5s")
	v.SetDefault("STOREFRONT_PORT", "3000")
	v.SetDefault("STOREFRONT_SETTLE_AFTER", "10s")
	v.SetDefault("STOREFRONT_SETTLE_EVERY", "2s")
	v.SetDefault("STOREFRONT_MIGRATIONS_DIR", "migrations")
	v.SetDefault("STOREFRONT_RESET_SCHEMA", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env into environment: %v", err)
	}

	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Remote: RemoteConfig{
			BaseURL:            strings.TrimRight(v.GetString("REMOTE_BASE_URL"), "/"),
			Timeout:            v.GetDuration("REMOTE_TIMEOUT"),
			BreakerMaxFailures: v.GetInt("REMOTE_BREAKER_MAX_FAILURES"),
			BreakerOpenTimeout: v.GetDuration("REMOTE_BREAKER_OPEN_TIMEOUT"),
		},
		Sync: SyncConfig{
			Interval: v.GetDuration("SYNC_INTERVAL"),
		},
		Storefront: StorefrontConfig{
			Port:         v.GetString("STOREFRONT_PORT"),
			SettleAfter:  v.GetDuration("STOREFRONT_SETTLE_AFTER"),
			SettleEvery:  v.GetDuration("STOREFRONT_SETTLE_EVERY"),
			MigrationDir: v.GetString("STOREFRONT_MIGRATIONS_DIR"),
			ResetSchema:  v.GetBool("STOREFRONT_RESET_SCHEMA"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
