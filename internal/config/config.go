// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"puzzlemarket/internal/featureflags"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	JWTIssuer      string `mapstructure:"JWT_ISSUER"`
	JWTAudience    string `mapstructure:"JWT_AUDIENCE"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL string `mapstructure:"REDIS_URL"`
	NATSURL  string `mapstructure:"NATS_URL"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`

	DigestIntervalMinutes  int `mapstructure:"DIGEST_INTERVAL_MINUTES"`
	DigestThresholdHours   int `mapstructure:"DIGEST_THRESHOLD_HOURS"`
	DigestMinIntervalHours int `mapstructure:"DIGEST_MIN_INTERVAL_HOURS"`
	DigestLockTTLSeconds   int `mapstructure:"DIGEST_LOCK_TTL_SECONDS"`

	RatingWindowDays        int    `mapstructure:"RATING_WINDOW_DAYS"`
	StandingCacheTTLSeconds int    `mapstructure:"STANDING_CACHE_TTL_SECONDS"`
	DefaultLocale           string `mapstructure:"DEFAULT_LOCALE"`

	// DevAdminPlayerID is promoted to admin at startup in development.
	DevAdminPlayerID uint `mapstructure:"DEV_ADMIN_PLAYER_ID"`
}

const defaultJWTSecret = "your-secret-key-change-in-production"

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; environment variables cover every key.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		slog.Info("loaded profile-specific configuration", slog.String("file", "config."+env+".yml"))
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.DBSchemaMode = strings.ToLower(strings.TrimSpace(config.DBSchemaMode))
	config.DefaultLocale = strings.ToLower(strings.TrimSpace(config.DefaultLocale))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_ISSUER", "")
	viper.SetDefault("JWT_AUDIENCE", "")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "conversation_system_messages,listing_status_messages")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "puzzlemarket")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)

	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("NATS_URL", "nats://localhost:4222")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")

	viper.SetDefault("DIGEST_INTERVAL_MINUTES", 15)
	viper.SetDefault("DIGEST_THRESHOLD_HOURS", 12)
	viper.SetDefault("DIGEST_MIN_INTERVAL_HOURS", 0)
	viper.SetDefault("DIGEST_LOCK_TTL_SECONDS", 300)

	viper.SetDefault("RATING_WINDOW_DAYS", 30)
	viper.SetDefault("STANDING_CACHE_TTL_SECONDS", 60)
	viper.SetDefault("DEFAULT_LOCALE", "en")
	viper.SetDefault("DEV_ADMIN_PLAYER_ID", 0)
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.DBConnMaxLifetimeMinutes <= 0 {
		return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must be positive")
	}
	if c.DigestThresholdHours < 0 || c.DigestMinIntervalHours < 0 {
		return errors.New("digest hour settings must not be negative")
	}
	if c.RatingWindowDays <= 0 {
		return errors.New("RATING_WINDOW_DAYS must be positive")
	}
	if _, err := featureflags.Parse(c.FeatureFlags); err != nil {
		return fmt.Errorf("FEATURE_FLAGS: %w", err)
	}
	switch c.DBSchemaMode {
	case "", "hybrid", "sql", "auto":
	default:
		return fmt.Errorf("DB_SCHEMA_MODE %q is not one of hybrid, sql, auto", c.DBSchemaMode)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is set to '*' in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters")
	}

	return nil
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// DigestInterval is the period between digest sweeps.
func (c *Config) DigestInterval() time.Duration {
	if c.DigestIntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.DigestIntervalMinutes) * time.Minute
}

// DigestThreshold is how old an unread item must be before it is digested.
func (c *Config) DigestThreshold() time.Duration {
	return time.Duration(c.DigestThresholdHours) * time.Hour
}

// DigestMinInterval is the minimum gap between two digests to one player.
func (c *Config) DigestMinInterval() time.Duration {
	return time.Duration(c.DigestMinIntervalHours) * time.Hour
}

// DigestLockTTL bounds how long a sweep may hold the distributed lock.
func (c *Config) DigestLockTTL() time.Duration {
	if c.DigestLockTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.DigestLockTTLSeconds) * time.Second
}

// RatingWindow is how long after a sale its participants may rate.
func (c *Config) RatingWindow() time.Duration {
	return time.Duration(c.RatingWindowDays) * 24 * time.Hour
}

// StandingCacheTTL bounds staleness of cached marketplace standings.
func (c *Config) StandingCacheTTL() time.Duration {
	return time.Duration(c.StandingCacheTTLSeconds) * time.Second
}

// DBConnMaxLifetime converts the configured minutes into a duration.
func (c *Config) DBConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifetimeMinutes) * time.Minute
}
