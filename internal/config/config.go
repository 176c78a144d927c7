// README: Config loader with .env support and env defaults for HTTP, DB, Redis, dispatch and retention settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type MatchingConfig struct {
	RadiusKm float64
}

type PresenceConfig struct {
	LocationInterval time.Duration
	PollInterval     time.Duration
}

type RetentionConfig struct {
	MaxAge   time.Duration
	Interval time.Duration
}

type FeeConfig struct {
	DefaultDeliveryFee int64
	Currency           string
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
	}
	Maps struct {
		APIKey string
	}
	Matching  MatchingConfig
	Presence  PresenceConfig
	Retention RetentionConfig
	Fees      FeeConfig
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	var cfg Config
	var err error
	cfg.HTTP.Addr = envOrDefault("KIRANA_HTTP_ADDR", ":8080")
	cfg.DB.DSN = os.Getenv("KIRANA_DB_DSN")
	cfg.Redis.Addr = os.Getenv("KIRANA_REDIS_ADDR")
	cfg.Firebase.ProjectID = os.Getenv("KIRANA_FIREBASE_PROJECT_ID")
	cfg.Firebase.CredentialsFile = os.Getenv("KIRANA_FIREBASE_CREDENTIALS_FILE")
	cfg.Maps.APIKey = os.Getenv("KIRANA_MAPS_API_KEY")
	cfg.Fees.Currency = envOrDefault("KIRANA_CURRENCY", "INR")

	if cfg.Matching.RadiusKm, err = envOrDefaultFloat("KIRANA_MATCH_RADIUS_KM", 3.0); err != nil {
		return Config{}, err
	}
	if cfg.Presence.LocationInterval, err = envOrDefaultDuration("KIRANA_LOCATION_INTERVAL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Presence.PollInterval, err = envOrDefaultDuration("KIRANA_POLL_INTERVAL", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Retention.MaxAge, err = envOrDefaultDuration("KIRANA_RETENTION_MAX_AGE", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Retention.Interval, err = envOrDefaultDuration("KIRANA_RETENTION_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Fees.DefaultDeliveryFee, err = envOrDefaultInt64("KIRANA_DEFAULT_DELIVERY_FEE", 3000); err != nil {
		return Config{}, err
	}

	if cfg.Matching.RadiusKm <= 0 {
		return Config{}, fmt.Errorf("KIRANA_MATCH_RADIUS_KM must be positive, got %v", cfg.Matching.RadiusKm)
	}
	if cfg.Fees.DefaultDeliveryFee < 0 {
		return Config{}, fmt.Errorf("KIRANA_DEFAULT_DELIVERY_FEE must not be negative")
	}
	if cfg.Retention.Interval <= 0 || cfg.Retention.MaxAge <= 0 {
		return Config{}, fmt.Errorf("retention durations must be positive")
	}
	return cfg, nil
}

// String masks credentials.
func (c Config) String() string {
	dsn := "memory"
	if c.DB.DSN != "" {
		dsn = "postgres (***)"
	}
	return fmt.Sprintf("Config{http=%s db=%s redis=%q radius=%.1fkm retention=%s/%s firebase=%t maps=%t}",
		c.HTTP.Addr, dsn, c.Redis.Addr, c.Matching.RadiusKm, c.Retention.MaxAge, c.Retention.Interval,
		c.Firebase.ProjectID != "", c.Maps.APIKey != "")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt64(key string, def int64) (int64, error) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return n, nil
	}
	return def, nil
}

func envOrDefaultFloat(key string, def float64) (float64, error) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %w", key, err)
		}
		return n, nil
	}
	return def, nil
}

func envOrDefaultDuration(key string, def time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return def, nil
}
