package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"novytek/api/tracker"
)

const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Supabase struct {
	URL     string
	AnonKey string
}

type ClickHouse struct {
	Host       string
	NativePort int
	Database   string
	Username   string
	Password   string
}

// Enabled reports whether the ClickHouse event mirror is configured.
func (c ClickHouse) Enabled() bool {
	return c.Host != ""
}

type Config struct {
	Port            string
	GinMode         string
	Env             string
	Supabase        Supabase
	StoreDriver     string
	DatabaseURL     string
	ClickHouse      ClickHouse
	JWTSecret       string
	FrontendOrigins []string
	AdminAPIKeyHash string
	SecureCookies   bool
	Tracker         tracker.Options

	// Seed administrator for the memory store.
	DevAdminEmail    string
	DevAdminPassword string
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads the configuration from the environment. The .env file, if any,
// must already be loaded.
func Load() (*Config, error) {
	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),
		Env:     getEnv("APP_ENV", "development"),
		Supabase: Supabase{
			URL:     strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			AnonKey: os.Getenv("SUPABASE_ANON_KEY"),
		},
		StoreDriver: getEnv("STORE_DRIVER", DriverSupabase),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ClickHouse: ClickHouse{
			Host:     os.Getenv("CLICKHOUSE_HOST"),
			Database: getEnv("CLICKHOUSE_DB_NAME", "default"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		},
		JWTSecret:       os.Getenv("JWT_SECRET_KEY"),
		FrontendOrigins: splitList(getEnv("FE_ORIGIN", "http://localhost:3000")),
		AdminAPIKeyHash: os.Getenv("ADMIN_API_KEY_HASH"),

		DevAdminEmail:    os.Getenv("DEV_ADMIN_EMAIL"),
		DevAdminPassword: os.Getenv("DEV_ADMIN_PASSWORD"),
	}

	port, err := strconv.Atoi(getEnv("CLICKHOUSE_NATIVE_PORT", "9000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLICKHOUSE_NATIVE_PORT: %w", err)
	}
	cfg.ClickHouse.NativePort = port

	cfg.SecureCookies, err = strconv.ParseBool(getEnv("SECURE_COOKIES", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SECURE_COOKIES: %w", err)
	}

	cfg.Tracker, err = tracker.LoadOptions(os.Getenv("TRACKER_CONFIG"))
	if err != nil {
		return nil, err
	}
	if ttl := os.Getenv("SESSION_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
		}
		cfg.Tracker.SessionTTL = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Supabase.URL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	}
	if c.Supabase.AnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_ANON_KEY is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}
	switch c.StoreDriver {
	case DriverSupabase, DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.Tracker.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
