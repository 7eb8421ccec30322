package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	StorageDriver   string        `mapstructure:"STORAGE_DRIVER"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	DefaultClinic   string        `mapstructure:"DEFAULT_CLINIC"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	Currency        string        `mapstructure:"CURRENCY"`
	DefaultTheme    string        `mapstructure:"DEFAULT_THEME"`
	DefaultLanguage string        `mapstructure:"DEFAULT_LANGUAGE"`
	PaymentDelay    time.Duration `mapstructure:"PAYMENT_DELAY"`
	LowStockAlerts  bool          `mapstructure:"LOW_STOCK_ALERTS"`
	SeedDemo        bool          `mapstructure:"SEED_DEMO"`
	MigrationsDir   string        `mapstructure:"MIGRATIONS_DIR"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	Timezone        string        `mapstructure:"TIMEZONE"`
}

var keys = []string{
	"PORT", "ENV", "STORAGE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "DEFAULT_CLINIC", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REQUEST_TIMEOUT", "CURRENCY", "DEFAULT_THEME", "DEFAULT_LANGUAGE", "PAYMENT_DELAY",
	"LOW_STOCK_ALERTS", "SEED_DEMO", "MIGRATIONS_DIR", "LOG_LEVEL",
	"TIMEZONE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORAGE_DRIVER", StoragePostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_CLINIC", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("CURRENCY", "BDT")
	v.SetDefault("DEFAULT_THEME", "light")
	v.SetDefault("DEFAULT_LANGUAGE", "bn")
	v.SetDefault("PAYMENT_DELAY", "1500ms")
	v.SetDefault("LOW_STOCK_ALERTS", true)
	v.SetDefault("SEED_DEMO", false)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TIMEZONE", "Local")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	if cfg.StorageDriver == StoragePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER is %q", StoragePostgres)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UseMemory reports whether the in-memory store is selected.
func (c *Config) UseMemory() bool {
	return c.StorageDriver == StorageMemory
}

// Location resolves TIMEZONE, which sets "today" for sales summaries and
// appointment days. Unknown names fall back to time.Local; Validate rejects
// them first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate checks enumerated values and numeric bounds.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.StorageDriver)
	}
	switch c.DefaultTheme {
	case "light", "dark":
	default:
		return fmt.Errorf("DEFAULT_THEME must be \"light\" or \"dark\", got %q", c.DefaultTheme)
	}
	switch c.DefaultLanguage {
	case "bn", "en":
	default:
		return fmt.Errorf("DEFAULT_LANGUAGE must be \"bn\" or \"en\", got %q", c.DefaultLanguage)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.PaymentDelay < 0 {
		return fmt.Errorf("PAYMENT_DELAY must not be negative, got %s", c.PaymentDelay)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be a 3-letter code, got %q", c.Currency)
	}
	return nil
}
