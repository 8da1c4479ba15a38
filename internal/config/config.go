// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/notify.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ScheduleSyncChannel is the Postgres NOTIFY channel raised after the game
// schedule is re-synced.
const ScheduleSyncChannel = "schedule_synced"

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Reminders
	Timezone        string
	ScheduleSpec    string
	SchedulerOn     bool
	QuietStartHour  int
	QuietEndHour    int
	StaleAfter      time.Duration
	DeliveryWorkers int

	// Email (SMTP)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	SiteURL      string

	// Push (FCM)
	FirebaseCredentialsFile string

	// Background
	ListenerEnabled     bool
	MaintenanceInterval time.Duration
	CacheEnabled        bool
	LedgerCacheTTL      time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	cfg := &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		Timezone:        envOr("REMINDER_TIMEZONE", "America/New_York"),
		ScheduleSpec:    envOr("REMINDER_SCHEDULE", "0 * * * *"),
		SchedulerOn:     envBool("SCHEDULER_ENABLED", true),
		QuietStartHour:  envInt("QUIET_HOURS_START", 0),
		QuietEndHour:    envInt("QUIET_HOURS_END", 5),
		StaleAfter:      time.Duration(envInt("CLAIM_STALE_MINUTES", 5)) * time.Minute,
		DeliveryWorkers: envInt("DELIVERY_WORKERS", 4),

		SMTPHost:     envOr("SMTP_HOST", ""),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: envOr("SMTP_USERNAME", ""),
		SMTPPassword: envOr("SMTP_PASSWORD", ""),
		EmailFrom:    envOr("EMAIL_FROM", "Athletics <noreply@localhost>"),
		SiteURL:      envOr("SITE_URL", "http://localhost:3000"),

		FirebaseCredentialsFile: envOr("FIREBASE_CREDENTIALS_FILE", ""),

		ListenerEnabled:     envBool("LISTENER_ENABLED", true),
		MaintenanceInterval: time.Duration(envInt("MAINTENANCE_INTERVAL_MINUTES", 15)) * time.Minute,
		CacheEnabled:        envBool("CACHE_ENABLED", true),
		LedgerCacheTTL:      time.Duration(envInt("LEDGER_CACHE_TTL_SECONDS", 30)) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("REMINDER_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.QuietStartHour < 0 || c.QuietStartHour > 23 || c.QuietEndHour < 0 || c.QuietEndHour > 24 {
		return fmt.Errorf("quiet hours out of range: %d-%d", c.QuietStartHour, c.QuietEndHour)
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("CLAIM_STALE_MINUTES must be positive")
	}
	return nil
}

// Location returns the reference timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
