package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Block store cache
	BlockCacheTTL time.Duration

	// Slot generation defaults
	SlotGranularity  time.Duration
	WorkingDayStart  string // "09:00"
	WorkingDayEnd    string // "18:00"
	RescheduleCutoff time.Duration

	// Per-professional mutation lock
	BookingLockTTL time.Duration

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeBaseURL       string

	// Google Calendar
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCalendarURL  string
	CalendarSyncWindow time.Duration
	CalendarPullEvery  time.Duration

	// Payment reconciliation sweep
	ReconcileEvery time.Duration
	ReconcileGrace time.Duration

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// HTTP surface
	CORSAllowedOrigins []string
	OutboxDrainEvery   time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		BlockCacheTTL: getEnvAsDuration("BLOCK_CACHE_TTL", 30*time.Second),

		SlotGranularity:  getEnvAsDuration("SLOT_GRANULARITY", 30*time.Minute),
		WorkingDayStart:  getEnv("WORKING_DAY_START", "09:00"),
		WorkingDayEnd:    getEnv("WORKING_DAY_END", "18:00"),
		RescheduleCutoff: getEnvAsDuration("RESCHEDULE_CUTOFF", time.Hour),

		BookingLockTTL: getEnvAsDuration("BOOKING_LOCK_TTL", 10*time.Second),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeBaseURL:       getEnv("STRIPE_BASE_URL", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleCalendarURL:  getEnv("GOOGLE_CALENDAR_URL", ""),
		CalendarSyncWindow: getEnvAsDuration("CALENDAR_SYNC_WINDOW", 30*24*time.Hour),
		CalendarPullEvery:  getEnvAsDuration("CALENDAR_PULL_EVERY", 15*time.Minute),

		ReconcileEvery: getEnvAsDuration("RECONCILE_EVERY", 30*time.Minute),
		ReconcileGrace: getEnvAsDuration("RECONCILE_GRACE", 10*time.Minute),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Serenbook"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		OutboxDrainEvery:   getEnvAsDuration("OUTBOX_DRAIN_EVERY", 15*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated environment variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
