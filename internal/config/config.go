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

	// Appointment store. When DatabaseURL is empty appointments live in memory
	// for the lifetime of the process.
	DatabaseURL string

	// Redis backs the slot lock and webhook dedup tracker. Optional; when
	// unset both fall back to in-process implementations.
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Zoom server-to-server OAuth app
	ZoomAccountID          string
	ZoomClientID           string
	ZoomClientSecret       string
	ZoomWebhookSecretToken string

	// Google Calendar service account (domain-wide delegation)
	GoogleClientEmail string
	GooglePrivateKey  string
	GoogleCalendarID  string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	HostNotifyEmail   string

	AdminJWTSecret     string
	CORSAllowedOrigins []string

	BookingRateLimit float64
	BookingRateBurst int

	MeetingDurationMinutes int
	MeetingTimezone        string

	WebhookDedupTTL time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "https://cvcwebsolutions.com"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ZoomAccountID:          getEnv("ZOOM_ACCOUNT_ID", ""),
		ZoomClientID:           getEnv("ZOOM_CLIENT_ID", ""),
		ZoomClientSecret:       getEnv("ZOOM_CLIENT_SECRET", ""),
		ZoomWebhookSecretToken: getEnv("ZOOM_WEBHOOK_SECRET_TOKEN", ""),

		GoogleClientEmail: getEnv("GOOGLE_CLIENT_EMAIL", ""),
		GooglePrivateKey:  getEnv("GOOGLE_PRIVATE_KEY", ""),
		GoogleCalendarID:  getEnv("GOOGLE_CALENDAR_ID", "primary"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "info@cvcwebsolutions.com"),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "CVC Web Solutions"),
		HostNotifyEmail:   getEnv("HOST_NOTIFY_EMAIL", "craig@cvcwebsolutions.com"),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),

		BookingRateLimit: getEnvAsFloat("BOOKING_RATE_LIMIT", 2),
		BookingRateBurst: getEnvAsInt("BOOKING_RATE_BURST", 10),

		MeetingDurationMinutes: getEnvAsInt("MEETING_DURATION_MINUTES", 30),
		MeetingTimezone:        getEnv("MEETING_TIMEZONE", "Europe/Berlin"),

		WebhookDedupTTL: getEnvAsDuration("WEBHOOK_DEDUP_TTL", 24*time.Hour),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
