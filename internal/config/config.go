package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// GoHighLevel API
	GHLBaseURL      string
	GHLClientID     string
	GHLClientSecret string
	GHLRedirectURI  string
	GHLAPIVersion   string
	GHLScope        string

	// Token lifecycle
	TokenRefreshInterval time.Duration
	TokenRefreshTimeout  time.Duration

	// Import pipeline
	ImportWorkerCount int
	ContactCacheTTL   time.Duration

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	FrontendURL        string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		GHLBaseURL:      getEnv("GHL_BASE_URL", "https://services.leadconnectorhq.com"),
		GHLClientID:     getEnv("GHL_CLIENT_ID", ""),
		GHLClientSecret: getEnv("GHL_CLIENT_SECRET", ""),
		GHLRedirectURI:  getEnv("GHL_REDIRECT_URI", ""),
		GHLAPIVersion:   getEnv("GHL_API_VERSION", "2021-07-28"),
		GHLScope:        getEnv("GHL_SCOPE", "contacts.readonly contacts.write calendars.readonly calendars/events.write"),

		TokenRefreshInterval: getEnvAsDuration("TOKEN_REFRESH_INTERVAL", 20*time.Hour),
		TokenRefreshTimeout:  getEnvAsDuration("TOKEN_REFRESH_TIMEOUT", 30*time.Second),

		ImportWorkerCount: getEnvAsInt("IMPORT_WORKER_COUNT", 4),
		ContactCacheTTL:   getEnvAsDuration("CONTACT_CACHE_TTL", 24*time.Hour),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
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

func splitAndTrim(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
