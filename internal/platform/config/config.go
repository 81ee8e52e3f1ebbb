package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process level configuration.
type Config struct {
	Addr            string
	DatabaseURL     string
	ServiceName     string
	JWTSigningKey   string
	TokenTTL        time.Duration
	AuthRatePerMin  int
	AuthRateBurst   int
	LogLevel        string
	LogFormat       string
	OTLPEndpoint    string
	ShutdownTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
// An empty DatabaseURL selects the in-memory journal; an empty OTLPEndpoint
// disables trace export.
func FromEnv() Config {
	return Config{
		Addr:        ":" + getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		ServiceName: getEnv("SERVICE_NAME", "bloodlink"),
		// Use a default for development - should be overridden in production
		JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:        getDuration("TOKEN_TTL", 24*time.Hour),
		AuthRatePerMin:  getInt("AUTH_RATE_PER_MINUTE", 60),
		AuthRateBurst:   getInt("AUTH_RATE_BURST", 10),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
