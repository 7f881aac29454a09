package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort         int
	DatabasePath       string
	DBMaxConns         int
	JWTSecret          string
	TokenTTL           time.Duration
	Production         bool
	AllowedOrigins     []string
	RedisAddr          string // Empty disables the listing cache
	ListingCacheTTL    time.Duration
	TokenPurgeSchedule string
	LogLevel           string
}

// Load reads an optional .env file, then environment variables with defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "3000"))
	if err != nil {
		return nil, err
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	if err != nil {
		return nil, err
	}
	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "168h"))
	if err != nil {
		return nil, err
	}
	cacheTTL, err := time.ParseDuration(getEnv("LISTING_CACHE_TTL", "1m"))
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerPort:         port,
		DatabasePath:       getEnv("DATABASE_PATH", "./studshare.db"),
		DBMaxConns:         maxConns,
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenTTL:           tokenTTL,
		Production:         getEnv("APP_ENV", "development") == "production",
		AllowedOrigins:     splitList(getEnv("CLIENT_ORIGIN", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5500,http://localhost:5500")),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		ListingCacheTTL:    cacheTTL,
		TokenPurgeSchedule: getEnv("TOKEN_PURGE_SCHEDULE", "@every 1h"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
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
