package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	PORT       string
	DB_URL     string
	JWT_SECRET string
	APP_ENV    string
	LOG_LEVEL  string

	CORS_ORIGIN string

	BASE_DOMAINS        []string
	RESERVED_SUBDOMAINS []string

	TRIAL_DAYS          int
	DEFAULT_MAX_SCHOOLS int
	PRIVACY_VERSION     string
	TERMS_VERSION       string

	STRIPE_SECRET_KEY     string
	STRIPE_WEBHOOK_SECRET string
	STRIPE_PRODUCT_ID     string

	REDIS_URL        string
	TENANT_CACHE_TTL time.Duration

	CRON_SECRET    string
	SWEEP_INTERVAL time.Duration

	// optional: Google sign-in is disabled when any of the first three is empty
	GOOGLE_CLIENT_ID         string
	GOOGLE_CLIENT_SECRET     string
	GOOGLE_REDIRECT_URL      string
	GOOGLE_FRONTEND_REDIRECT string
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	JWT_SECRET = mustEnv("JWT_SECRET")
	APP_ENV = getEnv("APP_ENV", "development")
	LOG_LEVEL = getEnv("LOG_LEVEL", "info")

	CORS_ORIGIN = getEnv("CORS_ORIGIN", "")

	BASE_DOMAINS = getList("BASE_DOMAINS", "localhost")
	RESERVED_SUBDOMAINS = getList("RESERVED_SUBDOMAINS", "www,admin")

	TRIAL_DAYS = getInt("TRIAL_DAYS", 30)
	DEFAULT_MAX_SCHOOLS = getInt("DEFAULT_MAX_SCHOOLS", 1)
	PRIVACY_VERSION = getEnv("PRIVACY_VERSION", "1")
	TERMS_VERSION = getEnv("TERMS_VERSION", "1")

	STRIPE_SECRET_KEY = getEnv("STRIPE_SECRET_KEY", "")
	STRIPE_WEBHOOK_SECRET = getEnv("STRIPE_WEBHOOK_SECRET", "")
	STRIPE_PRODUCT_ID = getEnv("STRIPE_PRODUCT_ID", "")

	REDIS_URL = getEnv("REDIS_URL", "")
	TENANT_CACHE_TTL = getDuration("TENANT_CACHE_TTL", time.Minute)

	CRON_SECRET = getEnv("CRON_SECRET", "")
	SWEEP_INTERVAL = getDuration("SWEEP_INTERVAL", 5*time.Minute)

	GOOGLE_CLIENT_ID = getEnv("GOOGLE_CLIENT_ID", "")
	GOOGLE_CLIENT_SECRET = getEnv("GOOGLE_CLIENT_SECRET", "")
	GOOGLE_REDIRECT_URL = getEnv("GOOGLE_REDIRECT_URL", "")
	GOOGLE_FRONTEND_REDIRECT = getEnv("GOOGLE_FRONTEND_REDIRECT", "")
}

func IsProduction() bool { return APP_ENV == "production" }

func GoogleEnabled() bool {
	return GOOGLE_CLIENT_ID != "" && GOOGLE_CLIENT_SECRET != "" && GOOGLE_REDIRECT_URL != ""
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, fallback), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
