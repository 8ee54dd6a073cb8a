package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// DBDriver is "postgres" or "sqlite".
	DBDriver string
	DBDSN    string

	JWTSecret   string
	CORSOrigins []string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	FiltersCacheTTL time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] ignoring .env: %v", err)
	}

	driver := getEnv("DB_DRIVER", "postgres")
	return &Config{
		Port:            getEnv("PORT", "8080"),
		DBDriver:        driver,
		DBDSN:           dsnFromEnv(driver),
		JWTSecret:       getEnv("JWT_SECRET", "sat-prep-dev-signing-key"),
		CORSOrigins:     csvEnv("CORS_ORIGINS", "*"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         intEnv("REDIS_DB", 0),
		FiltersCacheTTL: durationEnv("FILTERS_CACHE_TTL", 10*time.Minute),
		ReadTimeout:     durationEnv("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    durationEnv("HTTP_WRITE_TIMEOUT", 30*time.Second),
	}
}

// dsnFromEnv prefers DATABASE_URL and otherwise assembles a DSN from the
// individual DB_* variables (postgres) or SQLITE_PATH (sqlite).
func dsnFromEnv(driver string) string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	if driver == "sqlite" {
		path := getEnv("SQLITE_PATH", "satprep.db")
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "sat_user"),
		getEnv("DB_PASSWORD", "sat_password"),
		getEnv("DB_NAME", "sat_prep"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] %s=%q is not a duration, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func csvEnv(key, fallback string) []string {
	parts := strings.Split(getEnv(key, fallback), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
