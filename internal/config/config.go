package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// DatabaseURL selects the Postgres document store. Empty means the
	// durable store is not configured and the process runs on the seeded
	// in-memory store.
	DatabaseURL  string
	ProbeTimeout time.Duration

	// RedisAddr enables domain event streams, the ledger audit consumer and
	// the profile cache. Empty disables all three.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ProfileTTL    time.Duration

	AllowedOrigins []string
	SeedFallback   bool
	ConsumerName   string
}

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) Config {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Config: ignoring env file: %v", err)
	}

	hostname, _ := os.Hostname()
	return Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ProbeTimeout:   getEnvDuration("STORE_PROBE_TIMEOUT", 3*time.Second),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		ProfileTTL:     getEnvDuration("PROFILE_CACHE_TTL", 10*time.Minute),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		SeedFallback:   getEnvBool("SEED_FALLBACK", true),
		ConsumerName:   getEnv("CONSUMER_NAME", "ledger-audit-"+hostname),
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
