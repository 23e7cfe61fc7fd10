package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config gathers everything cmd/server needs so main stays lean.
type Config struct {
	Server   Server
	Auth     Auth
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Auth configures caller authentication and the fixed registry owner.
type Auth struct {
	JWTSigningKey string
	// Owner is the account with exclusive rights to manage the issuer set.
	// Fixed at startup; there is no transfer-of-ownership operation.
	Owner string
}

// Postgres selects the persistent store. Empty URL means in-memory stores.
type Postgres struct {
	URL string
}

// Redis configures the optional identity read cache. Empty URL disables it.
type Redis struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// Kafka configures the optional event stream sink. No brokers disables it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envOr("ATTESTRY_ADDR", ":8080"),
			ShutdownTimeout: envDuration("ATTESTRY_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: Auth{
			// Development default; override in production.
			JWTSigningKey: envOr("ATTESTRY_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Owner:         envOr("ATTESTRY_OWNER_ACCOUNT", "owner"),
		},
		Postgres: Postgres{
			URL: os.Getenv("ATTESTRY_POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("ATTESTRY_REDIS_URL"),
			PoolSize:     envInt("ATTESTRY_REDIS_POOL_SIZE", 10),
			DialTimeout:  envDuration("ATTESTRY_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ATTESTRY_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("ATTESTRY_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     envDuration("ATTESTRY_REDIS_CACHE_TTL", 5*time.Minute),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("ATTESTRY_KAFKA_BROKERS")),
			Topic:   envOr("ATTESTRY_KAFKA_TOPIC", "attestry.registry.events"),
		},
	}
}

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

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
