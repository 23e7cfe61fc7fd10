package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "owner", cfg.Auth.Owner)
	assert.Empty(t, cfg.Postgres.URL)
	assert.Empty(t, cfg.Redis.URL)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Equal(t, "attestry.registry.events", cfg.Kafka.Topic)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ATTESTRY_ADDR", ":9090")
	t.Setenv("ATTESTRY_SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("ATTESTRY_OWNER_ACCOUNT", "acct-registry-owner")
	t.Setenv("ATTESTRY_POSTGRES_URL", "postgres://localhost/attestry")
	t.Setenv("ATTESTRY_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ATTESTRY_REDIS_POOL_SIZE", "32")
	t.Setenv("ATTESTRY_KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "acct-registry-owner", cfg.Auth.Owner)
	assert.Equal(t, "postgres://localhost/attestry", cfg.Postgres.URL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 32, cfg.Redis.PoolSize)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}

func TestFromEnvMalformedValuesFallBack(t *testing.T) {
	t.Setenv("ATTESTRY_SHUTDOWN_TIMEOUT", "soon")
	t.Setenv("ATTESTRY_REDIS_POOL_SIZE", "many")

	cfg := FromEnv()
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}
