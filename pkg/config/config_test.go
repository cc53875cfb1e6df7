package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv(envOf(nil))

	assert.Equal(t, ":8080", cfg.GatewayAddr)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.False(t, cfg.AllowAll)
	assert.Equal(t, int64(10_000_000), cfg.MaxMessageSize)
	assert.Equal(t, 256, cfg.SendBuffer)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "chat-activity", cfg.KafkaTopic)
	assert.Equal(t, []string{"localhost:9042"}, cfg.ScyllaHosts)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg := FromEnv(envOf(map[string]string{
		"GATEWAY_ADDR":     ":9000",
		"CLIENT_URL":       "HTTPS://Chat.Example.com/app, http://localhost:3000 ,",
		"MAX_MESSAGE_SIZE": "2048",
		"SEND_BUFFER":      "16",
		"LOG_LEVEL":        "DEBUG",
		"KAFKA_BROKERS":    "k1:9092, k2:9092",
		"REDIS_ADDR":       "redis:6379",
		"SCYLLA_HOSTS":     "s1,s2",
		"SHUTDOWN_TIMEOUT": "5",
	}))

	assert.Equal(t, ":9000", cfg.GatewayAddr)
	assert.Equal(t, []string{"https://chat.example.com", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.MaxMessageSize)
	assert.Equal(t, 16, cfg.SendBuffer)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"s1", "s2"}, cfg.ScyllaHosts)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestFromEnvInvalidNumbersKeepDefaults(t *testing.T) {
	cfg := FromEnv(envOf(map[string]string{
		"MAX_MESSAGE_SIZE": "-1",
		"SEND_BUFFER":      "lots",
		"SHUTDOWN_TIMEOUT": "0",
	}))

	assert.Equal(t, int64(10_000_000), cfg.MaxMessageSize)
	assert.Equal(t, 256, cfg.SendBuffer)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestOriginAllowed(t *testing.T) {
	cfg := FromEnv(envOf(map[string]string{"CLIENT_URL": "http://localhost:5173,not a url"}))

	assert.True(t, cfg.OriginAllowed("http://LOCALHOST:5173"))
	assert.True(t, cfg.OriginAllowed(""), "non-browser clients send no origin")
	assert.False(t, cfg.OriginAllowed("http://evil.example"))
	assert.False(t, cfg.OriginAllowed("::"))
	assert.Len(t, cfg.AllowedOrigins, 1)

	all := FromEnv(envOf(map[string]string{"CLIENT_URL": "*"}))
	assert.True(t, all.AllowAll)
	assert.True(t, all.OriginAllowed("http://anything.example"))
}
