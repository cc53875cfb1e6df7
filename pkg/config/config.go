// Package config loads runtime settings for the relay processes from the
// environment, after reading an optional .env file.
package config

import (
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GatewayAddr    string
	APIAddr        string
	AllowedOrigins []string
	AllowAll       bool
	MaxMessageSize int64
	SendBuffer     int

	LogLevel  string
	LogFormat string

	RedisAddr      string
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaGroup     string
	NatsURL        string
	NatsStream     string
	ScyllaHosts    []string
	ScyllaKeyspace string

	ShutdownTimeout time.Duration
}

func Default() Config {
	return Config{
		GatewayAddr:     ":8080",
		APIAddr:         ":8081",
		AllowedOrigins:  []string{"http://localhost:5173"},
		MaxMessageSize:  10_000_000,
		SendBuffer:      256,
		LogLevel:        "info",
		LogFormat:       "text",
		KafkaTopic:      "chat-activity",
		KafkaGroup:      "archiver-group",
		NatsStream:      "CHAT_ACTIVITY",
		ScyllaHosts:     []string{"localhost:9042"},
		ScyllaKeyspace:  "chat",
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load reads .env (if present) and the environment. Unset or invalid values
// keep their defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env", "error", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) Config {
	cfg := Default()

	if v := getenv("GATEWAY_ADDR"); v != "" {
		cfg.GatewayAddr = v
	}
	if v := getenv("API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := getenv("CLIENT_URL"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	cfg.MaxMessageSize = parseInt64(getenv("MAX_MESSAGE_SIZE"), cfg.MaxMessageSize)
	cfg.SendBuffer = int(parseInt64(getenv("SEND_BUFFER"), int64(cfg.SendBuffer)))

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	cfg.RedisAddr = getenv("REDIS_ADDR")
	cfg.KafkaBrokers = splitList(getenv("KAFKA_BROKERS"))
	if v := getenv("KAFKA_TOPIC"); v != "" {
		cfg.KafkaTopic = v
	}
	if v := getenv("KAFKA_GROUP"); v != "" {
		cfg.KafkaGroup = v
	}
	cfg.NatsURL = getenv("NATS_URL")
	if v := getenv("NATS_STREAM"); v != "" {
		cfg.NatsStream = v
	}
	if v := getenv("SCYLLA_HOSTS"); v != "" {
		cfg.ScyllaHosts = splitList(v)
	}
	if v := getenv("SCYLLA_KEYSPACE"); v != "" {
		cfg.ScyllaKeyspace = v
	}
	if secs := parseInt64(getenv("SHUTDOWN_TIMEOUT"), 0); secs > 0 {
		cfg.ShutdownTimeout = time.Duration(secs) * time.Second
	}

	cfg.AllowedOrigins, cfg.AllowAll = normalizeOrigins(cfg.AllowedOrigins)
	return cfg
}

// OriginAllowed reports whether a browser Origin header matches the
// configured client origins. Requests without an Origin (non-browser
// clients) are allowed.
func (c Config) OriginAllowed(origin string) bool {
	if origin == "" || c.AllowAll {
		return true
	}
	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	for _, o := range c.AllowedOrigins {
		if o == normalized {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt64(v string, def int64) int64 {
	if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
		return n
	}
	return def
}

func normalizeOrigins(origins []string) ([]string, bool) {
	normalized := make([]string, 0, len(origins))
	allowAll := false
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
			continue
		}
		n, ok := normalizeOrigin(origin)
		if !ok {
			slog.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		normalized = append(normalized, n)
	}
	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
