package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	RulesPath     string
}

// RedisConfig configures the event queue backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	QueueKey     string
}

// PostgresConfig configures the relational digest sink.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig configures the streaming digest sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// DigestConfig configures the engine schedule.
type DigestConfig struct {
	Interval    time.Duration
	Parallelism int
}

// Config is everything main needs to wire the pipeline.
type Config struct {
	Server   Server
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Digest   DigestConfig
}

// FromEnv builds the configuration from environment variables so main stays
// lean. Empty backend settings mean the backend is not wired.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("CHRONICLE_ADDR", ":8080"),
			JWTSigningKey: envOr("CHRONICLE_JWT_SIGNING_KEY", ""),
			RulesPath:     envOr("CHRONICLE_RULES_PATH", "rules.yaml"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("CHRONICLE_REDIS_URL"),
			PoolSize:     envIntOr("CHRONICLE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("CHRONICLE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDurationOr("CHRONICLE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("CHRONICLE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("CHRONICLE_REDIS_WRITE_TIMEOUT", 3*time.Second),
			QueueKey:     envOr("CHRONICLE_REDIS_QUEUE_KEY", "chronicle:events"),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("CHRONICLE_POSTGRES_DSN"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("CHRONICLE_KAFKA_BROKERS")),
			Topic:   envOr("CHRONICLE_KAFKA_TOPIC", "chronicle.digests"),
		},
		Digest: DigestConfig{
			Interval:    envDurationOr("CHRONICLE_DIGEST_INTERVAL", 5*time.Minute),
			Parallelism: envIntOr("CHRONICLE_DIGEST_PARALLELISM", 4),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
