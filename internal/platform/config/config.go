// Package config builds runtime configuration from the environment so main
// stays lean. Every knob has a development default; production deployments
// override via FRAUDWATCH_* variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "fraudwatch/pkg/platform/strings"
)

// PostgresConfig holds connection settings for the durable store. An empty
// URL selects the in-memory stores.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds connection settings for the duplicate-check seen index.
// An empty URL disables the index; the durable store remains authoritative.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the decision event stream. No brokers
// disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// DetectionConfig sizes the evaluation worker pool and bounds a single
// evaluation.
type DetectionConfig struct {
	Workers     int
	QueueSize   int
	EvalTimeout time.Duration
}

// Config is the full runtime configuration.
type Config struct {
	Addr          string
	JWTSigningKey string
	SeedRules     bool
	CacheTTL      time.Duration
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Detection     DetectionConfig
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          envStr("FRAUDWATCH_ADDR", ":8080"),
		JWTSigningKey: envStr("FRAUDWATCH_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SeedRules:     envStr("FRAUDWATCH_SEED_RULES", "true") == "true",
		CacheTTL:      envDur("FRAUDWATCH_CACHE_TTL", 5*time.Minute),
		Postgres: PostgresConfig{
			URL:             os.Getenv("FRAUDWATCH_DATABASE_URL"),
			MaxOpenConns:    envInt("FRAUDWATCH_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("FRAUDWATCH_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDur("FRAUDWATCH_DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("FRAUDWATCH_REDIS_URL"),
			PoolSize:     envInt("FRAUDWATCH_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("FRAUDWATCH_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDur("FRAUDWATCH_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDur("FRAUDWATCH_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDur("FRAUDWATCH_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("FRAUDWATCH_KAFKA_BROKERS"),
			Topic:   envStr("FRAUDWATCH_KAFKA_TOPIC", "fraudwatch.decisions"),
		},
		Detection: DetectionConfig{
			Workers:     envInt("FRAUDWATCH_EVAL_WORKERS", 10),
			QueueSize:   envInt("FRAUDWATCH_EVAL_QUEUE_SIZE", 100),
			EvalTimeout: envDur("FRAUDWATCH_EVAL_TIMEOUT", 5*time.Second),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return platformstrings.DedupeAndTrim(strings.Split(v, ","))
}
