package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "propshare/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr     string
	LogLevel string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// AdminAddress receives every role at startup, like a contract deployer.
	AdminAddress string
	RolesFile    string

	Database Database
	Redis    RedisConfig
	Kafka    KafkaConfig
	NATS     NATSConfig
	Relay    RelayConfig
	Limits   RateLimitConfig

	ShutdownTimeout time.Duration
}

// Database configures the Postgres journal. An empty URL keeps the journal in memory.
type Database struct {
	URL       string
	Driver    string
	TxTimeout time.Duration
}

// RedisConfig configures the voting-power projection. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the Kafka sink. No brokers disables it.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

// NATSConfig configures the JetStream sink. An empty URL disables it.
type NATSConfig struct {
	URL    string
	Stream string
}

type RelayConfig struct {
	// HighWater is the per-sink queue depth above which a warning is logged.
	HighWater      int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BreakerFails   int
	BreakerCool    time.Duration
}

// RateLimitConfig bounds mutating requests per caller. Zero Requests disables it.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var errs []error
	cfg := Server{
		Addr:          envOr("PROPSHARE_ADDR", ":8080"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", devSigningKey),
		JWTIssuer:     envOr("JWT_ISSUER", "propshare"),
		JWTAudience:   envOr("JWT_AUDIENCE", "propshare-api"),
		AdminAddress:  os.Getenv("ADMIN_ADDRESS"),
		RolesFile:     os.Getenv("ROLES_FILE"),
		Database: Database{
			URL:       os.Getenv("DATABASE_URL"),
			Driver:    envOr("DATABASE_DRIVER", "pgx"),
			TxTimeout: envDuration("DATABASE_TX_TIMEOUT", 5*time.Second, &errs),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:           envList("KAFKA_BROKERS"),
			Topic:             envOr("KAFKA_TOPIC", "propshare.events"),
			Partitions:        int32(envInt("KAFKA_PARTITIONS", 3, &errs)),
			ReplicationFactor: int16(envInt("KAFKA_REPLICATION_FACTOR", 1, &errs)),
		},
		NATS: NATSConfig{
			URL:    os.Getenv("NATS_URL"),
			Stream: envOr("NATS_STREAM", "PROPSHARE"),
		},
		Relay: RelayConfig{
			HighWater:      envInt("RELAY_BUFFER", 10_000, &errs),
			InitialBackoff: envDuration("RELAY_INITIAL_BACKOFF", 100*time.Millisecond, &errs),
			MaxBackoff:     envDuration("RELAY_MAX_BACKOFF", 30*time.Second, &errs),
			BreakerFails:   envInt("RELAY_BREAKER_FAILURES", 5, &errs),
			BreakerCool:    envDuration("RELAY_BREAKER_COOLDOWN", 30*time.Second, &errs),
		},
		Limits: RateLimitConfig{
			Requests: envInt("RATE_LIMIT_REQUESTS", 120, &errs),
			Window:   envDuration("RATE_LIMIT_WINDOW", time.Minute, &errs),
		},
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second, &errs),
	}
	if cfg.Database.Driver != "pgx" && cfg.Database.Driver != "postgres" {
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be pgx or postgres, got %q", cfg.Database.Driver))
	}
	if len(cfg.JWTSigningKey) < 16 {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be at least 16 bytes"))
	}
	return cfg, errors.Join(errs...)
}

// UsingDevSigningKey reports whether the built-in development key is active.
func (s Server) UsingDevSigningKey() bool {
	return s.JWTSigningKey == devSigningKey
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid non-negative integer %q", key, raw))
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return fallback
	}
	return d
}

func envList(key string) []string {
	return pstrings.SplitList(os.Getenv(key), ",")
}
