package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"

	defaultPort             = "8082"
	defaultLogLevel         = "info"
	defaultDBConnectRetries = 10
	defaultKafkaTopic       = "order-topic"
	defaultKafkaGroupID     = "order-cache-group"
	defaultRateLimit        = 10
	defaultRateBurst        = 30
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultProductCacheTTL  = time.Minute
	defaultShutdownTimeout  = 5 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	LogLevel  string
	Store     string
	DB        DBConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	JWTSecret string
}

type ServerConfig struct {
	Port            string
	RateLimit       float64
	RateBurst       int
	ShutdownTimeout time.Duration
}

type DBConfig struct {
	Host           string
	Port           string
	User           string
	Pass           string
	Name           string
	ConnectRetries int
}

type RedisConfig struct {
	Addr            string
	IdempotencyTTL  time.Duration
	ProductCacheTTL time.Duration
}

// KafkaConfig is disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads the configuration through lookup, which has the signature of os.LookupEnv.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "PORT", defaultPort),
			RateLimit:       floatWithDefault(lookup, "RATE_LIMIT", defaultRateLimit),
			RateBurst:       intWithDefault(lookup, "RATE_BURST", defaultRateBurst),
			ShutdownTimeout: durationWithDefault(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		LogLevel: stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel),
		Store:    strings.ToLower(stringWithDefault(lookup, "STORE", StoreMemory)),
		DB: DBConfig{
			Host:           stringWithDefault(lookup, "DB_HOST", "localhost"),
			Port:           stringWithDefault(lookup, "DB_PORT", "3306"),
			User:           stringWithDefault(lookup, "DB_USER", "root"),
			Pass:           stringWithDefault(lookup, "DB_PASS", ""),
			Name:           stringWithDefault(lookup, "DB_NAME", "retail"),
			ConnectRetries: intWithDefault(lookup, "DB_CONNECT_RETRIES", defaultDBConnectRetries),
		},
		Redis: RedisConfig{
			Addr:            stringWithDefault(lookup, "REDIS_ADDR", ""),
			IdempotencyTTL:  durationWithDefault(lookup, "IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			ProductCacheTTL: durationWithDefault(lookup, "PRODUCT_CACHE_TTL", defaultProductCacheTTL),
		},
		Kafka: KafkaConfig{
			Brokers: csvWithDefault(lookup, "KAFKA_BROKERS"),
			Topic:   stringWithDefault(lookup, "KAFKA_TOPIC", defaultKafkaTopic),
			GroupID: stringWithDefault(lookup, "KAFKA_GROUP_ID", defaultKafkaGroupID),
		},
		JWTSecret: stringWithDefault(lookup, "JWT_SECRET", ""),
	}
	return cfg, validate(cfg)
}

func validate(cfg Config) error {
	var problems []string
	if cfg.Store != StoreMemory && cfg.Store != StoreMySQL {
		problems = append(problems, fmt.Sprintf("STORE must be %q or %q, got %q", StoreMemory, StoreMySQL, cfg.Store))
	}
	if cfg.Server.RateLimit <= 0 {
		problems = append(problems, "RATE_LIMIT must be positive")
	}
	if cfg.Server.RateBurst <= 0 {
		problems = append(problems, "RATE_BURST must be positive")
	}
	if cfg.DB.ConnectRetries <= 0 {
		problems = append(problems, "DB_CONNECT_RETRIES must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
