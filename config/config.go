package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"spinnergy/database"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Leaderboard strategies and caches
const (
	LeaderboardRecompute = "recompute"
	LeaderboardCached    = "cached"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Event sinks
const (
	SinkNone  = "none"
	SinkNATS  = "nats"
	SinkKafka = "kafka"
)

// Config holds all application configuration
type Config struct {
	// Logging
	LogLevel string

	// Storage configuration
	StoreBackend string // "memory", "file" or "postgres"
	DataFile     string // Journal path for the file backend

	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Ledger configuration
	StorageTimeout    time.Duration // Upper bound for a single storage attempt
	LedgerMaxAttempts int           // Optimistic retries before giving up

	// Leaderboard configuration
	LeaderboardStrategy          string // "recompute" or "cached"
	LeaderboardCache             string // "memory" or "redis"
	RedisURL                     string
	LeaderboardKey               string
	LeaderboardReconcileSchedule string // cron spec for cache reconciliation

	// Retention windows in days
	ChatWindowDays         int
	MealWindowDays         int
	HistoryWindowDays      int
	RetentionPruneSchedule string // cron spec for the janitor

	// Event sink configuration
	EventSink    string // "none", "nats" or "kafka"
	NATSServers  string // NATS server addresses (comma-separated)
	KafkaBrokers []string
	KafkaTopic   string

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelServiceName          string
	OTelExportIntervalMillis int

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	config := &Config{
		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		StoreBackend: getEnvWithDefault("STORE_BACKEND", BackendMemory),
		DataFile:     getEnvWithDefault("DATA_FILE", "data/spinnergy.jsonl"),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		StorageTimeout:    time.Duration(getIntWithDefault("STORAGE_TIMEOUT_MS", 2000)) * time.Millisecond,
		LedgerMaxAttempts: getIntWithDefault("LEDGER_MAX_ATTEMPTS", 5),

		LeaderboardStrategy:          getEnvWithDefault("LEADERBOARD_STRATEGY", LeaderboardRecompute),
		LeaderboardCache:             getEnvWithDefault("LEADERBOARD_CACHE", CacheMemory),
		RedisURL:                     os.Getenv("REDIS_URL"),
		LeaderboardKey:               getEnvWithDefault("LEADERBOARD_KEY", "spinnergy:leaderboard"),
		LeaderboardReconcileSchedule: getEnvWithDefault("LEADERBOARD_RECONCILE_SCHEDULE", "@every 5m"),

		ChatWindowDays:         getIntWithDefault("CHAT_WINDOW_DAYS", 30),
		MealWindowDays:         getIntWithDefault("MEAL_WINDOW_DAYS", 90),
		HistoryWindowDays:      getIntWithDefault("HISTORY_WINDOW_DAYS", 90),
		RetentionPruneSchedule: getEnvWithDefault("RETENTION_PRUNE_SCHEDULE", "@daily"),

		EventSink:   getEnvWithDefault("EVENT_SINK", SinkNone),
		NATSServers: getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),
		KafkaTopic:  getEnvWithDefault("KAFKA_TOPIC", "ledger.events"),

		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_OTLP_ENDPOINT", "localhost:4317"),
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "spinnergy"),
		OTelExportIntervalMillis: getIntWithDefault("OTEL_EXPORT_INTERVAL_MS", 30000),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Parse Kafka brokers
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			broker = strings.TrimSpace(broker)
			if broker != "" {
				config.KafkaBrokers = append(config.KafkaBrokers, broker)
			}
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// Validate checks that the selected backends have what they need
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendFile:
		if c.DataFile == "" {
			return fmt.Errorf("DATA_FILE is required for the file backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
			return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND: %s", c.StoreBackend)
	}

	switch c.LeaderboardStrategy {
	case LeaderboardRecompute:
	case LeaderboardCached:
		switch c.LeaderboardCache {
		case CacheMemory:
		case CacheRedis:
			if c.RedisURL == "" {
				return fmt.Errorf("REDIS_URL is required for the redis leaderboard cache")
			}
		default:
			return fmt.Errorf("unknown LEADERBOARD_CACHE: %s", c.LeaderboardCache)
		}
	default:
		return fmt.Errorf("unknown LEADERBOARD_STRATEGY: %s", c.LeaderboardStrategy)
	}

	switch c.EventSink {
	case SinkNone, SinkNATS:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for the kafka event sink")
		}
	default:
		return fmt.Errorf("unknown EVENT_SINK: %s", c.EventSink)
	}

	if c.LedgerMaxAttempts < 1 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS must be at least 1")
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT_MS must be positive")
	}
	if c.ChatWindowDays < 0 || c.MealWindowDays < 0 || c.HistoryWindowDays < 0 {
		return fmt.Errorf("retention windows cannot be negative")
	}

	return nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntWithDefault parses an integer environment variable, falling back on a parse error
func getIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		LogLevel:                     "debug",
		StoreBackend:                 BackendMemory,
		StorageTimeout:               2 * time.Second,
		LedgerMaxAttempts:            5,
		LeaderboardStrategy:          LeaderboardRecompute,
		LeaderboardCache:             CacheMemory,
		LeaderboardKey:               "spinnergy:leaderboard:test",
		LeaderboardReconcileSchedule: "@every 5m",
		ChatWindowDays:               30,
		MealWindowDays:               90,
		HistoryWindowDays:            90,
		RetentionPruneSchedule:       "@daily",
		EventSink:                    SinkNone,
		KafkaTopic:                   "ledger.events",
		OTelServiceName:              "spinnergy-test",
		Environment:                  "test",
	}
}
