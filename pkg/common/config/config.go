package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers         []string
	KafkaGroupID         string
	DefinitionEventTopic string
	RefreshSummaryTopic  string

	// Terminology
	TerminologyCatalogPath string

	// Engine tuning
	AcceptanceThreshold float64
	LeadTimeBuffer      time.Duration
	GracePeriod         time.Duration
	RefreshBatchSize    int
	PatientTimeout      time.Duration
	BatchTimeout        time.Duration

	// Caching
	SnapshotCacheTTL time.Duration

	// Background sweep
	SweepInterval time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "screening"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "screening123"),
		PostgresDB:       getEnv("POSTGRES_DB", "screening"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:         getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:         getEnv("KAFKA_GROUP_ID", "screening-engine"),
		DefinitionEventTopic: getEnv("DEFINITION_EVENT_TOPIC", "screening.definition-changes"),
		RefreshSummaryTopic:  getEnv("REFRESH_SUMMARY_TOPIC", "screening.refresh-summaries"),

		TerminologyCatalogPath: getEnv("TERMINOLOGY_CATALOG_PATH", ""),

		AcceptanceThreshold: getFloatEnv("ACCEPTANCE_THRESHOLD", 0.6),
		LeadTimeBuffer:      getDuration("LEAD_TIME_BUFFER", 30*24*time.Hour),
		GracePeriod:         getDuration("GRACE_PERIOD", 30*24*time.Hour),
		RefreshBatchSize:    getIntEnv("REFRESH_BATCH_SIZE", 50),
		PatientTimeout:      getDuration("PATIENT_TIMEOUT", 10*time.Second),
		BatchTimeout:        getDuration("BATCH_TIMEOUT", 10*time.Minute),

		SnapshotCacheTTL: getDuration("SNAPSHOT_CACHE_TTL", 5*time.Minute),

		SweepInterval: getDuration("SWEEP_INTERVAL", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
