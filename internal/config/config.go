package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Service configuration
	ServicePort string
	ServiceName string

	// Authentication
	AppPassword string
	TokenSecret string
	TokenTTL    time.Duration

	// Upload limits
	MaxUploadMB int

	// Workflow
	Analyzer          string // "ruleset" or "static"
	CollabTimeout     time.Duration
	SessionTTL        time.Duration
	CleanupSchedule   string // cron spec for the janitor sweep
	AllowedOrigins    string

	// Storage backend selection
	BlobBackend     string // "minio" or "disk"
	RegistryBackend string // "memory" or "mysql"
	DataDir         string

	// MinIO configuration
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucketName string
	MinIOUseSSL     bool

	// MySQL configuration
	MySQLHost     string
	MySQLPort     string
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	// Redis configuration
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Jaeger configuration
	JaegerEndpoint string
}

// LoadConfig loads configuration from environment variables with sensible defaults
func LoadConfig() (*Config, error) {
	// .env is a dev convenience; production injects env vars through infra
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	config := &Config{
		// Service defaults
		ServicePort: getEnv("SERVICE_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "slidecheck-service"),

		// Auth defaults
		AppPassword: getEnv("APP_PASSWORD", "ppt2025"),
		TokenSecret: getEnv("TOKEN_SECRET", "slidecheck-dev-secret"),
		TokenTTL:    getEnvAsDuration("TOKEN_TTL", 12*time.Hour),

		// Upload defaults
		MaxUploadMB: getEnvAsInt("MAX_UPLOAD_MB", 5),

		// Workflow defaults
		Analyzer:        getEnv("ANALYZER", "ruleset"),
		CollabTimeout:   getEnvAsDuration("COLLAB_TIMEOUT", 30*time.Second),
		SessionTTL:      getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "@every 10m"),
		AllowedOrigins:  getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		// Storage defaults
		BlobBackend:     getEnv("BLOB_BACKEND", "disk"),
		RegistryBackend: getEnv("REGISTRY_BACKEND", "memory"),
		DataDir:         getEnv("DATA_DIR", "./data"),

		// MinIO defaults
		MinIOEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucketName: getEnv("MINIO_BUCKET_NAME", "slidecheck"),
		MinIOUseSSL:     getEnvAsBool("MINIO_USE_SSL", false),

		// MySQL defaults
		MySQLHost:     getEnv("MYSQL_HOST", "localhost"),
		MySQLPort:     getEnv("MYSQL_PORT", "3306"),
		MySQLUser:     getEnv("MYSQL_USER", "root"),
		MySQLPassword: getEnv("MYSQL_PASSWORD", ""),
		MySQLDatabase: getEnv("MYSQL_DATABASE", "slidecheck"),

		// Redis defaults
		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Jaeger defaults
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:4318"),
	}

	if config.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", config.MaxUploadMB)
	}

	return config, nil
}

// GetDSN returns the MySQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.MySQLUser,
		c.MySQLPassword,
		c.MySQLHost,
		c.MySQLPort,
		c.MySQLDatabase,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// MaxUploadBytes returns the upload ceiling in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
