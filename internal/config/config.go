package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageBackendDisk = "disk"
	StorageBackendS3   = "s3"
)

// Name strategies for stored files
const (
	NameStrategyUUID      = "uuid"
	NameStrategyULID      = "ulid"
	NameStrategyTimestamp = "timestamp"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Upload  UploadConfig
	S3      S3Config
	MongoDB MongoDBConfig
	Redis   RedisConfig
	OTEL    OTELConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	MaxUploadSizeMB int64
	MaxUploadFiles  int
}

// UploadConfig controls where images land and how they are addressed
type UploadConfig struct {
	Dir             string
	PublicBaseURL   string // must end with "/", stored names are appended verbatim
	NameStrategy    string
	StorageBackend  string
	ListCacheTTL    time.Duration
	IdempotencyTTL  time.Duration
	WriteConcurrent int
}

// S3Config holds S3-compatible object storage configuration
type S3Config struct {
	Endpoint string
	Region   string
	Bucket   string
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	Enabled  bool
	URI      string
	Database string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
}

// OTELConfig holds OpenTelemetry exporter configuration
type OTELConfig struct {
	Enabled        bool
	Endpoint       string
	URLPrefix      string
	InstanceID     string
	Token          string
	ServiceName    string
	ServiceVersion string
	Environment    string
	Insecure       bool    // plain HTTP, for a local collector
	SampleRatio    float64 // root span sampling, 0..1
	MetricInterval time.Duration
}

// Load reads configuration from environment variables
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	port := getEnv("PORT", "5000")
	backend := strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendDisk))
	s3Cfg := S3Config{
		Endpoint: getEnv("S3_ENDPOINT", "http://localhost:8333"),
		Region:   getEnv("S3_REGION", "us-east-1"),
		Bucket:   getEnv("S3_BUCKET", ""),
	}

	// Files on disk are served by this process; S3 objects by the store itself
	defaultBaseURL := "http://localhost:" + port + "/uploads/"
	if backend == StorageBackendS3 {
		defaultBaseURL = s3Cfg.ObjectBaseURL()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            port,
			MaxUploadSizeMB: getEnvAsInt64("MAX_UPLOAD_SIZE_MB", 5),
			MaxUploadFiles:  int(getEnvAsInt64("MAX_UPLOAD_FILES", 10)),
		},
		Upload: UploadConfig{
			Dir:             getEnv("UPLOAD_DIR", "./uploads"),
			PublicBaseURL:   normalizeBaseURL(getEnv("PUBLIC_BASE_URL", defaultBaseURL)),
			NameStrategy:    strings.ToLower(getEnv("UPLOAD_NAME_STRATEGY", NameStrategyUUID)),
			StorageBackend:  backend,
			ListCacheTTL:    getEnvAsDuration("LIST_CACHE_TTL", 30*time.Second),
			IdempotencyTTL:  getEnvAsDuration("IDEMPOTENCY_TTL", 10*time.Minute),
			WriteConcurrent: int(getEnvAsInt64("UPLOAD_WRITE_CONCURRENCY", 4)),
		},
		S3: s3Cfg,
		MongoDB: MongoDBConfig{
			Enabled:  getEnvAsBool("MONGODB_ENABLED", false),
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "imagedrop"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		OTEL: OTELConfig{
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			URLPrefix:      getEnv("OTEL_URL_PREFIX", ""),
			InstanceID:     getEnv("OTEL_INSTANCE_ID", ""),
			Token:          getEnv("OTEL_TOKEN", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "imagedrop-api"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("OTEL_ENVIRONMENT", "development"),
			Insecure:       getEnvAsBool("OTEL_INSECURE", false),
			SampleRatio:    getEnvAsFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0),
			MetricInterval: getEnvAsDuration("OTEL_METRIC_INTERVAL", 30*time.Second),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Upload.PublicBaseURL == "" {
		return fmt.Errorf("PUBLIC_BASE_URL is required")
	}
	if c.Server.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.Server.MaxUploadFiles <= 0 {
		return fmt.Errorf("MAX_UPLOAD_FILES must be positive")
	}

	switch c.Upload.NameStrategy {
	case NameStrategyUUID, NameStrategyULID, NameStrategyTimestamp:
	default:
		return fmt.Errorf("unknown UPLOAD_NAME_STRATEGY %q", c.Upload.NameStrategy)
	}

	switch c.Upload.StorageBackend {
	case StorageBackendDisk:
		if c.Upload.Dir == "" {
			return fmt.Errorf("UPLOAD_DIR is required for the disk backend")
		}
	case StorageBackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Upload.StorageBackend)
	}

	if c.OTEL.Enabled {
		if c.OTEL.Endpoint == "" {
			return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is set")
		}
		if c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1 {
			return fmt.Errorf("OTEL_TRACES_SAMPLE_RATIO must be between 0 and 1")
		}
	}
	return nil
}

// MaxUploadBytes returns the per-file size limit in bytes
func (s ServerConfig) MaxUploadBytes() int64 {
	return s.MaxUploadSizeMB * 1024 * 1024
}

// ObjectBaseURL is the path-style public prefix of the bucket: {endpoint}/{bucket}/
func (s S3Config) ObjectBaseURL() string {
	return strings.TrimSuffix(s.Endpoint, "/") + "/" + s.Bucket + "/"
}

func normalizeBaseURL(u string) string {
	u = strings.TrimSpace(u)
	if u != "" && !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64 retrieves an environment variable as int64 or returns a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as float64 or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration syntax ("30s", "5m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
