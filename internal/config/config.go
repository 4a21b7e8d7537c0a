package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	MongoDB  MongoDBConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	JWT      JWTConfig
	S3       S3Config
	Storage  StorageConfig
	OTEL     OTELConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	MaxUploadSizeMB int64
	CORSOrigins     string
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
}

// FirebaseConfig holds Firebase Admin SDK configuration used to verify customer ID tokens
type FirebaseConfig struct {
	ProjectID   string
	PrivateKey  string // Base64 encoded
	ClientEmail string
}

// JWTConfig holds the secret used to sign and verify staff tokens
type JWTConfig struct {
	Secret string
}

// S3Config holds the S3-compatible object store connection.
// The service credential is the elevated one used for payment proofs and bucket provisioning.
type S3Config struct {
	Endpoint               string
	PublicURL              string
	Region                 string
	UsePathStyle           bool
	AccessKeyID            string
	SecretAccessKey        string
	ServiceAccessKeyID     string
	ServiceSecretAccessKey string
}

// StorageConfig holds bucket names and upload rules
type StorageConfig struct {
	ProductsBucket      string
	CategoriesBucket    string
	UserAvatarsBucket   string
	PaymentProofsBucket string
	SniffContent        bool
	ListCacheTTLSeconds int64
}

// OTELConfig holds OpenTelemetry exporter configuration
type OTELConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	BasePath       string
	Insecure       bool
	InstanceID     string
	Token          string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and validates it for the API server
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	cfg := LoadWithoutValidation()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadWithoutValidation reads the same settings as Load, leaving validation to the caller.
// Command line tools use it with the narrower check they need.
func LoadWithoutValidation() *Config {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			MaxUploadSizeMB: getEnvAsInt64("MAX_UPLOAD_SIZE_MB", 6),
			CORSOrigins:     getEnv("CORS_ORIGINS", "*"),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "storefront"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Firebase: FirebaseConfig{
			ProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
			PrivateKey:  getEnv("FIREBASE_PRIVATE_KEY", ""),
			ClientEmail: getEnv("FIREBASE_CLIENT_EMAIL", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		S3: S3Config{
			Endpoint:               getEnv("S3_ENDPOINT", "http://localhost:8333"),
			PublicURL:              getEnv("S3_PUBLIC_URL", ""),
			Region:                 getEnv("S3_REGION", "us-east-1"),
			UsePathStyle:           getEnvAsBool("S3_USE_PATH_STYLE", true),
			AccessKeyID:            getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey:        getEnv("S3_SECRET_ACCESS_KEY", ""),
			ServiceAccessKeyID:     getEnv("S3_SERVICE_ACCESS_KEY_ID", ""),
			ServiceSecretAccessKey: getEnv("S3_SERVICE_SECRET_ACCESS_KEY", ""),
		},
		Storage: StorageConfig{
			ProductsBucket:      getEnv("STORAGE_BUCKET_PRODUCTS", "product-images"),
			CategoriesBucket:    getEnv("STORAGE_BUCKET_CATEGORIES", "category-images"),
			UserAvatarsBucket:   getEnv("STORAGE_BUCKET_USER_AVATARS", "user-avatars"),
			PaymentProofsBucket: getEnv("STORAGE_BUCKET_PAYMENT_PROOFS", "payment-proofs"),
			SniffContent:        getEnvAsBool("STORAGE_SNIFF_CONTENT", true),
			ListCacheTTLSeconds: getEnvAsInt64("STORAGE_LIST_CACHE_TTL_SECONDS", 60),
		},
		OTEL: OTELConfig{
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "storefront-api"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("OTEL_ENVIRONMENT", "development"),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			BasePath:       getEnv("OTEL_EXPORTER_OTLP_BASE_PATH", "/otlp"),
			Insecure:       getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			InstanceID:     getEnv("OTEL_INSTANCE_ID", ""),
			Token:          getEnv("OTEL_TOKEN", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.S3.PublicURL == "" {
		cfg.S3.PublicURL = cfg.S3.Endpoint
	}

	return cfg
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Firebase.ProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required")
	}
	if c.Firebase.PrivateKey == "" {
		return fmt.Errorf("FIREBASE_PRIVATE_KEY is required")
	}
	if c.Firebase.ClientEmail == "" {
		return fmt.Errorf("FIREBASE_CLIENT_EMAIL is required")
	}
	return c.ValidateStorage()
}

// ValidateStorage checks the object store settings on their own.
// Binaries that only touch storage call this instead of Validate.
func (c *Config) ValidateStorage() error {
	if c.S3.Endpoint == "" {
		return fmt.Errorf("S3_ENDPOINT is required")
	}
	if c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "" {
		return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required")
	}
	if c.S3.ServiceAccessKeyID == "" || c.S3.ServiceSecretAccessKey == "" {
		return fmt.Errorf("S3_SERVICE_ACCESS_KEY_ID and S3_SERVICE_SECRET_ACCESS_KEY are required")
	}
	// The elevated credential must actually be a different principal
	if c.S3.ServiceAccessKeyID == c.S3.AccessKeyID {
		return fmt.Errorf("S3_SERVICE_ACCESS_KEY_ID must differ from S3_ACCESS_KEY_ID")
	}

	names := map[string]bool{}
	for _, name := range []string{
		c.Storage.ProductsBucket,
		c.Storage.CategoriesBucket,
		c.Storage.UserAvatarsBucket,
		c.Storage.PaymentProofsBucket,
	} {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("storage bucket names must not be empty")
		}
		if names[name] {
			return fmt.Errorf("storage bucket %q is configured twice", name)
		}
		names[name] = true
	}
	return nil
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

// getEnvAsBool retrieves an environment variable as bool or returns a default value
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
