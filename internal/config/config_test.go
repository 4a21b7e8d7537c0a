package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Firebase: FirebaseConfig{ProjectID: "shop", PrivateKey: "a2V5", ClientEmail: "svc@shop.iam"},
		JWT:      JWTConfig{Secret: "secret"},
		S3: S3Config{
			Endpoint:               "http://localhost:8333",
			AccessKeyID:            "storefront",
			SecretAccessKey:        "storefront-secret",
			ServiceAccessKeyID:     "storefront-service",
			ServiceSecretAccessKey: "storefront-service-secret",
		},
		Storage: StorageConfig{
			ProductsBucket:      "product-images",
			CategoriesBucket:    "category-images",
			UserAvatarsBucket:   "user-avatars",
			PaymentProofsBucket: "payment-proofs",
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "JWT_SECRET"},
		{"missing firebase project", func(c *Config) { c.Firebase.ProjectID = "" }, "FIREBASE_PROJECT_ID"},
		{"missing general credential", func(c *Config) { c.S3.AccessKeyID = "" }, "S3_ACCESS_KEY_ID"},
		{"missing service credential", func(c *Config) { c.S3.ServiceSecretAccessKey = "" }, "S3_SERVICE_ACCESS_KEY_ID"},
		{"service credential reuses general key", func(c *Config) { c.S3.ServiceAccessKeyID = c.S3.AccessKeyID }, "must differ"},
		{"empty bucket", func(c *Config) { c.Storage.UserAvatarsBucket = " " }, "must not be empty"},
		{"duplicate bucket", func(c *Config) { c.Storage.CategoriesBucket = "product-images" }, "configured twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_INT", "42")
	t.Setenv("STOREFRONT_TEST_BAD_INT", "forty-two")
	t.Setenv("STOREFRONT_TEST_BOOL", "false")

	assert.Equal(t, int64(42), getEnvAsInt64("STOREFRONT_TEST_INT", 1))
	assert.Equal(t, int64(1), getEnvAsInt64("STOREFRONT_TEST_BAD_INT", 1))
	assert.False(t, getEnvAsBool("STOREFRONT_TEST_BOOL", true))
	assert.True(t, getEnvAsBool("STOREFRONT_TEST_UNSET_BOOL", true))
	assert.Equal(t, "fallback", getEnv("STOREFRONT_TEST_UNSET", "fallback"))
}

func TestLoadWithoutValidation(t *testing.T) {
	t.Setenv("S3_ENDPOINT", "http://seaweed:8333")
	t.Setenv("S3_PUBLIC_URL", "")
	t.Setenv("STORAGE_BUCKET_PRODUCTS", "products-staging")
	t.Setenv("STORAGE_SNIFF_CONTENT", "false")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg := LoadWithoutValidation()
	assert.Equal(t, "http://seaweed:8333", cfg.S3.PublicURL)
	assert.Equal(t, "products-staging", cfg.Storage.ProductsBucket)
	assert.Equal(t, "payment-proofs", cfg.Storage.PaymentProofsBucket)
	assert.False(t, cfg.Storage.SniffContent)
	assert.True(t, cfg.OTEL.Insecure)
	assert.Equal(t, "/otlp", cfg.OTEL.BasePath)

	_, err := Load()
	assert.Error(t, err)
}
