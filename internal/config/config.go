package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	Database    DatabaseConfig
	Shopify     ShopifyConfig
	Firestore   FirestoreConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Tenancy     TenancyConfig
	Checkout    CheckoutConfig
	// OTLPEndpoint enables trace export when set (e.g. otel-collector:4317)
	OTLPEndpoint string
	// RefDataPath is the YAML file holding markets and the location eligibility table
	RefDataPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether a database host was configured
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

type ShopifyConfig struct {
	ShopDomain      string
	AccessToken     string // Admin API (management) token
	StorefrontToken string // Storefront API (read) token
	APIVersion      string
	// RequestsPerSecond and Burst bound calls to both APIs together
	RequestsPerSecond float64
	Burst             int
}

type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
	// RootCollection holds one document per tenant: {root}/{tenant}/products/{productId}
	RootCollection string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PinTTL   time.Duration
}

type KafkaConfig struct {
	Brokers       string // comma separated
	CheckoutTopic string
}

type TenancyConfig struct {
	DefaultTenant string
	DefaultMarket string
	Tenants       []string
}

type CheckoutConfig struct {
	// FanOut bounds concurrent external calls per checkout attempt
	FanOut int
	// VerifyBatchSize is the number of variant refs per read-API query
	VerifyBatchSize int
	// IndexingRetryAfter is the suggested wait for an IndexingDelay rejection
	IndexingRetryAfter time.Duration
	// UpstreamRetryAfter is the suggested first backoff for UpstreamUnavailable
	UpstreamRetryAfter time.Duration
}

func Load() (*Config, error) {
	// .env files feed the process environment too, so CLI tools see the same values
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", ""),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "storefront_checkout"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Shopify: ShopifyConfig{
			ShopDomain:        strings.TrimSpace(getEnvOrViper("SHOPIFY_SHOP_DOMAIN", "")),
			AccessToken:       strings.TrimSpace(getEnvOrViper("SHOPIFY_ACCESS_TOKEN", "")),
			StorefrontToken:   strings.TrimSpace(getEnvOrViper("SHOPIFY_STOREFRONT_TOKEN", "")),
			APIVersion:        getEnvOrViper("SHOPIFY_API_VERSION", "2025-01"),
			RequestsPerSecond: getFloat("SHOPIFY_REQUESTS_PER_SECOND", 4),
			Burst:             getInt("SHOPIFY_BURST", 8),
		},
		Firestore: FirestoreConfig{
			ProjectID:       strings.TrimSpace(getEnvOrViper("FIRESTORE_PROJECT_ID", "")),
			CredentialsFile: strings.TrimSpace(getEnvOrViper("FIRESTORE_CREDENTIALS_FILE", "")),
			RootCollection:  getEnvOrViper("CATALOG_ROOT_COLLECTION", "storefronts"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getEnvOrViper("REDIS_ADDR", "")),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			PinTTL:   getDuration("SESSION_PIN_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.TrimSpace(getEnvOrViper("KAFKA_BROKERS", "")),
			CheckoutTopic: getEnvOrViper("KAFKA_CHECKOUT_TOPIC", "storefront.checkout"),
		},
		Tenancy: TenancyConfig{
			DefaultTenant: strings.TrimSpace(getEnvOrViper("DEFAULT_TENANT", "LUNA")),
			DefaultMarket: strings.ToUpper(strings.TrimSpace(getEnvOrViper("DEFAULT_MARKET", "FI"))),
			Tenants:       splitCSV(getEnvOrViper("TENANTS", "")),
		},
		Checkout: CheckoutConfig{
			FanOut:             getInt("CHECKOUT_FANOUT", 4),
			VerifyBatchSize:    getInt("CHECKOUT_VERIFY_BATCH", 50),
			IndexingRetryAfter: getDuration("CHECKOUT_INDEXING_RETRY_AFTER", 30*time.Second),
			UpstreamRetryAfter: getDuration("CHECKOUT_UPSTREAM_RETRY_AFTER", 2*time.Second),
		},
		OTLPEndpoint: strings.TrimSpace(getEnvOrViper("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
		RefDataPath:  getEnvOrViper("REFDATA_PATH", "refdata.yaml"),
	}

	// Validate required fields
	if cfg.Shopify.ShopDomain == "" {
		return nil, fmt.Errorf("SHOPIFY_SHOP_DOMAIN is required")
	}
	if cfg.Shopify.AccessToken == "" {
		return nil, fmt.Errorf("SHOPIFY_ACCESS_TOKEN is required")
	}
	if cfg.Shopify.StorefrontToken == "" {
		return nil, fmt.Errorf("SHOPIFY_STOREFRONT_TOKEN is required")
	}
	if cfg.Checkout.FanOut < 1 {
		return nil, fmt.Errorf("CHECKOUT_FANOUT must be at least 1")
	}
	if cfg.Checkout.VerifyBatchSize < 1 || cfg.Checkout.VerifyBatchSize > 250 {
		return nil, fmt.Errorf("CHECKOUT_VERIFY_BATCH must be between 1 and 250")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnvOrViper(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(getEnvOrViper(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getDuration accepts Go durations ("30s") or plain seconds ("30")
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(getEnvOrViper(key, ""))
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
