package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the proxy server
type Config struct {
	Server    ServerConfig
	EBay      EBayConfig
	LLM       LLMConfig
	Auth      AuthConfig
	Store     StoreConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Quota     QuotaConfig
	Search    SearchConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	Verbose        bool     `mapstructure:"verbose"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// EBayConfig holds eBay Finding API configuration
type EBayConfig struct {
	AppID           string `mapstructure:"app_id"`
	BaseURL         string `mapstructure:"base_url"`
	RequestsPerHour int    `mapstructure:"requests_per_hour"`
}

// LLMConfig holds language model configuration
type LLMConfig struct {
	APIKey      string `mapstructure:"api_key"`
	TextModel   string `mapstructure:"text_model"`
	VisionModel string `mapstructure:"vision_model"`
}

// SeedAccount is an account provisioned at startup (e.g. from the billing export)
type SeedAccount struct {
	Email           string `mapstructure:"email"`
	SubscriptionKey string `mapstructure:"subscription_key"`
	Plan            string `mapstructure:"plan"`
	ExpiresAt       string `mapstructure:"expires_at"` // RFC 3339
	UsageLimit      int    `mapstructure:"usage_limit"`
}

// AuthConfig holds token issuing configuration
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	SeedAccounts []SeedAccount `mapstructure:"seed_accounts"`
}

// StoreConfig selects the account/usage store
type StoreConfig struct {
	Type          string `mapstructure:"type"` // "memory", "postgres" or "mongo"
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

// CacheConfig holds search cache configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// QuotaConfig holds per-account usage limits
type QuotaConfig struct {
	DefaultMonthlyLimit int `mapstructure:"default_monthly_limit"`
}

// SearchConfig bounds sold-items searches
type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// newViper prepares a viper instance shared by the server and scanner loaders
func newViper() (*viper.Viper, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/flipfinder/")

	v.SetEnvPrefix("FLIPFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return v, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.verbose", false)
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*", "https://flipfinder.pro"})

	// eBay defaults
	v.SetDefault("ebay.app_id", "")
	v.SetDefault("ebay.base_url", "https://svcs.ebay.com/services/search/FindingService/v1")
	v.SetDefault("ebay.requests_per_hour", 5000)

	// LLM defaults
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.text_model", "gemini-2.0-flash-lite")
	v.SetDefault("llm.vision_model", "gemini-2.0-flash")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "720h") // 30 days

	// Store defaults
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.mongo_uri", "")
	v.SetDefault("store.mongo_database", "flipfinder")

	// Cache defaults
	v.SetDefault("cache.ttl", "6h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 120)

	// Quota defaults
	v.SetDefault("quota.default_monthly_limit", 1000)

	// Search defaults
	v.SetDefault("search.default_limit", 3)
	v.SetDefault("search.max_limit", 20)

	scannerDefaults(v)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.EBay.AppID == "" {
		return fmt.Errorf("eBay app ID is required (set FLIPFINDER_EBAY_APP_ID)")
	}

	if config.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required (set FLIPFINDER_LLM_API_KEY)")
	}

	if len(config.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters (set FLIPFINDER_AUTH_JWT_SECRET)")
	}

	switch config.Store.Type {
	case "memory":
	case "postgres":
		if config.Store.PostgresDSN == "" {
			return fmt.Errorf("Postgres DSN is required when store type is 'postgres'")
		}
	case "mongo":
		if config.Store.MongoURI == "" {
			return fmt.Errorf("Mongo URI is required when store type is 'mongo'")
		}
	default:
		return fmt.Errorf("store type must be 'memory', 'postgres' or 'mongo', got: %s", config.Store.Type)
	}

	if config.Search.DefaultLimit <= 0 || config.Search.DefaultLimit > config.Search.MaxLimit {
		return fmt.Errorf("search default limit must be between 1 and %d, got: %d",
			config.Search.MaxLimit, config.Search.DefaultLimit)
	}

	if config.Quota.DefaultMonthlyLimit <= 0 {
		return fmt.Errorf("quota default monthly limit must be positive")
	}

	return nil
}
