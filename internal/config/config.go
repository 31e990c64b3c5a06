package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka broker settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// GeoConfig holds settings for the geocoding/routing provider.
type GeoConfig struct {
	BaseURL     string
	APIKey      string
	CountryCode string
}

// CheckoutConfig holds settings for the hosted payment checkout provider.
type CheckoutConfig struct {
	BaseURL string
	APIKey  string
}

// RelayConfig holds settings for the form-relay provider.
type RelayConfig struct {
	BaseURL string
	FormID  string
}

// PricingConfig holds tunable pricing policy values.
type PricingConfig struct {
	ZoneMarker     string
	CongestionRate float64
}

// ServiceConfig holds all configuration for the quote service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	PublicBaseURL  string
	AllowedOrigins []string
	SubmitTimeout  time.Duration
	SessionTTL     time.Duration

	DBConfig       DatabaseConfig
	RedisURL       string
	KafkaConfig    KafkaConfig
	GeoConfig      GeoConfig
	CheckoutConfig CheckoutConfig
	RelayConfig    RelayConfig
	PricingConfig  PricingConfig
}

// Load reads configuration from the environment with the QUOTES_ prefix.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("QUOTES")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVICE_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("SUBMIT_TIMEOUT", "15s")
	v.SetDefault("SESSION_TTL", "24h")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "quotes")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "swiftline.")

	v.SetDefault("GEO_BASE_URL", "https://api.geoapify.com")
	v.SetDefault("GEO_API_KEY", "")
	v.SetDefault("GEO_COUNTRY_CODE", "gb")

	v.SetDefault("CHECKOUT_BASE_URL", "")
	v.SetDefault("CHECKOUT_API_KEY", "")

	v.SetDefault("RELAY_BASE_URL", "https://formsubmit.co")
	v.SetDefault("RELAY_FORM_ID", "")

	v.SetDefault("ZONE_MARKER", "London")
	v.SetDefault("CONGESTION_RATE", 0.0)

	var origins []string
	if raw := v.GetString("ALLOWED_ORIGINS"); raw != "" {
		origins = strings.Split(raw, ",")
	}

	return &ServiceConfig{
		Port:           v.GetString("SERVICE_PORT"),
		AppEnv:         v.GetString("APP_ENV"),
		PublicBaseURL:  v.GetString("PUBLIC_BASE_URL"),
		AllowedOrigins: origins,
		SubmitTimeout:  v.GetDuration("SUBMIT_TIMEOUT"),
		SessionTTL:     v.GetDuration("SESSION_TTL"),
		DBConfig: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		RedisURL: v.GetString("REDIS_URL"),
		KafkaConfig: KafkaConfig{
			Brokers:     strings.Split(v.GetString("KAFKA_BROKERS"), ","),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		GeoConfig: GeoConfig{
			BaseURL:     v.GetString("GEO_BASE_URL"),
			APIKey:      v.GetString("GEO_API_KEY"),
			CountryCode: v.GetString("GEO_COUNTRY_CODE"),
		},
		CheckoutConfig: CheckoutConfig{
			BaseURL: v.GetString("CHECKOUT_BASE_URL"),
			APIKey:  v.GetString("CHECKOUT_API_KEY"),
		},
		RelayConfig: RelayConfig{
			BaseURL: v.GetString("RELAY_BASE_URL"),
			FormID:  v.GetString("RELAY_FORM_ID"),
		},
		PricingConfig: PricingConfig{
			ZoneMarker:     v.GetString("ZONE_MARKER"),
			CongestionRate: v.GetFloat64("CONGESTION_RATE"),
		},
	}, nil
}
