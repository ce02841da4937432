// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Environment  string
	LogLevel     string
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Admin        AdminConfig
	Redis        RedisConfig
	AWS          AWSConfig
	Payment      PaymentConfig
	Distribution DistributionConfig
	Email        EmailConfig
	Events       EventsConfig
	I18n         I18nConfig
	Frontend     FrontendConfig
}

type FrontendConfig struct {
	BaseURL string
}

type ServerConfig struct {
	Port           string
	Host           string
	ReadTimeout    int
	WriteTimeout   int
	IdleTimeout    int
	AllowedOrigins []string
	RateLimit      bool
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  int // in hours
	RefreshTokenTTL int // in hours
}

// AdminConfig holds the bootstrap staff account created on first start.
type AdminConfig struct {
	Email    string
	Password string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	CloudFrontURL   string
}

// PaymentConfig configures the mobile-money gateway and the reconciliation loop.
type PaymentConfig struct {
	GatewayBaseURL   string
	GatewaySecretKey string
	PaymentEmail     string
	Currency         string
	RequestTimeout   time.Duration
	VerifyTimeout    time.Duration
	RetryAttempts    int
	RetryDelay       time.Duration
	CountryCode      string
	OperatorPrefixes map[string]string
	OperatorCacheTTL time.Duration
	SweepSchedule    string
	SweepGracePeriod time.Duration
}

type DistributionConfig struct {
	PricePerTrack string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:    getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			RateLimit:      getEnvAsBool("RATE_LIMIT_ENABLED", true),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "nyasabox"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsInt("JWT_ACCESS_TTL", 24),   // 24 hours
			RefreshTokenTTL: getEnvAsInt("JWT_REFRESH_TTL", 168), // 7 days
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@nyasabox.com"),
			Password: getEnv("ADMIN_PASSWORD", "ChangeMe123!"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "af-south-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "nyasabox-media"),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
		},
		Payment: PaymentConfig{
			GatewayBaseURL:   getEnv("PAYCHANGU_BASE_URL", "https://api.paychangu.com"),
			GatewaySecretKey: getEnv("PAYCHANGU_SECRET_KEY", ""),
			PaymentEmail:     getEnv("PAYMENT_EMAIL", ""),
			Currency:         getEnv("PAYMENT_CURRENCY", "MWK"),
			RequestTimeout:   getEnvAsDuration("PAYMENT_REQUEST_TIMEOUT", 15*time.Second),
			VerifyTimeout:    getEnvAsDuration("PAYMENT_VERIFY_TIMEOUT", 10*time.Second),
			RetryAttempts:    getEnvAsInt("PAYMENT_RETRY_ATTEMPTS", 3),
			RetryDelay:       getEnvAsDuration("PAYMENT_RETRY_DELAY", 2*time.Second),
			CountryCode:      getEnv("PAYMENT_COUNTRY_CODE", "265"),
			OperatorPrefixes: getEnvAsMap("PAYMENT_OPERATOR_PREFIXES", map[string]string{"airtel": "9", "tnm": "8"}),
			OperatorCacheTTL: getEnvAsDuration("PAYMENT_OPERATOR_CACHE_TTL", 5*time.Minute),
			SweepSchedule:    getEnv("PAYMENT_SWEEP_SCHEDULE", ""),
			SweepGracePeriod: getEnvAsDuration("PAYMENT_SWEEP_GRACE_PERIOD", 2*time.Minute),
		},
		Distribution: DistributionConfig{
			PricePerTrack: getEnv("DISTRIBUTION_PRICE_PER_TRACK", "1666.67"),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", "noreply@nyasabox.com"),
			FromName:     getEnv("FROM_NAME", "NyasaBox"),
		},
		Events: EventsConfig{
			AMQPURL:  getEnv("AMQP_URL", ""),
			Exchange: getEnv("EVENTS_EXCHANGE", "distribution_events"),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Admin.Password == "ChangeMe123!" && c.Environment == "production" {
		return fmt.Errorf("admin bootstrap password must be changed in production")
	}

	if c.Payment.GatewaySecretKey == "" && c.Environment == "production" {
		return fmt.Errorf("payment gateway secret key is required in production")
	}

	if _, err := c.Distribution.UnitPrice(); err != nil {
		return err
	}

	if c.Payment.RetryAttempts < 1 {
		return fmt.Errorf("payment retry attempts must be at least 1")
	}

	return nil
}

// UnitPrice parses the configured per-track distribution price.
func (d DistributionConfig) UnitPrice() (decimal.Decimal, error) {
	price, err := decimal.NewFromString(d.PricePerTrack)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid distribution price per track %q: %w", d.PricePerTrack, err)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("distribution price per track must not be negative")
	}
	return price, nil
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsMap parses "k1:v1,k2:v2". Keys are lower-cased.
func getEnvAsMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || k == "" {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}
