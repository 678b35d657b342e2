package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string

	DatabaseURL       string
	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisURL string

	PaymentProvider     string
	StripeAPIKey        string
	StripeWebhookSecret string
	PaymentTimeoutSec   int

	SchedulerEnabled     bool
	SchedulerIntervalSec int
	SchedulerJobs        string

	HTTPAddr string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "revenue-engine"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DatabaseURL:       strings.TrimSpace(getenv("DATABASE_URL", "")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "nock_revenue"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 30),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 10),

		RedisURL: getenv("REDIS_URL", "redis://127.0.0.1:6379"),

		PaymentProvider:     strings.ToLower(getenv("PAYMENT_PROVIDER", "stripe")),
		StripeAPIKey:        strings.TrimSpace(getenv("STRIPE_API_KEY", "")),
		StripeWebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
		PaymentTimeoutSec:   getenvInt("PAYMENT_TIMEOUT_SECONDS", 15),

		SchedulerEnabled:     getenvBool("SCHEDULER_ENABLED", true),
		SchedulerIntervalSec: getenvInt("SCHEDULER_INTERVAL_SECONDS", 60),
		SchedulerJobs:        getenv("SCHEDULER_JOBS", ""),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
	}

	return cfg
}

// New loads configuration and validates it. Composition roots use this
// as their config provider so a bad environment fails startup instead of
// surfacing mid-request.
func New() (Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a configuration the process cannot start with. Outside
// production the payment processor falls back to the mock adapter when
// credentials are missing, so Stripe credentials are only enforced there.
func (c Config) Validate() error {
	if c.DBType == "postgres" && c.DatabaseURL == "" && c.DBPassword == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Environment == "production" && c.PaymentProvider == "stripe" {
		if c.StripeAPIKey == "" {
			return errors.New("STRIPE_API_KEY is required")
		}
		if c.StripeWebhookSecret == "" {
			return errors.New("STRIPE_WEBHOOK_SECRET is required")
		}
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
