package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port        string
	DataBackend string
	DatabaseURL string
	JWTSecret   string
	CORSOrigin  string
	IsDemo      bool

	// Plaid
	PlaidClientID   string
	PlaidSecret     string
	PlaidEnv        string
	PlaidWebhookURL string

	// AMQP notifications; empty URL logs events instead
	AMQPURL      string
	AMQPExchange string

	LogLevel  string
	LogFormat string

	// Automation worker
	AutomationInline       bool
	AutomationPollInterval time.Duration
	AutomationBatchSize    int
	AutomationMaxRetries   int
	AutomationRetention    time.Duration
	RolloverCheckInterval  time.Duration

	CacheMaxCost int64
}

func Load() *Config {
	// Load .env file if present
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DataBackend: getEnv("DATA_BACKEND", BackendPostgres),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigin:  getEnv("CORS_ORIGIN", "http://localhost:5173"),
		IsDemo:      getEnvBool("IS_DEMO", false),

		PlaidClientID:   getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:     getEnv("PLAID_SECRET", ""),
		PlaidEnv:        getEnv("PLAID_ENV", "sandbox"),
		PlaidWebhookURL: getEnv("PLAID_WEBHOOK_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgee"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AutomationInline:       getEnvBool("AUTOMATION_INLINE", true),
		AutomationPollInterval: getEnvDuration("AUTOMATION_POLL_INTERVAL", 30*time.Second),
		AutomationBatchSize:    getEnvInt("AUTOMATION_BATCH_SIZE", 50),
		AutomationMaxRetries:   getEnvInt("AUTOMATION_MAX_RETRIES", 5),
		AutomationRetention:    getEnvDuration("AUTOMATION_RETENTION", 7*24*time.Hour),
		RolloverCheckInterval:  getEnvDuration("ROLLOVER_CHECK_INTERVAL", time.Hour),

		CacheMaxCost: int64(getEnvInt("CACHE_MAX_COST", 1000)),
	}
}

// PlaidEnabled reports whether Plaid credentials are configured.
func (c *Config) PlaidEnabled() bool {
	return c.PlaidClientID != "" && c.PlaidSecret != ""
}

// Validate returns every configuration problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		}
	case BackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendPostgres, BackendMemory))
	}

	if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required")
	}

	if c.PlaidClientID != "" || c.PlaidSecret != "" {
		if !c.PlaidEnabled() {
			errors = append(errors, "PLAID_CLIENT_ID and PLAID_SECRET must be set together")
		}
		switch c.PlaidEnv {
		case "sandbox", "production":
		default:
			errors = append(errors, fmt.Sprintf("invalid Plaid environment '%s': must be sandbox or production", c.PlaidEnv))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.AutomationBatchSize < 1 || c.AutomationBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid automation batch size %d: must be between 1 and 1000", c.AutomationBatchSize))
	}
	if c.AutomationMaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("invalid automation max retries %d: must not be negative", c.AutomationMaxRetries))
	}
	if c.AutomationPollInterval < time.Second || c.AutomationPollInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid automation poll interval %v: must be between 1 second and 24 hours", c.AutomationPollInterval))
	}
	if c.AutomationRetention < time.Hour {
		errors = append(errors, fmt.Sprintf("invalid automation retention %v: must be at least 1 hour", c.AutomationRetention))
	}
	if c.RolloverCheckInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rollover check interval %v: must be at least 1 minute", c.RolloverCheckInterval))
	}
	if c.CacheMaxCost < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache max cost %d: must be positive", c.CacheMaxCost))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
