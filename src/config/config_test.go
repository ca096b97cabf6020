package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Port:                   "8080",
		DataBackend:            BackendMemory,
		JWTSecret:              "secret",
		PlaidEnv:               "sandbox",
		AMQPExchange:           "budgee",
		AutomationPollInterval: 30 * time.Second,
		AutomationBatchSize:    50,
		AutomationMaxRetries:   5,
		AutomationRetention:    24 * time.Hour,
		RolloverCheckInterval:  time.Hour,
		CacheMaxCost:           1000,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errorString string
	}{
		{
			name:   "valid memory config",
			mutate: func(c *Config) {},
		},
		{
			name: "valid postgres config",
			mutate: func(c *Config) {
				c.DataBackend = BackendPostgres
				c.DatabaseURL = "postgres://localhost/budgee"
			},
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid data backend",
			mutate:      func(c *Config) { c.DataBackend = "sqlite" },
			errorString: "invalid data backend 'sqlite': must be one of [postgres memory]",
		},
		{
			name:        "postgres without url",
			mutate:      func(c *Config) { c.DataBackend = BackendPostgres },
			errorString: "DATABASE_URL is required when using postgres backend",
		},
		{
			name:        "missing jwt secret",
			mutate:      func(c *Config) { c.JWTSecret = "" },
			errorString: "JWT_SECRET is required",
		},
		{
			name:        "plaid half configured",
			mutate:      func(c *Config) { c.PlaidClientID = "client" },
			errorString: "PLAID_CLIENT_ID and PLAID_SECRET must be set together",
		},
		{
			name: "plaid bad environment",
			mutate: func(c *Config) {
				c.PlaidClientID = "client"
				c.PlaidSecret = "secret"
				c.PlaidEnv = "development"
			},
			errorString: "invalid Plaid environment 'development'",
		},
		{
			name:        "amqp bad scheme",
			mutate:      func(c *Config) { c.AMQPURL = "http://localhost:5672/" },
			errorString: "invalid AMQP URL scheme 'http'",
		},
		{
			name:        "batch size too large",
			mutate:      func(c *Config) { c.AutomationBatchSize = 5000 },
			errorString: "invalid automation batch size 5000",
		},
		{
			name:        "poll interval too short",
			mutate:      func(c *Config) { c.AutomationPollInterval = 10 * time.Millisecond },
			errorString: "invalid automation poll interval 10ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "abc"
	cfg.JWTSecret = ""
	cfg.CacheMaxCost = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
	assert.Contains(t, err.Error(), "invalid cache max cost 0")
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("AUTOMATION_INLINE", "false")
	t.Setenv("AUTOMATION_POLL_INTERVAL", "45s")
	t.Setenv("AUTOMATION_BATCH_SIZE", "7")
	t.Setenv("CACHE_MAX_COST", "not-a-number")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.DataBackend)
	assert.False(t, cfg.AutomationInline)
	assert.Equal(t, 45*time.Second, cfg.AutomationPollInterval)
	assert.Equal(t, 7, cfg.AutomationBatchSize)
	assert.Equal(t, int64(1000), cfg.CacheMaxCost)
}

func TestPlaidEnabled(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.PlaidEnabled())
	cfg.PlaidClientID = "client"
	cfg.PlaidSecret = "secret"
	assert.True(t, cfg.PlaidEnabled())
}
