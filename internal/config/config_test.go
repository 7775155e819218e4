package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                   "development",
		DBSSLMode:             "disable",
		JWTSecret:             "secure-secret-at-least-32-chars-long",
		DBPassword:            "secure-password",
		Port:                  "8080",
		RedisURL:              "redis://localhost:6379",
		RatingCacheTTLSeconds: 60,
		RatingMaxRetries:      3,
		ViewSyncEnabled:       true,
		ViewSyncInterval:      10 * time.Minute,
		ViewSyncBatchSize:     25,
		ViewSyncRounds:        8,
		ViewSyncDBConcurrency: 8,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with empty SSL mode", "prod", "", true},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateViewSync(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults are valid", func(*Config) {}, true},
		{"zero interval", func(c *Config) { c.ViewSyncInterval = 0 }, false},
		{"zero batch size", func(c *Config) { c.ViewSyncBatchSize = 0 }, false},
		{"zero rounds", func(c *Config) { c.ViewSyncRounds = 0 }, false},
		{"zero db concurrency", func(c *Config) { c.ViewSyncDBConcurrency = 0 }, false},
		{"disabled job ignores its knobs", func(c *Config) {
			c.ViewSyncEnabled = false
			c.ViewSyncInterval = 0
		}, true},
		{"zero cache ttl", func(c *Config) { c.RatingCacheTTLSeconds = 0 }, false},
		{"zero retries", func(c *Config) { c.RatingMaxRetries = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if tt.ok {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}

func TestConfig_ProductionRejectsDefaultSecret(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.DBSSLMode = "require"
	c.JWTSecret = defaultJWTSecret
	assert.Error(t, c.Validate())
}

func TestLoadConfig_DefaultsAndNormalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer os.Unsetenv("VIEW_SYNC_INTERVAL")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")
	os.Setenv("VIEW_SYNC_INTERVAL", "90s")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 90*time.Second, c.ViewSyncInterval)
	assert.Equal(t, 60*time.Second, c.RatingCacheTTL())
	assert.Equal(t, 25, c.ViewSyncBatchSize)
	assert.Equal(t, 8, c.ViewSyncRounds)
}
