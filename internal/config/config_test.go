package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "Asia/Manila", cfg.Business.Timezone)
	assert.Equal(t, 5, cfg.Business.PenaltyGraceDays)
	assert.True(t, cfg.GetPenaltyDailyRate().Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
	assert.False(t, cfg.Kafka.Enabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/loans?sslmode=disable")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("BUSINESS_PENALTY_GRACE_DAYS", "10")
	t.Setenv("BUSINESS_TIMEZONE", "UTC")
	t.Setenv("SERVER_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres://u:p@db:5432/loans?sslmode=disable", cfg.Database.URL)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10, cfg.Business.PenaltyGraceDays)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.True(t, cfg.IsProduction())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing port", func(c *Config) { c.Server.Port = "" }, "SERVER_PORT"},
		{"missing database url", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"bad timezone", func(c *Config) { c.Business.Timezone = "Mars/Olympus" }, "BUSINESS_TIMEZONE"},
		{"bad penalty rate", func(c *Config) { c.Business.PenaltyDailyRate = "abc" }, "BUSINESS_PENALTY_DAILY_RATE"},
		{"negative penalty rate", func(c *Config) { c.Business.PenaltyDailyRate = "-0.1" }, "BUSINESS_PENALTY_DAILY_RATE"},
		{"min above max", func(c *Config) { c.Business.MinPrincipal = "9999999" }, "BUSINESS_MIN_PRINCIPAL"},
		{"bad cron", func(c *Config) { c.Scheduler.PenaltySweepSpec = "every night" }, "SCHEDULER_PENALTY_SWEEP_SPEC"},
		{"kafka without topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }, "KAFKA_TOPIC"},
		{"zero health timeout", func(c *Config) { c.Health.Timeout = 0 }, "HEALTH_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
