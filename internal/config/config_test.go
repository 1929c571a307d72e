package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mqtt", cfg.Broker.Transport)
	assert.Equal(t, "127.0.0.1:1883", cfg.Broker.Address())
	assert.Equal(t, "", cfg.Broker.Topic)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "datadir", cfg.Store.Target())
	assert.Equal(t, 2020, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReportTimeout)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.False(t, cfg.Artifact.MirrorEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("BROKER_TRANSPORT", "nats")
	t.Setenv("BROKER_PORT", "4222")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("STORE_DSN", "postgres://dice@localhost/dice?sslmode=disable")
	t.Setenv("REPORT_TIMEOUT", "5s")
	t.Setenv("ARTIFACT_S3_BUCKET", "rolls")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "nats", cfg.Broker.Transport)
	assert.Equal(t, 4222, cfg.Broker.Port)
	assert.Equal(t, "postgres://dice@localhost/dice?sslmode=disable", cfg.Store.Target())
	assert.Equal(t, 5*time.Second, cfg.Server.ReportTimeout)
	assert.True(t, cfg.Artifact.MirrorEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("REPORT_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"transport", func(c *Config) { c.Broker.Transport = "amqp" }, "broker"},
		{"port", func(c *Config) { c.Broker.Port = 0 }, "broker"},
		{"driver", func(c *Config) { c.Store.Driver = "oracle" }, "store"},
		{"dsn", func(c *Config) { c.Store.Driver = "mysql"; c.Store.DSN = "" }, "STORE_DSN"},
		{"server port", func(c *Config) { c.Server.Port = 70000 }, "server"},
		{"cache", func(c *Config) { c.Cache.Type = "memcached" }, "cache"},
		{"log level", func(c *Config) { c.App.LogLevel = "loud" }, "app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
