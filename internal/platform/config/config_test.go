package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "10000", cfg.Port)
	assert.Equal(t, "9090", cfg.AdminPort)
	assert.Equal(t, BackendFile, cfg.IdentityBackend)
	assert.Equal(t, "ip_to_uuid.json", cfg.IdentityFile)
	assert.Equal(t, 10000, cfg.MaxWebSocketConnections)
	assert.Equal(t, int64(1048576), cfg.MaxMessageBytes)
	assert.Equal(t, 64, cfg.SendBufferSize)
	assert.False(t, cfg.ExcludeSender)
	assert.Empty(t, cfg.Origins())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_CustomPortAndEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("APP_ENV", "production")
	t.Setenv("EXCLUDE_SENDER", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "production", cfg.AppEnv)
	assert.True(t, cfg.ExcludeSender)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_BackendRequirements(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"redis without url", map[string]string{"IDENTITY_BACKEND": "redis"}, "REDIS_URL is required for the redis backend"},
		{"postgres without url", map[string]string{"IDENTITY_BACKEND": "postgres"}, "DATABASE_URL is required for the postgres backend"},
		{"unknown backend", map[string]string{"IDENTITY_BACKEND": "etcd"}, `IDENTITY_BACKEND must be one of file, redis, postgres, badger, got "etcd"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_BackendsWithSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"redis", map[string]string{"IDENTITY_BACKEND": "redis", "REDIS_URL": "redis://localhost:6379"}},
		{"postgres", map[string]string{"IDENTITY_BACKEND": "postgres", "DATABASE_URL": "postgres://localhost/relay"}},
		{"badger", map[string]string{"IDENTITY_BACKEND": "badger"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.name, cfg.IdentityBackend)
		})
	}
}

func TestLoad_RejectsNonPositiveLimits(t *testing.T) {
	tests := []struct {
		envVar string
		value  string
	}{
		{"MAX_WEBSOCKET_CONNECTIONS", "0"},
		{"MAX_CONNECTIONS_PER_IP", "-1"},
		{"CONNECTION_RATE_PER_SECOND", "0"},
		{"CONNECTION_BURST", "0"},
		{"MAX_MESSAGE_BYTES", "0"},
		{"SEND_BUFFER_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.envVar+" must be positive", err.Error())
		})
	}
}

func TestConfig_Origins(t *testing.T) {
	cfg := &Config{AllowedOrigins: "https://a.example, https://b.example  https://c.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, cfg.Origins())
}
