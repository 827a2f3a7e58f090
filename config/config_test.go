package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recognition-engine/config"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("SYNC_INTERVAL", "")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "_wfr", cfg.CookieName)
	assert.Equal(t, 5, cfg.SyncBatchSize)
	assert.Equal(t, 2*time.Second, cfg.SyncBatchDelay)
	assert.Zero(t, cfg.SyncInterval)
	assert.False(t, cfg.LDAP.Enabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://rewards@localhost/rewards")
	t.Setenv("SYNC_INTERVAL", "6h")
	t.Setenv("CORS_ORIGINS", " https://a.test , ,https://b.test")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 6*time.Hour, cfg.SyncInterval)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSOrigins)
}

func TestFromEnv_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres", "DATABASE_URL": ""}},
		{"unknown driver", map[string]string{"DB_DRIVER": "oracle"}},
		{"bad duration", map[string]string{"SESSION_TTL": "soon"}},
		{"short session key", map[string]string{"SESSION_KEY": "too-short"}},
		{"prod without secrets", map[string]string{"ENV": "prod", "SESSION_SECRET": "", "SESSION_KEY": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.FromEnv()
			assert.Error(t, err)
		})
	}
}
