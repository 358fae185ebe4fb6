package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "defaults",
			env:  map[string]string{"CONFIG_DIR": dir},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "localhost:8080", cfg.ServerAddress)
				assert.Equal(t, "http://localhost:8080", cfg.BaseURL())
				assert.Equal(t, filepath.Join(dir, "vetsync.db"), cfg.DataPath)
				assert.Equal(t, filepath.Join(dir, "session.json"), cfg.SessionPath)
				assert.Equal(t, 5, cfg.Sync.MaxRetries)
				assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
				assert.Equal(t, 15*time.Minute, cfg.Sync.FullRefreshInterval)
				assert.True(t, cfg.IsLocal())
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"CONFIG_DIR":            dir,
				"APP_ENV":               "prod",
				"SERVER_ADDRESS":        "vet.example.com",
				"ENABLE_TLS":            "true",
				"SYNC_MAX_RETRIES":      "3",
				"SYNC_DEBOUNCE_SECONDS": "0",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://vet.example.com", cfg.BaseURL())
				assert.Equal(t, 3, cfg.Sync.MaxRetries)
				assert.Zero(t, cfg.Sync.Debounce)
				assert.True(t, cfg.IsProd())
			},
		},
		{
			name:    "invalid batch size",
			env:     map[string]string{"CONFIG_DIR": dir, "SYNC_BATCH_SIZE": "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
