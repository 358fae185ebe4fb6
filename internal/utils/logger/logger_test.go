package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"vetsync/internal/app/server/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{name: "local", env: config.EnvLocal, wantDebug: true, wantInfo: true},
		{name: "dev", env: config.EnvDev, wantDebug: true, wantInfo: true},
		{name: "prod", env: config.EnvProd, wantInfo: true},
		{name: "prod with debug override", env: config.EnvProd, level: "debug", wantDebug: true, wantInfo: true},
		{name: "dev with error override", env: config.EnvDev, level: "ERROR"},
		{name: "unknown level ignored", env: config.EnvProd, level: "loud", wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewWithLevel(tt.env, tt.level)
			require.NotNil(t, log)
			ctx := context.Background()
			assert.Equal(t, tt.wantDebug, log.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.wantInfo, log.Enabled(ctx, slog.LevelInfo))
		})
	}
}

func TestSetupPrettySlog(t *testing.T) {
	log := setupPrettySlog()
	require.NotNil(t, log)
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
}

func TestPrettyHandler_Output(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	log := newLogger(&buf, config.EnvLocal, "").With("component", "sync")

	log.Info("pass finished", "pushed", 3)

	out := buf.String()
	assert.Contains(t, out, "INFO:")
	assert.Contains(t, out, "pass finished")
	assert.Contains(t, out, `"component": "sync"`)
	assert.Contains(t, out, `"pushed": 3`)
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, config.EnvProd, "").Info("started", "addr", ":8080")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "started", line["msg"])
	assert.Equal(t, ":8080", line["addr"])
}
