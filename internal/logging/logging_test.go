package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rtsh13/relay/internal/config"
)

func TestNew_WritesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "relay.log")

	logger, err := New(config.LoggingConfig{Level: "info", File: file}, false)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Session started", zap.String("persona", "forge"))
	_ = logger.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Session started")
	assert.Contains(t, string(data), `"persona":"forge"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	file := filepath.Join(t.TempDir(), "relay.log")

	logger, err := New(config.LoggingConfig{Level: "error", File: file}, true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	file := filepath.Join(t.TempDir(), "relay.log")

	logger, err := New(config.LoggingConfig{Level: "chatty", File: file}, false)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
