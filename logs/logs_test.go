package logs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.txt")
	logger, err := NewFileLogger(path, zapcore.InfoLevel)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("run finished", zap.Int64("rows", 10))
	require.NoError(t, logger.Sync())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(contents), "hidden")
	assert.Contains(t, string(contents), `"msg":"run finished"`)
	assert.Contains(t, string(contents), `"rows":10`)
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("loud", false)
	assert.Error(t, err)

	logger, err := New("warn", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
