package logging

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewWithWritersFansOut(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewWithWriters(&a, &b, slog.LevelInfo)

	logger.Info("job admitted", "runId", "r1")
	logger.Debug("dropped")

	assert.Contains(t, a.String(), `"runId":"r1"`)
	assert.Contains(t, b.String(), `"msg":"job admitted"`)
	assert.NotContains(t, a.String(), "dropped")
}

func TestSetupWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.log")
	logger, cleanup := Setup(path, slog.LevelInfo)
	require.NotNil(t, logger)
	logger.Info("hello")
	require.NoError(t, cleanup())
	assert.FileExists(t, path)
}
