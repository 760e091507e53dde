package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "app.log")

	l, err := New(Config{Level: "debug", Format: "json", Filename: file, DisableConsole: true})
	require.NoError(t, err)
	l.Info("寻宝开始", zap.Int("x", 16))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"寻宝开始"`)
	assert.Contains(t, string(data), `"x":16`)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")

	l, err := New(Config{Level: "warn", Filename: file, DisableConsole: true})
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestGlobal(t *testing.T) {
	assert.NotNil(t, L())
	assert.NotNil(t, S())

	l := zap.NewExample()
	Set(l)
	defer Set(zap.NewNop())
	assert.Same(t, l, L())
}
