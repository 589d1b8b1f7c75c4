package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swap.log")
	log, err := New(&Config{LogFile: path, MaxSize: 1})
	require.NoError(t, err)

	log.Info("swap recorded")
	require.NoError(t, log.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"swap recorded"`)
	assert.Contains(t, string(content), `"timestamp"`)
}

func TestNilConfigUsesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "swap.log", cfg.LogFile)
	assert.False(t, cfg.Development)
}

func TestWithSwapAttachesContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swap.log")
	log, err := New(&Config{LogFile: path, Development: true})
	require.NoError(t, err)

	scoped := log.WithSwap("srcMint111", "dstMint222", "24.95")
	scoped.Debug("quote received")
	require.NoError(t, log.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "srcMint111")
	assert.Contains(t, string(content), "24.95")
}
