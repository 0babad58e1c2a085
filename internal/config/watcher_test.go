package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lanes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"execution": {"pool_size": 2}}`), 0644))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, zerolog.Nop(), func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`{"execution": {"pool_size": 8}}`), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 8, cfg.Execution.PoolSize)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload not observed")
	}
}

func TestWatcherIgnoresInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lanes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"execution": {"pool_size": 2}}`), 0644))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, zerolog.Nop(), func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	// A config that fails validation must not reach the callback.
	require.NoError(t, os.WriteFile(path, []byte(`{"execution": {"pool_size": -1}}`), 0644))

	select {
	case <-reloaded:
		t.Fatal("invalid config must not trigger a reload")
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lanes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	w, err := NewWatcher(path, zerolog.Nop(), nil)
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
