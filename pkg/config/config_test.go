package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Culling.Resolution = 64
	cfg.Culling.Workers = 2
	cfg.Terrain.SizeX = 256
	cfg.Terrain.TileSizeBits = 5
	cfg.Logging.Level = "debug"

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("culling:\n  resolution: 32\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 32, cfg.Culling.Resolution)
	// Untouched sections keep their defaults.
	require.Equal(t, DefaultConfig().Terrain, cfg.Terrain)
}
