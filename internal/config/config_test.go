package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesEngineDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, 64, cfg.HashMB)
	require.True(t, cfg.UseNullMove)
	require.Equal(t, 25, cfg.AspirationWindow)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sleepmind2.toml")
	contents := `
hash_mb = 256
use_null_move = false
aspiration_window = 50
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 256, cfg.HashMB)
	require.False(t, cfg.UseNullMove)
	require.Equal(t, 50, cfg.AspirationWindow)
	// Untouched fields keep their defaults.
	require.True(t, cfg.UseLMR)
}

func TestSearchParamsProjection(t *testing.T) {
	cfg := Default()
	cfg.RFPMargin = 123

	p := cfg.SearchParams()
	require.Equal(t, 123, p.RFPMargin)
	require.Equal(t, cfg.UseAspiration, p.UseAspiration)
}
