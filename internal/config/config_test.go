package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 7621, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 30, cfg.Coverage.CriticalUnusedPercent)
	assert.Equal(t, 5.0, cfg.Shift.FontSwapHeight)
}

func TestLoadFileMissingIsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, 7621, cfg.Server.Port)
}

func TestLoadFileOverridesKeepUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9000\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	// untouched sections keep defaults
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 15, cfg.Coverage.OptimizeUnusedPercent)
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport ="), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestThresholdConversions(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	rt := cfg.ReportThresholds()
	assert.Equal(t, 50, rt.BreakdownUnusedPercent)
	assert.Equal(t, int64(10), rt.HotPathMinCount)

	st := cfg.ShiftThresholds()
	assert.Equal(t, 10.0, st.InsertionTop)
	assert.Equal(t, 5.0, st.AnimationLeft)
}
