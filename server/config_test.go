package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, DefaultRules(), cfg.Rules())
	assert.Equal(t, "public", cfg.StaticDir)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("MAX_PLAYERS", "4")
	t.Setenv("SYNC_WINDOW", "1500ms")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 4, cfg.Rules().MaxPlayers)
	assert.Equal(t, 1500*time.Millisecond, cfg.Rules().SyncWindow)
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MIN_PLAYERS=3\nLEVEL_ADVANCE_DELAY=5s\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("MIN_PLAYERS")
		_ = os.Unsetenv("LEVEL_ADVANCE_DELAY")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MinPlayers)
	assert.Equal(t, 5*time.Second, cfg.LevelAdvanceDelay)
}

func TestConfig_Validate(t *testing.T) {
	base, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	bad := base
	bad.Port = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.MaxPlayers = 1
	assert.Error(t, bad.Validate())

	bad = base
	bad.PatternResetDelay = 0
	assert.Error(t, bad.Validate())
}
