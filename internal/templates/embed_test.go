package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/orchestrate/internal/config"
	"github.com/dusk-indust/orchestrate/internal/verify"
)

// The embedded starters have to stay loadable by the packages that read
// them after init writes them out.

func TestEmbeddedConfigParses(t *testing.T) {
	data, err := FS.ReadFile(ConfigName)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName), data, 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRunsDir, cfg.RunsDir)
	assert.Equal(t, "outputs.json", cfg.InputFile)
	require.NotNil(t, cfg.Verification.Security)
	assert.True(t, *cfg.Verification.Security)
}

func TestEmbeddedBatteryParses(t *testing.T) {
	data, err := FS.ReadFile(BatteryName)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), BatteryName)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	battery, err := verify.LoadBattery(path)
	require.NoError(t, err)
	require.Len(t, battery.Tasks, 1)
	assert.Equal(t, "smoke", battery.Tasks[0].ID)
	assert.Equal(t, 60, battery.Tasks[0].TimeoutSec)
}
