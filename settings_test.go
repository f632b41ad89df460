package ftpclientcore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsAppliesDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(`anonymous_password = "guest@example.com"`), 0o600))

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "guest@example.com", settings.AnonymousPassword)
	assert.True(t, settings.PassiveMode)
	assert.Equal(t, 30*time.Second, settings.NoDataTransferTimeout)
	assert.Equal(t, int64(32768), settings.ResumeOverlap)
}

func TestLoadSettingsOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	content := `
passive_mode = false
resume_overlap = 1024

[keep_alive]
stop_after = 3
command = "PWD"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	assert.False(t, settings.PassiveMode)
	assert.Equal(t, int64(1024), settings.ResumeOverlap)
	assert.Equal(t, 3, settings.KeepAlive.StopAfter)
	assert.Equal(t, "PWD", settings.KeepAlive.Command)
}

func TestLoadSettingsMissingFileReturnsEngineError(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Equal(t, KindInvalidPath, KindOf(err))
}
