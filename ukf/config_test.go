package ukf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidateRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StdPosX = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.StdA = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.UsePosition = false
	cfg.UseRangeBearing = false
	assert.Error(t, cfg.Validate())
}

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.xml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTuningXML(t *testing.T) {
	path := writeTuning(t, `<tuning>
  <process std_a="0.9" std_yawdd="0.7"/>
  <rangebearing enabled="false"/>
</tuning>`)

	cfg, err := LoadTuningXML(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.StdA)
	assert.Equal(t, 0.7, cfg.StdYawdd)
	assert.False(t, cfg.UseRangeBearing)
	assert.True(t, cfg.UsePosition)
	// untouched fields keep their defaults
	assert.Equal(t, DefaultStdPosX, cfg.StdPosX)
	assert.Equal(t, DefaultStdRange, cfg.StdRange)
}

func TestLoadTuningXMLRejectsInvalid(t *testing.T) {
	path := writeTuning(t, `<tuning>
  <position enabled="false"/>
  <rangebearing enabled="false"/>
</tuning>`)
	_, err := LoadTuningXML(path)
	assert.Error(t, err)

	_, err = LoadTuningXML(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}
