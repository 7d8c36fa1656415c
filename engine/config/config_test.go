package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const sample = `
window:
  title: cubes
  width: 800
  height: 600
renderer:
  backend: headless
  presentMode: uncapped
  gpuTiming: true
logging:
  level: debug
  development: true
metrics:
  enabled: true
  address: ":9100"
  interval: 250ms
`

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "cubes", cfg.Window.Title)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.True(t, cfg.Window.Resizable)
	assert.Equal(t, 60, cfg.Scene.TickRate)
	assert.Equal(t, 250*time.Millisecond, cfg.Metrics.Interval)

	backend, err := cfg.BackendType()
	require.NoError(t, err)
	assert.Equal(t, renderer.BackendTypeHeadless, backend)
	assert.Len(t, cfg.RendererOptions(), 3)
	assert.Len(t, cfg.SceneOptions(), 1)
	assert.Len(t, cfg.ProfilerOptions(), 1)

	lc := cfg.LoggerConfig()
	assert.Equal(t, "debug", lc.Level)
	assert.True(t, lc.Development)
}

func TestValidateReportsEveryField(t *testing.T) {
	_, err := Parse([]byte(`
window: {width: 0, height: 600}
renderer: {backend: vulkan, presentMode: triple}
scene: {physicsWorkers: 0, tickRate: 60}
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Len(t, multierr.Errors(err), 4)

	_, err = Parse([]byte("window: [1, 2"))
	assert.Error(t, err)

	assert.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Metrics.Address)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
