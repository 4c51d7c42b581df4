package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prism.toml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(write(t, `
[window]
title = "fox"

[render]
msaa = 1
vsync = false
clear_color = [0.0, 0.0, 0.0, 1.0]

[scene]
model = "assets/fox.glb"
material = "normal"

[profiler]
enabled = true
interval = "250ms"
`))
	require.NoError(t, err)

	assert.Equal(t, "fox", cfg.Window.Title)
	assert.Equal(t, 1280, cfg.Window.Width, "untouched keys keep their default")
	assert.Equal(t, 1, cfg.Render.MSAA)
	assert.False(t, cfg.Render.VSync)
	assert.Equal(t, [4]float64{0, 0, 0, 1}, cfg.Render.ClearColor)
	assert.Equal(t, "assets/fox.glb", cfg.Scene.Model)
	assert.Equal(t, "normal", cfg.Scene.Material)
	assert.True(t, cfg.Profiler.Enabled)

	d, err := cfg.Profiler.IntervalDuration()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestUnknownKeysAreRejected(t *testing.T) {
	_, err := Load(write(t, "[render]\nmsaaa = 4\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
	assert.Contains(t, err.Error(), "msaaa")
}

func TestSyntaxErrorsCarryPosition(t *testing.T) {
	_, err := Load(write(t, "[window]\ntitle = \n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"msaa", func(c *Config) { c.Render.MSAA = 2 }, "render.msaa"},
		{"size", func(c *Config) { c.Window.Height = 0 }, "window size"},
		{"primitive", func(c *Config) { c.Scene.Primitive = "torus" }, "scene.primitive"},
		{"material", func(c *Config) { c.Scene.Material = "pbr" }, "scene.material"},
		{"live", func(c *Config) { c.Scene.Material = "live" }, "scene.shader"},
		{"interval", func(c *Config) { c.Profiler.Interval = "-1s" }, "profiler.interval"},
		{"shadows", func(c *Config) { c.Render.ShadowResolution = 0 }, "shadow_resolution"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := Default()
	cfg.Scene.Model = "a.glb"
	cfg.Scene.Primitive = "anything"
	assert.NoError(t, cfg.Validate(), "the primitive is ignored when a model is set")
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Scene.Material = "live"
	cfg.Scene.Shader = "shaders/ripple.wgsl"
	cfg.Scene.ShaderName = "Ripple"

	path := filepath.Join(t.TempDir(), "out.toml")
	require.NoError(t, cfg.Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
