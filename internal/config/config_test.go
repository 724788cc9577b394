package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 16000, cfg.Audio.TargetRate)
	assert.Equal(t, 24000, cfg.Audio.PlaybackRate)
	assert.Equal(t, 4096, cfg.Audio.WindowSamples)
	assert.NotEmpty(t, cfg.Gateway.URL)
	assert.NotEmpty(t, cfg.Assistant.SystemPrompt)
	assert.NotEmpty(t, cfg.Assistant.Voice)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voice.yaml")
	content := []byte(`
gateway:
  url: ws://example.test/v1/live
assistant:
  voice: basalt
audio:
  windowSamples: 2048
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://example.test/v1/live", cfg.Gateway.URL)
	assert.Equal(t, "basalt", cfg.Assistant.Voice)
	assert.Equal(t, 2048, cfg.Audio.WindowSamples)
	// Untouched keys keep defaults.
	assert.Equal(t, 16000, cfg.Audio.TargetRate)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audio:\n  windowSamples: 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
