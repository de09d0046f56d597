package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "auto", c.TTS.Type)
	assert.Equal(t, "Kore", c.TTS.Voice)
	assert.Equal(t, 3, c.TTS.Retries)
	assert.Equal(t, time.Second, c.TTS.RetryDelay)
	assert.Equal(t, 24000, c.TTS.SampleRate)
	assert.Equal(t, "disk", c.Cache.Type)
	assert.Equal(t, 50*time.Millisecond, c.Display.Refresh)
	assert.Equal(t, "speaker", c.Audio.Output)
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "nestnarrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tts:
  type: http
  endpoint: http://localhost:3000
  voice: Puck
  retry_delay: 250ms
cache:
  type: redis
  redis:
    addr: redis:6379
    ttl: 24h
audio:
  output: none
`), 0o644))

	require.NoError(t, Init(path))
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http", c.TTS.Generator().Type)
	assert.Equal(t, "http://localhost:3000", c.TTS.Generator().Endpoint)
	assert.Equal(t, "Puck", c.TTS.Voice)
	assert.Equal(t, 250*time.Millisecond, c.TTS.Generator().RetryDelay)
	assert.Equal(t, "redis:6379", c.Cache.Store().Redis.Addr)
	assert.Equal(t, 24*time.Hour, c.Cache.Store().Redis.TTL)
	assert.Equal(t, "none", c.Audio.Output)
}

func TestEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("NARRATOR_TTS_VOICE", "Leda")

	path := filepath.Join(t.TempDir(), "nestnarrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tts:\n  voice: Puck\n"), 0o644))
	require.NoError(t, Init(path))

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Leda", c.TTS.Voice)
}

func TestInitRejectsMissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	assert.Error(t, Init(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestValidate(t *testing.T) {
	c := Config{TTS: TTSConfig{Speed: 1}, Audio: AudioConfig{Output: "speaker"}}
	assert.NoError(t, c.Validate())

	c.TTS.Speed = 0
	assert.Error(t, c.Validate())

	c.TTS.Speed = 1
	c.Audio.Output = "hdmi"
	assert.Error(t, c.Validate())
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetFormatter(&logrus.TextFormatter{})
	})

	require.NoError(t, SetupLogging(LogConfig{Level: "debug", Format: "json"}))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	assert.Error(t, SetupLogging(LogConfig{Level: "loud"}))
	assert.Error(t, SetupLogging(LogConfig{Level: "info", Format: "xml"}))
}
