package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := FromEnv(env(map[string]string{"DEEPGRAM_API_KEY": "k"}))
		require.NoError(t, err)
		assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
		assert.Equal(t, ":8080", cfg.Addr())
		assert.Equal(t, 5*time.Second, cfg.DrainGrace)
		assert.Equal(t, 1500, cfg.PendingAudioLimit)
		assert.Equal(t, "nova-3", cfg.DefaultSTT)
		assert.False(t, cfg.TelephonyTranscode)
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := FromEnv(env(nil))
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := FromEnv(env(map[string]string{
			"DEEPGRAM_API_KEY":    "k",
			"BACKEND_URL":         "https://api.example.com/v1/",
			"DRAIN_GRACE":         "2s",
			"TELEPHONY_TRANSCODE": "true",
			"PENDING_AUDIO_LIMIT": "10",
			"PORT":                "9000",
		}))
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/v1", cfg.BackendURL)
		assert.Equal(t, 2*time.Second, cfg.DrainGrace)
		assert.True(t, cfg.TelephonyTranscode)
		assert.Equal(t, 10, cfg.PendingAudioLimit)
		assert.Equal(t, ":9000", cfg.Addr())
	})

	t.Run("bad values", func(t *testing.T) {
		_, err := FromEnv(env(map[string]string{
			"DEEPGRAM_API_KEY":    "k",
			"DRAIN_GRACE":         "soon",
			"PENDING_AUDIO_LIMIT": "-1",
		}))
		assert.Error(t, err)
	})

	t.Run("bad backend url", func(t *testing.T) {
		_, err := FromEnv(env(map[string]string{"DEEPGRAM_API_KEY": "k", "BACKEND_URL": "localhost"}))
		assert.ErrorIs(t, err, ErrInvalidBackendURL)
	})
}
