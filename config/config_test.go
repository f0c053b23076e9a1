package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg := FromEnv()
	assert.Equal(t, "test-key", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, "gemini-2.5-flash-preview-tts", cfg.GeminiTTSModel)
	assert.Equal(t, int64(104857600), cfg.MaxFileSize)
	assert.Equal(t, 2*time.Second, cfg.UploadPollInterval)
	assert.Equal(t, 60*time.Second, cfg.UploadPollTimeout)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "en-US", cfg.DefaultLanguage)
	assert.Equal(t, "natural", cfg.DefaultVoiceStyle)
	assert.False(t, cfg.CacheEnabled())
	assert.False(t, cfg.ArchiveEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("PORT", "9090")
	t.Setenv("UPLOAD_POLL_INTERVAL", "250ms")
	t.Setenv("UPLOAD_POLL_TIMEOUT", "5")
	t.Setenv("MAX_CONCURRENT_JOBS", "0")
	t.Setenv("DATA_DIR", "/var/lib/dubflow")
	t.Setenv("REDIS_HOST", "cache.local")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := FromEnv()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.UploadPollInterval)
	assert.Equal(t, 5*time.Second, cfg.UploadPollTimeout)
	assert.Equal(t, 0, cfg.MaxConcurrentJobs)
	assert.True(t, cfg.CacheEnabled())
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, filepath.Join("/var/lib/dubflow", "results", "results.json"), cfg.ResultStorePath())
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
}

func TestValidateReportsMissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("MAX_CONCURRENT_JOBS", "-1")

	err := FromEnv().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	assert.Contains(t, err.Error(), "MAX_CONCURRENT_JOBS")
}
