package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_RequiresModelKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_AI_API_KEY", "")
	t.Setenv("GEMINI_BACKEND", "")

	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrMissingModelKey)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_AI_API_KEY", "legacy-key")
	t.Setenv("GEMINI_BACKEND", "")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "")
	t.Setenv("PORT", "")
	t.Setenv("UPLOAD_FORMAT", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("REDIS_HOST", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "legacy-key", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-2.5-flash-image-preview", cfg.GeminiModel)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "png", cfg.UploadFormat)
	assert.Equal(t, "ml_default", cfg.CloudinaryUploadPreset)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.CloudinaryEnabled())
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadConfig_RejectsUnknownUploadFormat(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("GEMINI_BACKEND", "")
	t.Setenv("UPLOAD_FORMAT", "gif")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_VertexNeedsProject(t *testing.T) {
	t.Setenv("GEMINI_BACKEND", "vertex")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestServiceURLs(t *testing.T) {
	cfg := &Config{StudioPort: 8502, OnboardingPort: 8501}
	studio, onboarding := cfg.ServiceURLs()
	assert.Equal(t, "http://localhost:8502", studio)
	assert.Equal(t, "http://localhost:8501", onboarding)

	cfg.PublicURL = "https://studio.example.com"
	studio, onboarding = cfg.ServiceURLs()
	assert.Equal(t, "https://studio.example.com:8502", studio)
	assert.Equal(t, "https://studio.example.com:8501", onboarding)

	cfg.UseNginx = true
	studio, onboarding = cfg.ServiceURLs()
	assert.Equal(t, "https://studio.example.com/studio", studio)
	assert.Equal(t, "https://studio.example.com/onboarding", onboarding)
}

func TestBaseURL(t *testing.T) {
	cfg := &Config{Port: "5001"}
	assert.Equal(t, "http://localhost:5001", cfg.BaseURL())
	cfg.PublicURL = "https://api.example.com"
	assert.Equal(t, "https://api.example.com", cfg.BaseURL())
}

func TestLogSummary_UsesStructuredLogger(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("GEMINI_BACKEND", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	var buf bytes.Buffer
	cfg.LogSummary(zerolog.New(&buf))

	out := buf.String()
	assert.Contains(t, out, `"message":"✅ Configuration loaded successfully"`)
	assert.Contains(t, out, `"sessions":"in-memory"`)
	assert.Contains(t, out, `"cloudinary":false`)
}
