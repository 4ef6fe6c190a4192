package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-authoring/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, config.ModeOffline, cfg.Mode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sql", cfg.DraftStore)
	assert.Equal(t, 300*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, 2*time.Second, cfg.RedirectDelay)
	assert.Equal(t, "new", cfg.BuilderEditPolicy)
	assert.True(t, cfg.EnableLocalAuth)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3010"}, cfg.CORSOrigins())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("AUTH_HMAC_SECRET", "prod-secret")
	t.Setenv("DRAFT_STORE", "redis")
	t.Setenv("DRAFT_TTL", "48h")
	t.Setenv("SEARCH_DEBOUNCE", "150ms")
	t.Setenv("BUILDER_EDIT_POLICY", "inplace")
	t.Setenv("CORS_ORIGINS_ONLINE", "https://a.example, https://b.example")
	t.Setenv("LMS_TIMEOUT", "5s")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, config.ModeOnline, cfg.Mode)
	assert.Equal(t, "redis", cfg.DraftStore)
	assert.Equal(t, 48*time.Hour, cfg.DraftTTL)
	assert.Equal(t, 150*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, "inplace", cfg.BuilderEditPolicy)
	assert.Equal(t, 5*time.Second, cfg.LMSTimeout)
	assert.False(t, cfg.EnableLocalAuth, "local login is off online unless enabled")
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
}

func TestInvalidValuesAreReported(t *testing.T) {
	t.Setenv("DRAFT_STORE", "mongo")
	t.Setenv("BUILDER_EDIT_POLICY", "sometimes")

	_, err := config.FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DRAFT_STORE")
	assert.Contains(t, err.Error(), "BUILDER_EDIT_POLICY")
}

func TestOnlineNeedsRealSecret(t *testing.T) {
	t.Setenv("MODE", "online")
	_, err := config.FromEnv()
	assert.ErrorContains(t, err, "AUTH_HMAC_SECRET")
}
