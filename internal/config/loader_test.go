package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "fieldscout-advisor", cfg.Service)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "demo", cfg.Weather.Mode)
	assert.Equal(t, []string{"*"}, cfg.Security.CorsAllowedOrigins)
	assert.Equal(t, "dev", cfg.Build.Version)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("PORT", "9090")
	t.Setenv("WEATHER_MODE", "live")
	t.Setenv("SYNOPTIC_API_TOKEN", "tok_secret")
	t.Setenv("DB_MAX_CONNS", "25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "live", cfg.Weather.Mode)
	assert.Equal(t, "tok_secret", cfg.Weather.SynopticToken.Unmask())
	assert.Equal(t, 25, cfg.Database.MaxConns)
}

func TestLoadConfig_InvalidEnvironmentRejected(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := LoadConfig()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_InvalidWeatherModeRejected(t *testing.T) {
	t.Setenv("WEATHER_MODE", "satellite")

	_, err := LoadConfig()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_UnparsableDurationRejected(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "soonish")

	_, err := LoadConfig()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrParsing, cfgErr.Type)
}

func TestSecretStringRedactedInLogs(t *testing.T) {
	cfg := Config{}
	cfg.Weather.SynopticToken = "tok_secret"

	assert.NotContains(t, cfg.Weather.SynopticToken.String(), "tok_secret")
	assert.Equal(t, "tok_secret", cfg.Weather.SynopticToken.Unmask())
}
