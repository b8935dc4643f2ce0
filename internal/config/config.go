// Package config defines the process configuration for the FieldScout
// advisor service. Configuration is loaded once at startup and immutable
// thereafter; values come from the OS environment, with a .env file as
// fallback for local development. Any missing required value or invalid
// format fails startup immediately.
package config

import (
	"time"

	"fieldscout/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used in configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"fieldscout-advisor"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Weather  WeatherConfig
	Security SecurityConfig

	// Build metadata, injected via ldflags rather than the environment.
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds connection and pool tuning parameters. An empty URL
// runs the service on the in-memory store, which is the demo default.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WeatherConfig selects the weather source and holds the live API settings.
type WeatherConfig struct {
	Mode            string        `envconfig:"WEATHER_MODE" default:"demo" validate:"oneof=demo live"`
	SynopticBaseURL string        `envconfig:"SYNOPTIC_BASE_URL"`
	SynopticToken   SecretString  `envconfig:"SYNOPTIC_API_TOKEN"`
	RequestTimeout  time.Duration `envconfig:"WEATHER_REQUEST_TIMEOUT" default:"10s"`
}

// SecurityConfig holds CORS settings for the device clients.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}
