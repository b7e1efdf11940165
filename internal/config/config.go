// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Upstream SMS provider. The API key is the reseller's own
	// credential; client traffic is always forwarded under it.
	ProviderBaseURL string        `env:"PROVIDER_BASE_URL,required"`
	ProviderAPIKey  string        `env:"PROVIDER_API_KEY,required"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"15s"`

	// Billing rates, in microcredits (1 credit = 1,000,000).
	// Rate tables are business policy; all values are overridable.
	DefaultEndpointRateMicro int64 `env:"DEFAULT_ENDPOINT_RATE_MICRO" envDefault:"10000"`
	PerByteRateMicro         int64 `env:"PER_BYTE_RATE_MICRO" envDefault:"1"`
	SegmentRateMicro         int64 `env:"SEGMENT_RATE_MICRO" envDefault:"30000"`
	// Comma-separated "path=rate" overrides,
	// e.g. "/api/v1/client/sms/send=50000,/api/v1/client/otp/send=40000"
	EndpointRates string `env:"ENDPOINT_RATES" envDefault:""`

	// OTP settings
	OTPLength      int           `env:"OTP_LENGTH" envDefault:"6"`
	OTPTTL         time.Duration `env:"OTP_TTL" envDefault:"5m"`
	OTPMaxAttempts int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`

	// Rate limiting
	RateLimitAPIEnabled     bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitGatewayEnabled bool `env:"RATE_LIMIT_GATEWAY_ENABLED" envDefault:"true"`
	RateLimitGatewayRPS     int  `env:"RATE_LIMIT_GATEWAY_RPS" envDefault:"50"`
	RateLimitGatewayBurst   int  `env:"RATE_LIMIT_GATEWAY_BURST" envDefault:"100"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// GetEndpointRates parses the "path=rate" overrides into a map.
// Malformed entries are skipped rather than failing startup.
func (c *Config) GetEndpointRates() map[string]int64 {
	rates := make(map[string]int64)
	if c.EndpointRates == "" {
		return rates
	}

	for _, entry := range strings.Split(c.EndpointRates, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		path, rateStr, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		rate, err := strconv.ParseInt(strings.TrimSpace(rateStr), 10, 64)
		if err != nil || rate < 0 {
			continue
		}
		rates[strings.TrimSpace(path)] = rate
	}

	return rates
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
