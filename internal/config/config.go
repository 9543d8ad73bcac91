package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// UPS
	UPSClientID     string `envconfig:"UPS_CLIENT_ID"`
	UPSClientSecret string `envconfig:"UPS_CLIENT_SECRET"`
	UPSBaseURL      string `envconfig:"UPS_BASE_URL" default:"https://onlinetools.ups.com/api"`
	UPSEnabled      bool   `envconfig:"UPS_ENABLED" default:"true"`
	UPSUseMock      bool   `envconfig:"UPS_USE_MOCK" default:"false"`

	// Transport tuning
	HTTPTimeout        time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	RetryAttempts      int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay     time.Duration `envconfig:"RETRY_BASE_DELAY" default:"250ms"`
	TokenRefreshBuffer time.Duration `envconfig:"TOKEN_REFRESH_BUFFER" default:"30s"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"ratebridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("ups.enabled", c.UPSEnabled),
	}
}
