package main

import (
	"context"

	"github.com/tournevent/ratebridge/internal/config"
	"github.com/tournevent/ratebridge/internal/telemetry"
	"github.com/tournevent/ratebridge/pkg/rating"
	"github.com/tournevent/ratebridge/pkg/rating/ups"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// bootstrap wires config, telemetry, and the carrier registry for a CLI run.
// The returned shutdown flushes telemetry and the logger.
func bootstrap(ctx context.Context) (*rating.Registry, *otelzap.Logger, func(context.Context) error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	var tracer trace.Tracer
	tracerShutdown := func(context.Context) error { return nil }
	if cfg.OTELEnabled {
		t, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
		if err != nil {
			logger.Warn("Failed to initialize tracer", zap.Error(err))
		} else {
			tracer = t
			tracerShutdown = shutdown
		}
	}

	registry := initRegistry(cfg, logger, tracer)

	shutdown := func(ctx context.Context) error {
		err := tracerShutdown(ctx)
		_ = logger.Sync()
		return err
	}
	return registry, logger, shutdown, nil
}

func initRegistry(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) *rating.Registry {
	registry := rating.NewRegistry(logger, rating.WithMetrics(telemetry.NewMetrics()))

	if cfg.UPSEnabled {
		registry.Register(ups.New(ups.Config{
			ClientID:       cfg.UPSClientID,
			ClientSecret:   cfg.UPSClientSecret,
			BaseURL:        cfg.UPSBaseURL,
			Timeout:        cfg.HTTPTimeout,
			RetryAttempts:  cfg.RetryAttempts,
			RetryBaseDelay: cfg.RetryBaseDelay,
			RefreshBuffer:  cfg.TokenRefreshBuffer,
			UseMock:        cfg.UPSUseMock,
		}, logger, tracer))
	}

	return registry
}
