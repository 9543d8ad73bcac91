// Package rating provides a carrier-agnostic shipping rate model and the
// orchestration layer that fans rate requests out to carrier adapters.
package rating

import (
	"context"
)

// Carrier defines the interface that all carrier adapters must implement.
type Carrier interface {
	// Name returns the carrier identifier (e.g., "ups").
	Name() string

	// GetRates returns normalized rate quotes for the given request.
	GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error)
}

// Validator checks an inbound rate request before any carrier is invoked.
// The default implementation is schema-driven; callers embedding this library
// can supply their own.
type Validator interface {
	ValidateRateRequest(req *RateRequest) error
}

// Metrics receives per-carrier request outcomes. Satisfied by
// internal/telemetry.Metrics; a nil Metrics disables recording.
type Metrics interface {
	RecordRequest(operation, carrier, status string, duration float64)
	RecordError(carrier, errorType string)
}
