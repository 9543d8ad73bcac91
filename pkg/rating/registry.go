package rating

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Registry holds the registered carrier adapters and orchestrates rate
// requests across them. Registration order is preserved and determines
// aggregate quote order.
type Registry struct {
	mu        sync.RWMutex
	carriers  map[string]Carrier
	order     []string
	validator Validator
	logger    *otelzap.Logger
	metrics   Metrics
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithValidator replaces the default request validator.
func WithValidator(v Validator) RegistryOption {
	return func(r *Registry) {
		r.validator = v
	}
}

// WithMetrics attaches a metrics recorder for per-carrier outcomes.
func WithMetrics(m Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates a new carrier registry.
func NewRegistry(logger *otelzap.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		carriers:  make(map[string]Carrier),
		validator: NewValidator(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a carrier to the registry. Registering a name twice replaces
// the previous adapter and logs a warning; registration order is kept from
// the first registration.
func (r *Registry) Register(c Carrier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.carriers[name]; exists {
		r.logger.Warn("Replacing registered carrier", zap.String("carrier", name))
	} else {
		r.order = append(r.order, name)
		r.logger.Info("Registered carrier", zap.String("carrier", name))
	}
	r.carriers[name] = c
}

// Get returns a carrier by name.
func (r *Registry) Get(name string) (Carrier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.carriers[name]; ok {
		return c, nil
	}
	return nil, NewCarrierError(name, CodeCarrierNotFound,
		fmt.Sprintf("carrier %q is not registered", name)).WithCause(ErrCarrierNotFound)
}

// Names returns registered carrier names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered carriers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.carriers)
}

// GetRates validates the request and dispatches it concurrently to every
// registered carrier. All carriers are awaited; one carrier's failure never
// cancels or blocks the rest and is collected as a CarrierError instead of
// being returned. The only call-level error is request validation failure.
func (r *Registry) GetRates(ctx context.Context, req *RateRequest) (*RateResponse, error) {
	if err := r.validate(req); err != nil {
		return nil, err
	}

	r.mu.RLock()
	carriers := make([]Carrier, 0, len(r.order))
	for _, name := range r.order {
		carriers = append(carriers, r.carriers[name])
	}
	r.mu.RUnlock()

	r.logger.Info("Dispatching rate request",
		zap.Int("carrier_count", len(carriers)),
		zap.Int("package_count", len(req.Packages)),
	)

	outcomes := make([]carrierOutcome, len(carriers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range carriers {
		g.Go(func() error {
			outcomes[i] = r.callCarrier(gctx, c, req)
			return nil // settle-all: never fail the group
		})
	}
	_ = g.Wait()

	resp := &RateResponse{
		ResponseID: uuid.New().String(),
		Timestamp:  time.Now(),
	}
	for i, out := range outcomes {
		if out.err != nil {
			r.logger.Error("Carrier rate request failed",
				zap.String("carrier", carriers[i].Name()),
				zap.Error(out.err),
			)
			resp.Errors = append(resp.Errors, out.err)
			continue
		}
		resp.Quotes = append(resp.Quotes, out.resp.Quotes...)
	}
	return resp, nil
}

// GetRatesFromCarrier is the single-carrier variant of GetRates. It returns
// a CARRIER_NOT_FOUND error when the name is not registered.
func (r *Registry) GetRatesFromCarrier(ctx context.Context, name string, req *RateRequest) (*RateResponse, error) {
	if err := r.validate(req); err != nil {
		return nil, err
	}

	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	out := r.callCarrier(ctx, c, req)
	if out.err != nil {
		return nil, out.err
	}
	return out.resp, nil
}

type carrierOutcome struct {
	resp *RateResponse
	err  *CarrierError
}

// callCarrier invokes one adapter, converting any error, panic, or nil
// response into a CarrierError so no fault propagates past the orchestrator.
func (r *Registry) callCarrier(ctx context.Context, c Carrier, req *RateRequest) (out carrierOutcome) {
	name := c.Name()
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			out = carrierOutcome{err: NewCarrierError(name, CodeUnknown,
				fmt.Sprintf("carrier panicked: %v", p))}
		}
		status := "success"
		if out.err != nil {
			status = "error"
		}
		if r.metrics != nil {
			r.metrics.RecordRequest("get_rates", name, status, time.Since(start).Seconds())
			if out.err != nil {
				r.metrics.RecordError(name, out.err.Code)
			}
		}
	}()

	resp, err := c.GetRates(ctx, req)
	if err != nil {
		return carrierOutcome{err: asCarrierError(name, err)}
	}
	if resp == nil {
		return carrierOutcome{err: NewCarrierError(name, CodeUnknown,
			"carrier returned no response and no error")}
	}
	return carrierOutcome{resp: resp}
}

func asCarrierError(carrier string, err error) *CarrierError {
	var cerr *CarrierError
	if errors.As(err, &cerr) {
		if cerr.Carrier == "" {
			cerr.Carrier = carrier
		}
		return cerr
	}
	return NewCarrierError(carrier, CodeUnknown, err.Error()).WithCause(err)
}

func (r *Registry) validate(req *RateRequest) error {
	err := r.validator.ValidateRateRequest(req)
	if err == nil {
		return nil
	}
	var cerr *CarrierError
	if errors.As(err, &cerr) {
		return cerr
	}
	// The validator collaborator surfaced something other than a structured
	// diagnostic; classify it rather than letting it through raw.
	return NewCarrierError("", CodeInvalidRequest, "rate request rejected by validator").WithCause(err)
}
