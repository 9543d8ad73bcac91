// Package ups provides the UPS carrier adapter for the rating core.
package ups

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/ratebridge/pkg/oauth"
	"github.com/tournevent/ratebridge/pkg/rating"
	"github.com/tournevent/ratebridge/pkg/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrierName = "ups"

// responseStatusSuccess is the top-level ResponseStatus.Code value for an
// accepted rate request; anything else is a carrier-level rejection.
const responseStatusSuccess = "0"

// Config holds UPS adapter configuration.
type Config struct {
	ClientID       string
	ClientSecret   string
	BaseURL        string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RefreshBuffer  time.Duration
	UseMock        bool // When true, uses the mock API client
}

// Client is the UPS carrier adapter. It implements the rating.Carrier
// interface and delegates API calls to the underlying APIClient (mock or
// HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new UPS client. If cfg.UseMock is true, it uses a mock API
// client for testing. Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:        cfg.BaseURL,
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			Timeout:        cfg.Timeout,
			RetryAttempts:  cfg.RetryAttempts,
			RetryBaseDelay: cfg.RetryBaseDelay,
			RefreshBuffer:  cfg.RefreshBuffer,
		})
	}

	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// NewWithAPIClient creates a new UPS client with a custom API client. This is
// useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// GetRates returns normalized UPS quotes for the canonical request. Every
// failure comes back as a classified CarrierError, never a raw transport
// fault.
func (c *Client) GetRates(ctx context.Context, req *rating.RateRequest) (*rating.RateResponse, error) {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "ups.GetRates")
		defer span.End()
	}

	c.logger.Info("Requesting UPS rates",
		zap.String("origin_postal", req.Origin.PostalCode),
		zap.String("destination_postal", req.Destination.PostalCode),
		zap.Int("package_count", len(req.Packages)),
	)

	// Adapter-local defense in addition to the orchestrator's validation.
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	wireReq := buildRateRequest(req)

	apiResp, err := c.apiClient.ShopRates(ctx, wireReq)
	if err != nil {
		c.logger.Error("UPS API error", zap.Error(err))
		return nil, classifyError(err)
	}

	return c.normalizeResponse(apiResp)
}

// ============================================================================
// Request validation and translation
// ============================================================================

func validateRequest(req *rating.RateRequest) *rating.CarrierError {
	if err := validateAddress("origin", req.Origin); err != nil {
		return err
	}
	if err := validateAddress("destination", req.Destination); err != nil {
		return err
	}
	if len(req.Packages) == 0 {
		return rating.NewCarrierError(carrierName, rating.CodeInvalidPackage,
			"at least one package is required").WithCause(rating.ErrInvalidPackage)
	}
	for i, p := range req.Packages {
		if p.Length <= 0 || p.Width <= 0 || p.Height <= 0 || p.Weight <= 0 {
			return rating.NewCarrierError(carrierName, rating.CodeInvalidPackage,
				fmt.Sprintf("package %d has non-positive dimensions or weight", i)).
				WithCause(rating.ErrInvalidPackage)
		}
	}
	return nil
}

func validateAddress(which string, addr rating.Address) *rating.CarrierError {
	if addr.Line1 == "" || addr.City == "" || addr.PostalCode == "" || addr.CountryCode == "" {
		return rating.NewCarrierError(carrierName, rating.CodeInvalidAddress,
			fmt.Sprintf("%s address is missing required fields", which)).
			WithCause(rating.ErrInvalidAddress)
	}
	return nil
}

func buildRateRequest(req *rating.RateRequest) *RateRequestWrapper {
	packages := make([]PackageEntry, len(req.Packages))
	for i, p := range req.Packages {
		packages[i] = PackageEntry{
			PackagingType: CodeDescription{Code: "02", Description: "Customer Supplied Package"},
			Dimensions: Dimensions{
				UnitOfMeasurement: CodeDescription{Code: dimensionUnitCode(p.DimensionUnit)},
				Length:            formatMeasure(p.Length),
				Width:             formatMeasure(p.Width),
				Height:            formatMeasure(p.Height),
			},
			PackageWeight: PackageWeight{
				UnitOfMeasurement: CodeDescription{Code: weightUnitCode(p.WeightUnit)},
				Weight:            formatMeasure(p.Weight),
			},
		}
	}

	return &RateRequestWrapper{
		RateRequest: RateRequestBody{
			Request: RequestSection{
				RequestOption: "Shop",
				SubVersion:    "2205",
				TransactionReference: &TransactionReference{
					CustomerContext: "ratebridge-" + uuid.New().String()[:8],
				},
			},
			Shipment: Shipment{
				Shipper: Party{Address: addressToWire(req.Origin)},
				ShipTo:  Party{Address: addressToWire(req.Destination)},
				Package: packages,
				ShipmentRatingOptions: &ShipmentRatingOptions{
					NegotiatedRatesIndicator: "Y",
				},
			},
		},
	}
}

func addressToWire(addr rating.Address) WireAddress {
	lines := []string{addr.Line1}
	if addr.Line2 != "" {
		lines = append(lines, addr.Line2)
	}
	return WireAddress{
		AddressLine:       lines,
		City:              addr.City,
		StateProvinceCode: addr.StateProvinceCode,
		PostalCode:        addr.PostalCode,
		CountryCode:       addr.CountryCode,
	}
}

func dimensionUnitCode(u rating.DimensionUnit) string {
	if u == rating.DimensionCM {
		return "CM"
	}
	return "IN"
}

func weightUnitCode(u rating.WeightUnit) string {
	if u == rating.WeightKG {
		return "KGS"
	}
	return "LBS"
}

func formatMeasure(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ============================================================================
// Response normalization
// ============================================================================

func (c *Client) normalizeResponse(resp *RateResponseWrapper) (*rating.RateResponse, error) {
	if resp == nil || resp.RateResponse == nil || resp.RateResponse.Response.ResponseStatus == nil {
		return nil, rating.NewCarrierError(carrierName, rating.CodeMalformedResponse,
			"UPS response is missing the top-level ResponseStatus")
	}

	status := resp.RateResponse.Response.ResponseStatus
	if status.Code != responseStatusSuccess {
		return nil, rating.NewCarrierError(carrierName, rating.CodeInvalidResponse,
			fmt.Sprintf("UPS rejected the rate request: %s", status.Description)).
			WithDetails(map[string]any{"carrier_status_code": status.Code})
	}

	warnings := alertDescriptions(resp.RateResponse.Response.Alert)

	out := &rating.RateResponse{
		ResponseID: uuid.New().String(),
		Timestamp:  time.Now(),
	}
	for _, rs := range resp.RateResponse.RatedShipment {
		quote, err := normalizeRatedShipment(rs, warnings)
		if err != nil {
			// One unparseable service entry must not abort the rest.
			c.logger.Warn("Skipping unparseable UPS rated service",
				zap.String("service_code", rs.Service.Code),
				zap.Error(err),
			)
			continue
		}
		out.Quotes = append(out.Quotes, *quote)
	}
	return out, nil
}

func normalizeRatedShipment(rs RatedShipment, warnings []string) (*rating.RateQuote, error) {
	if len(rs.RatedPackage) == 0 {
		return nil, fmt.Errorf("rated service %s has no rated packages", rs.Service.Code)
	}

	var base, discount, total float64
	var currency string
	negotiated := false

	for _, pkg := range rs.RatedPackage {
		switch {
		case pkg.NegotiatedCharges != nil && pkg.NegotiatedCharges.TotalCharge != nil:
			negotiated = true
			b, err := parseCharge(pkg.NegotiatedCharges.BaseCharge, &currency)
			if err != nil {
				return nil, err
			}
			d, err := parseCharge(pkg.NegotiatedCharges.DiscountAmount, &currency)
			if err != nil {
				return nil, err
			}
			t, err := parseCharge(pkg.NegotiatedCharges.TotalCharge, &currency)
			if err != nil {
				return nil, err
			}
			base += b
			discount += d
			// Sum the carrier-reported totals directly rather than
			// recomputing base-discount, tolerating carrier rounding.
			total += t
		case pkg.BaseServiceCharge != nil:
			b, err := parseCharge(pkg.BaseServiceCharge, &currency)
			if err != nil {
				return nil, err
			}
			base += b
			total += b
		default:
			return nil, fmt.Errorf("rated package for service %s has no charges", rs.Service.Code)
		}
	}

	// Each quote gets its own copy; quotes must not share a backing array.
	var quoteWarnings []string
	if len(warnings) > 0 {
		quoteWarnings = make([]string, len(warnings))
		copy(quoteWarnings, warnings)
	}

	quote := &rating.RateQuote{
		Carrier:     carrierName,
		Service:     mapServiceLevel(rs.Service.Code),
		BaseCharge:  rating.Money{Amount: base, Currency: currency},
		FinalCharge: rating.Money{Amount: total, Currency: currency},
		Warnings:    quoteWarnings,
	}
	if negotiated && discount > 0 {
		quote.Discount = &rating.Money{Amount: discount, Currency: currency}
	}
	if est := parseEstimatedArrival(rs.TimeInTransit); est != nil {
		quote.EstimatedDelivery = est
	}
	return quote, nil
}

func parseCharge(ch *Charge, currency *string) (float64, error) {
	if ch == nil {
		return 0, nil
	}
	v, err := strconv.ParseFloat(ch.MonetaryValue, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid monetary value %q: %w", ch.MonetaryValue, err)
	}
	if *currency == "" {
		*currency = ch.CurrencyCode
	}
	return v, nil
}

func parseEstimatedArrival(tit *TimeInTransit) *time.Time {
	if tit == nil || tit.EstimatedArrival == nil || tit.EstimatedArrival.Arrival.Date == "" {
		return nil
	}
	arrival := tit.EstimatedArrival.Arrival
	layout, value := "20060102", arrival.Date
	if arrival.Time != "" {
		layout, value = "20060102 150405", arrival.Date+" "+arrival.Time
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return nil
	}
	return &t
}

func alertDescriptions(alerts []CodeDescription) []string {
	if len(alerts) == 0 {
		return nil
	}
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		if a.Description != "" {
			out = append(out, a.Description)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ============================================================================
// Error classification
// ============================================================================

// serviceLevelByCode maps UPS service codes onto the normalized taxonomy.
// The mapping is many-to-one; unmapped codes fall back to ground.
var serviceLevelByCode = map[string]rating.ServiceLevel{
	"01": rating.ServiceOvernight, // Next Day Air
	"13": rating.ServiceOvernight, // Next Day Air Saver
	"14": rating.ServiceOvernight, // Next Day Air Early
	"02": rating.ServiceTwoDay,    // 2nd Day Air
	"59": rating.ServiceTwoDay,    // 2nd Day Air A.M.
	"03": rating.ServiceGround,    // Ground
	"11": rating.ServiceGround,    // Standard
	"12": rating.ServiceEconomy,   // 3 Day Select
	"07": rating.ServiceExpress,   // Worldwide Express
	"08": rating.ServiceExpress,   // Worldwide Expedited
	"65": rating.ServiceExpress,   // Worldwide Saver
}

func mapServiceLevel(code string) rating.ServiceLevel {
	if level, ok := serviceLevelByCode[code]; ok {
		return level
	}
	return rating.ServiceGround
}

// classifyError converts an API client failure into a CarrierError. Auth
// failures are checked first because the token cache wraps the transport
// error that caused them.
func classifyError(err error) *rating.CarrierError {
	var cerr *rating.CarrierError
	if errors.As(err, &cerr) {
		return cerr
	}
	if errors.Is(err, oauth.ErrAuthFailed) {
		return rating.NewCarrierError(carrierName, rating.CodeAuthFailed,
			"UPS authentication failed").WithCause(err)
	}
	var terr *transport.Error
	if errors.As(err, &terr) {
		return rating.FromTransport(carrierName, terr)
	}
	if errors.Is(err, ErrMalformedResponse) {
		return rating.NewCarrierError(carrierName, rating.CodeMalformedResponse,
			"UPS returned an undecodable payload").WithCause(err)
	}
	return rating.NewCarrierError(carrierName, rating.CodeUnknown, err.Error()).WithCause(err)
}
