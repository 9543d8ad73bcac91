package ups

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/ratebridge/pkg/oauth"
	"github.com/tournevent/ratebridge/pkg/rating"
	"github.com/tournevent/ratebridge/pkg/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(api APIClient) *Client {
	return NewWithAPIClient(Config{}, api, otelzap.New(zap.NewNop()), nil)
}

func testRequest() *rating.RateRequest {
	return &rating.RateRequest{
		Origin: rating.Address{
			Line1:             "123 Shipper St",
			City:              "Louisville",
			StateProvinceCode: "KY",
			PostalCode:        "40202",
			CountryCode:       "US",
		},
		Destination: rating.Address{
			Line1:             "456 Receiver Ave",
			City:              "Portland",
			StateProvinceCode: "OR",
			PostalCode:        "97201",
			CountryCode:       "US",
		},
		Packages: []rating.Package{
			{Length: 10, Width: 8, Height: 6, DimensionUnit: rating.DimensionIN, Weight: 5, WeightUnit: rating.WeightLB},
		},
	}
}

func staticResponse(resp *RateResponseWrapper) *MockAPIClient {
	return &MockAPIClient{
		OnShopRates: func(ctx context.Context, req *RateRequestWrapper) (*RateResponseWrapper, error) {
			return resp, nil
		},
	}
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, "ups", newTestClient(NewMockAPIClient()).Name())
}

func TestGetRates_NormalizesMockResponse(t *testing.T) {
	client := newTestClient(NewMockAPIClient())

	resp, err := client.GetRates(context.Background(), testRequest())

	require.NoError(t, err)
	require.Len(t, resp.Quotes, 2)
	assert.NotEmpty(t, resp.ResponseID)

	ground := resp.Quotes[0]
	assert.Equal(t, "ups", ground.Carrier)
	assert.Equal(t, rating.ServiceGround, ground.Service)
	assert.InDelta(t, 12.35, ground.BaseCharge.Amount, 0.001)
	assert.InDelta(t, 12.35, ground.FinalCharge.Amount, 0.001)
	assert.Equal(t, "USD", ground.FinalCharge.Currency)
	assert.Nil(t, ground.Discount, "published rates carry no discount")
	assert.Nil(t, ground.EstimatedDelivery)

	air := resp.Quotes[1]
	assert.Equal(t, rating.ServiceOvernight, air.Service)
	assert.InDelta(t, 48.00, air.BaseCharge.Amount, 0.001)
	require.NotNil(t, air.Discount)
	assert.InDelta(t, 6.50, air.Discount.Amount, 0.001)
	assert.InDelta(t, 41.50, air.FinalCharge.Amount, 0.001)
	require.NotNil(t, air.EstimatedDelivery)
}

func TestGetRates_SumsPublishedChargesAcrossPackages(t *testing.T) {
	api := staticResponse(&RateResponseWrapper{
		RateResponse: &RateResponseBody{
			Response: ResponseSection{ResponseStatus: &CodeDescription{Code: "0"}},
			RatedShipment: []RatedShipment{
				{
					Service: CodeDescription{Code: "03"},
					RatedPackage: []RatedPackage{
						{BaseServiceCharge: &Charge{CurrencyCode: "USD", MonetaryValue: "15.00"}},
						{BaseServiceCharge: &Charge{CurrencyCode: "USD", MonetaryValue: "10.00"}},
					},
				},
			},
		},
	})

	resp, err := newTestClient(api).GetRates(context.Background(), testRequest())

	require.NoError(t, err)
	require.Len(t, resp.Quotes, 1)
	assert.InDelta(t, 25.00, resp.Quotes[0].BaseCharge.Amount, 0.001)
	assert.InDelta(t, 25.00, resp.Quotes[0].FinalCharge.Amount, 0.001)
}

func TestGetRates_SumsNegotiatedCharges(t *testing.T) {
	api := staticResponse(&RateResponseWrapper{
		RateResponse: &RateResponseBody{
			Response: ResponseSection{ResponseStatus: &CodeDescription{Code: "0"}},
			RatedShipment: []RatedShipment{
				{
					Service: CodeDescription{Code: "02"},
					RatedPackage: []RatedPackage{
						{NegotiatedCharges: &NegotiatedCharges{
							BaseCharge:     &Charge{CurrencyCode: "CAD", MonetaryValue: "30.00"},
							DiscountAmount: &Charge{CurrencyCode: "CAD", MonetaryValue: "5.00"},
							TotalCharge:    &Charge{CurrencyCode: "CAD", MonetaryValue: "25.00"},
						}},
					},
				},
			},
		},
	})

	resp, err := newTestClient(api).GetRates(context.Background(), testRequest())

	require.NoError(t, err)
	require.Len(t, resp.Quotes, 1)
	quote := resp.Quotes[0]
	assert.Equal(t, rating.ServiceTwoDay, quote.Service)
	assert.InDelta(t, 30.00, quote.BaseCharge.Amount, 0.001)
	require.NotNil(t, quote.Discount)
	assert.InDelta(t, 5.00, quote.Discount.Amount, 0.001)
	assert.InDelta(t, 25.00, quote.FinalCharge.Amount, 0.001)
	assert.Equal(t, "CAD", quote.FinalCharge.Currency)
}

func TestGetRates_MissingResponseStatus(t *testing.T) {
	api := staticResponse(&RateResponseWrapper{
		RateResponse: &RateResponseBody{Response: ResponseSection{}},
	})

	_, err := newTestClient(api).GetRates(context.Background(), testRequest())

	require.Error(t, err)
	var cerr *rating.CarrierError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, rating.CodeMalformedResponse, cerr.Code)
}

func TestGetRates_NonZeroStatusCode(t *testing.T) {
	api := staticResponse(&RateResponseWrapper{
		RateResponse: &RateResponseBody{
			Response: ResponseSection{
				ResponseStatus: &CodeDescription{Code: "1", Description: "Unsupported request"},
			},
		},
	})

	_, err := newTestClient(api).GetRates(context.Background(), testRequest())

	require.Error(t, err)
	var cerr *rating.CarrierError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, rating.CodeInvalidResponse, cerr.Code)
	assert.Equal(t, "1", cerr.Details["carrier_status_code"])
}

func TestGetRates_AlertsBecomeQuoteWarnings(t *testing.T) {
	api := staticResponse(&RateResponseWrapper{
		RateResponse: &RateResponseBody{
			Response: ResponseSection{
				ResponseStatus: &CodeDescription{Code: "0"},
				Alert: []CodeDescription{
					{Code: "110971", Description: "Your invoice may vary from the displayed reference rates"},
				},
			},
			RatedShipment: []RatedShipment{
				{
					Service: CodeDescription{Code: "03"},
					RatedPackage: []RatedPackage{
						{BaseServiceCharge: &Charge{CurrencyCode: "USD", MonetaryValue: "9.99"}},
					},
				},
			},
		},
	})

	resp, err := newTestClient(api).GetRates(context.Background(), testRequest())

	require.NoError(t, err)
	require.Len(t, resp.Quotes, 1)
	require.Len(t, resp.Quotes[0].Warnings, 1)
	assert.Contains(t, resp.Quotes[0].Warnings[0], "may vary")
}

func TestGetRates_QuoteWarningsAreIndependent(t *testing.T) {
	api := staticResponse(&RateResponseWrapper{
		RateResponse: &RateResponseBody{
			Response: ResponseSection{
				ResponseStatus: &CodeDescription{Code: "0"},
				Alert:          []CodeDescription{{Code: "110971", Description: "rate advisory"}},
			},
			RatedShipment: []RatedShipment{
				{
					Service: CodeDescription{Code: "03"},
					RatedPackage: []RatedPackage{
						{BaseServiceCharge: &Charge{CurrencyCode: "USD", MonetaryValue: "9.99"}},
					},
				},
				{
					Service: CodeDescription{Code: "02"},
					RatedPackage: []RatedPackage{
						{BaseServiceCharge: &Charge{CurrencyCode: "USD", MonetaryValue: "19.99"}},
					},
				},
			},
		},
	})

	resp, err := newTestClient(api).GetRates(context.Background(), testRequest())

	require.NoError(t, err)
	require.Len(t, resp.Quotes, 2)
	require.Len(t, resp.Quotes[0].Warnings, 1)
	require.Len(t, resp.Quotes[1].Warnings, 1)

	// Mutating one quote's warnings must not reach its sibling.
	resp.Quotes[0].Warnings[0] = "mutated"
	assert.Equal(t, "rate advisory", resp.Quotes[1].Warnings[0])
}

func TestGetRates_SkipsUnparseableServiceEntry(t *testing.T) {
	api := staticResponse(&RateResponseWrapper{
		RateResponse: &RateResponseBody{
			Response: ResponseSection{ResponseStatus: &CodeDescription{Code: "0"}},
			RatedShipment: []RatedShipment{
				{
					Service: CodeDescription{Code: "03"},
					RatedPackage: []RatedPackage{
						{BaseServiceCharge: &Charge{CurrencyCode: "USD", MonetaryValue: "not-a-number"}},
					},
				},
				{
					Service: CodeDescription{Code: "12"},
					RatedPackage: []RatedPackage{
						{BaseServiceCharge: &Charge{CurrencyCode: "USD", MonetaryValue: "7.50"}},
					},
				},
			},
		},
	})

	resp, err := newTestClient(api).GetRates(context.Background(), testRequest())

	require.NoError(t, err, "one bad entry must not abort the response")
	require.Len(t, resp.Quotes, 1)
	assert.Equal(t, rating.ServiceEconomy, resp.Quotes[0].Service)
}

func TestGetRates_LocalValidation(t *testing.T) {
	client := newTestClient(NewMockAPIClient())

	t.Run("missing address fields", func(t *testing.T) {
		req := testRequest()
		req.Destination.PostalCode = ""
		_, err := client.GetRates(context.Background(), req)
		require.Error(t, err)
		assert.ErrorIs(t, err, rating.ErrInvalidAddress)
	})

	t.Run("no packages", func(t *testing.T) {
		req := testRequest()
		req.Packages = nil
		_, err := client.GetRates(context.Background(), req)
		require.Error(t, err)
		assert.ErrorIs(t, err, rating.ErrInvalidPackage)
	})

	t.Run("non-positive weight", func(t *testing.T) {
		req := testRequest()
		req.Packages[0].Weight = 0
		_, err := client.GetRates(context.Background(), req)
		require.Error(t, err)
		assert.ErrorIs(t, err, rating.ErrInvalidPackage)
	})
}

func TestGetRates_ErrorClassification(t *testing.T) {
	failWith := func(err error) *MockAPIClient {
		return &MockAPIClient{
			OnShopRates: func(ctx context.Context, req *RateRequestWrapper) (*RateResponseWrapper, error) {
				return nil, err
			},
		}
	}

	t.Run("auth failure", func(t *testing.T) {
		wrapped := errors.Join(oauth.ErrAuthFailed, &transport.Error{Code: transport.CodeHTTP401, StatusCode: 401})
		_, err := newTestClient(failWith(wrapped)).GetRates(context.Background(), testRequest())
		var cerr *rating.CarrierError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, rating.CodeAuthFailed, cerr.Code)
	})

	t.Run("transport timeout", func(t *testing.T) {
		_, err := newTestClient(failWith(&transport.Error{Code: transport.CodeTimeout})).
			GetRates(context.Background(), testRequest())
		var cerr *rating.CarrierError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, rating.CodeTimeout, cerr.Code)
		assert.True(t, cerr.Retryable)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := newTestClient(failWith(ErrMalformedResponse)).
			GetRates(context.Background(), testRequest())
		var cerr *rating.CarrierError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, rating.CodeMalformedResponse, cerr.Code)
	})

	t.Run("unknown error", func(t *testing.T) {
		_, err := newTestClient(failWith(errors.New("boom"))).
			GetRates(context.Background(), testRequest())
		var cerr *rating.CarrierError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, rating.CodeUnknown, cerr.Code)
	})
}

func TestBuildRateRequest_WireTranslation(t *testing.T) {
	req := testRequest()
	req.Origin.Line2 = "Suite 400"
	req.Packages[0].DimensionUnit = rating.DimensionCM
	req.Packages[0].WeightUnit = rating.WeightKG

	wire := buildRateRequest(req)

	assert.Equal(t, "Shop", wire.RateRequest.Request.RequestOption)
	assert.Equal(t, "Y", wire.RateRequest.Shipment.ShipmentRatingOptions.NegotiatedRatesIndicator)

	shipper := wire.RateRequest.Shipment.Shipper.Address
	assert.Equal(t, []string{"123 Shipper St", "Suite 400"}, shipper.AddressLine)
	assert.Equal(t, "US", shipper.CountryCode)

	require.Len(t, wire.RateRequest.Shipment.Package, 1)
	pkg := wire.RateRequest.Shipment.Package[0]
	assert.Equal(t, "CM", pkg.Dimensions.UnitOfMeasurement.Code)
	assert.Equal(t, "KGS", pkg.PackageWeight.UnitOfMeasurement.Code)
	assert.Equal(t, "10", pkg.Dimensions.Length)
	assert.Equal(t, "5", pkg.PackageWeight.Weight)
}

func TestMapServiceLevel(t *testing.T) {
	cases := map[string]rating.ServiceLevel{
		"01": rating.ServiceOvernight,
		"13": rating.ServiceOvernight,
		"02": rating.ServiceTwoDay,
		"03": rating.ServiceGround,
		"11": rating.ServiceGround,
		"12": rating.ServiceEconomy,
		"07": rating.ServiceExpress,
		"99": rating.ServiceGround, // unmapped falls back to ground
	}
	for code, want := range cases {
		assert.Equal(t, want, mapServiceLevel(code), "code %s", code)
	}
}

func TestParseEstimatedArrival(t *testing.T) {
	t.Run("date only", func(t *testing.T) {
		got := parseEstimatedArrival(&TimeInTransit{
			EstimatedArrival: &EstimatedArrival{Arrival: ArrivalDateTime{Date: "20260901"}},
		})
		require.NotNil(t, got)
		assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), *got)
	})

	t.Run("date and time", func(t *testing.T) {
		got := parseEstimatedArrival(&TimeInTransit{
			EstimatedArrival: &EstimatedArrival{Arrival: ArrivalDateTime{Date: "20260901", Time: "103000"}},
		})
		require.NotNil(t, got)
		assert.Equal(t, time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC), *got)
	})

	t.Run("absent", func(t *testing.T) {
		assert.Nil(t, parseEstimatedArrival(nil))
		assert.Nil(t, parseEstimatedArrival(&TimeInTransit{}))
	})
}
