package ups

import (
	"context"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnShopRates func(ctx context.Context, req *RateRequestWrapper) (*RateResponseWrapper, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// ShopRates returns mock rated services: published Ground charges per
// package plus a negotiated Next Day Air entry.
func (m *MockAPIClient) ShopRates(ctx context.Context, req *RateRequestWrapper) (*RateResponseWrapper, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors {
		return nil, ErrMalformedResponse
	}

	if m.OnShopRates != nil {
		return m.OnShopRates(ctx, req)
	}

	// One published charge per requested package so multi-package requests
	// exercise the summation path.
	groundPackages := make([]RatedPackage, len(req.RateRequest.Shipment.Package))
	for i := range groundPackages {
		groundPackages[i] = RatedPackage{
			BaseServiceCharge: &Charge{CurrencyCode: "USD", MonetaryValue: "12.35"},
		}
	}

	arrival := time.Now().AddDate(0, 0, 1).Format("20060102")

	return &RateResponseWrapper{
		RateResponse: &RateResponseBody{
			Response: ResponseSection{
				ResponseStatus: &CodeDescription{Code: "0", Description: "Success"},
			},
			RatedShipment: []RatedShipment{
				{
					Service:      CodeDescription{Code: "03", Description: "UPS Ground"},
					RatedPackage: groundPackages,
				},
				{
					Service: CodeDescription{Code: "01", Description: "UPS Next Day Air"},
					RatedPackage: []RatedPackage{
						{
							NegotiatedCharges: &NegotiatedCharges{
								BaseCharge:     &Charge{CurrencyCode: "USD", MonetaryValue: "48.00"},
								DiscountAmount: &Charge{CurrencyCode: "USD", MonetaryValue: "6.50"},
								TotalCharge:    &Charge{CurrencyCode: "USD", MonetaryValue: "41.50"},
							},
						},
					},
					TimeInTransit: &TimeInTransit{
						EstimatedArrival: &EstimatedArrival{
							Arrival: ArrivalDateTime{Date: arrival, Time: "103000"},
						},
					},
				},
			},
		},
	}, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
