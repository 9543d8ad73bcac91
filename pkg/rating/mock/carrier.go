// Package mock provides a mock carrier implementation for testing.
package mock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/ratebridge/pkg/rating"
)

// Carrier is a mock rating.Carrier for tests. Err, Quotes and Delay can be
// set to shape its behavior per scenario.
type Carrier struct {
	name   string
	Err    error
	Quotes []rating.RateQuote
	Delay  time.Duration
}

// New creates a mock carrier returning two canned quotes.
func New(name string) *Carrier {
	delivery := time.Now().Add(4 * 24 * time.Hour)
	return &Carrier{
		name: name,
		Quotes: []rating.RateQuote{
			{
				Carrier:           name,
				Service:           rating.ServiceGround,
				BaseCharge:        rating.Money{Amount: 14.50, Currency: "USD"},
				FinalCharge:       rating.Money{Amount: 14.50, Currency: "USD"},
				EstimatedDelivery: &delivery,
			},
			{
				Carrier:     name,
				Service:     rating.ServiceTwoDay,
				BaseCharge:  rating.Money{Amount: 29.80, Currency: "USD"},
				Discount:    &rating.Money{Amount: 3.10, Currency: "USD"},
				FinalCharge: rating.Money{Amount: 26.70, Currency: "USD"},
			},
		},
	}
}

// Name returns the carrier name.
func (c *Carrier) Name() string {
	return c.name
}

// GetRates returns the configured quotes or error.
func (c *Carrier) GetRates(ctx context.Context, req *rating.RateRequest) (*rating.RateResponse, error) {
	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.Err != nil {
		return nil, c.Err
	}

	quotes := make([]rating.RateQuote, len(c.Quotes))
	copy(quotes, c.Quotes)
	return &rating.RateResponse{
		ResponseID: uuid.New().String(),
		Timestamp:  time.Now(),
		Quotes:     quotes,
	}, nil
}
