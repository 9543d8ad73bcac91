package rating

import (
	"time"
)

// ServiceLevel is the normalized service taxonomy that every carrier's native
// service codes map into. The mapping is many-to-one and adapter-specific.
type ServiceLevel string

const (
	ServiceOvernight ServiceLevel = "overnight"
	ServiceTwoDay    ServiceLevel = "two_day"
	ServiceGround    ServiceLevel = "ground"
	ServiceExpress   ServiceLevel = "express"
	ServiceEconomy   ServiceLevel = "economy"
)

// WeightUnit represents weight measurement unit.
type WeightUnit string

const (
	WeightKG WeightUnit = "kg"
	WeightLB WeightUnit = "lb"
)

// DimensionUnit represents dimension measurement unit.
type DimensionUnit string

const (
	DimensionCM DimensionUnit = "cm"
	DimensionIN DimensionUnit = "in"
)

// Address represents a shipping address. It is carried unchanged through
// orchestration; only adapters reshape it for their wire format.
type Address struct {
	Line1             string `validate:"required"`
	Line2             string
	City              string `validate:"required"`
	StateProvinceCode string
	PostalCode        string `validate:"required"`
	CountryCode       string `validate:"required,iso3166_1_alpha2"` // ISO 3166-1 alpha-2
}

// Package represents one parcel in a rate request. Dimensions and weight must
// be strictly positive.
type Package struct {
	Length        float64 `validate:"gt=0"`
	Width         float64 `validate:"gt=0"`
	Height        float64 `validate:"gt=0"`
	DimensionUnit DimensionUnit
	Weight        float64 `validate:"gt=0"`
	WeightUnit    WeightUnit
}

// Money represents a monetary amount.
type Money struct {
	Amount   float64
	Currency string
}

// RateRequest is the canonical, carrier-agnostic rate request. It is the only
// request shape the orchestrator accepts.
type RateRequest struct {
	Origin       Address      `validate:"required"`
	Destination  Address      `validate:"required"`
	Packages     []Package    `validate:"required,min=1,dive"`
	ServiceLevel ServiceLevel `validate:"omitempty,oneof=overnight two_day ground express economy"`
}

// RateQuote is one normalized quote for one service level from one carrier.
// FinalCharge equals BaseCharge minus Discount when the carrier reported a
// negotiated total; otherwise FinalCharge equals BaseCharge, accumulated by
// summing every per-package charge for that service.
type RateQuote struct {
	Carrier           string
	Service           ServiceLevel
	BaseCharge        Money
	Discount          *Money
	FinalCharge       Money
	EstimatedDelivery *time.Time
	Warnings          []string
}

// RateResponse is the normalized result of a rate request. Quotes preserve
// carrier registration order, then the order returned by each carrier. Errors
// is non-empty iff at least one carrier failed.
type RateResponse struct {
	ResponseID string
	Timestamp  time.Time
	Quotes     []RateQuote
	Errors     []*CarrierError
}
