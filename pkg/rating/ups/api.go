package ups

import (
	"context"
	"errors"
)

// APIClient defines the interface for UPS Rating API operations. This
// abstraction allows a mock implementation during testing and the real HTTP
// implementation in production.
type APIClient interface {
	// ShopRates submits a "Shop" rate request and returns every available
	// service in one response.
	ShopRates(ctx context.Context, req *RateRequestWrapper) (*RateResponseWrapper, error)
}

// ErrMalformedResponse indicates the UPS payload could not be decoded.
var ErrMalformedResponse = errors.New("malformed UPS response")

// ============================================================================
// Wire Request Types (match UPS Rating API v2205 JSON structure)
// ============================================================================

// RateRequestWrapper is the top-level request envelope.
type RateRequestWrapper struct {
	RateRequest RateRequestBody `json:"RateRequest"`
}

// RateRequestBody is the body of a rate request.
type RateRequestBody struct {
	Request  RequestSection `json:"Request"`
	Shipment Shipment       `json:"Shipment"`
}

// RequestSection controls request behavior. RequestOption "Shop" rates all
// available services in a single call.
type RequestSection struct {
	RequestOption        string                `json:"RequestOption"`
	SubVersion           string                `json:"SubVersion,omitempty"`
	TransactionReference *TransactionReference `json:"TransactionReference,omitempty"`
}

// TransactionReference carries an opaque caller correlation value.
type TransactionReference struct {
	CustomerContext string `json:"CustomerContext,omitempty"`
}

// Shipment describes the shipment being rated.
type Shipment struct {
	Shipper               Party                  `json:"Shipper"`
	ShipTo                Party                  `json:"ShipTo"`
	Package               []PackageEntry         `json:"Package"`
	ShipmentRatingOptions *ShipmentRatingOptions `json:"ShipmentRatingOptions,omitempty"`
}

// Party is a shipment endpoint (shipper or recipient).
type Party struct {
	Name    string      `json:"Name,omitempty"`
	Address WireAddress `json:"Address"`
}

// WireAddress is the UPS address representation.
type WireAddress struct {
	AddressLine       []string `json:"AddressLine,omitempty"`
	City              string   `json:"City,omitempty"`
	StateProvinceCode string   `json:"StateProvinceCode,omitempty"`
	PostalCode        string   `json:"PostalCode,omitempty"`
	CountryCode       string   `json:"CountryCode"`
}

// PackageEntry is one parcel. UPS encodes all numeric values as strings.
type PackageEntry struct {
	PackagingType CodeDescription `json:"PackagingType"`
	Dimensions    Dimensions      `json:"Dimensions"`
	PackageWeight PackageWeight   `json:"PackageWeight"`
}

// CodeDescription is the ubiquitous UPS code/description pair.
type CodeDescription struct {
	Code        string `json:"Code"`
	Description string `json:"Description,omitempty"`
}

// Dimensions holds parcel dimensions with an explicit unit code.
type Dimensions struct {
	UnitOfMeasurement CodeDescription `json:"UnitOfMeasurement"`
	Length            string          `json:"Length"`
	Width             string          `json:"Width"`
	Height            string          `json:"Height"`
}

// PackageWeight holds parcel weight with an explicit unit code.
type PackageWeight struct {
	UnitOfMeasurement CodeDescription `json:"UnitOfMeasurement"`
	Weight            string          `json:"Weight"`
}

// ShipmentRatingOptions requests negotiated (account-specific) rates.
type ShipmentRatingOptions struct {
	NegotiatedRatesIndicator string `json:"NegotiatedRatesIndicator,omitempty"`
}

// ============================================================================
// Wire Response Types
// ============================================================================

// RateResponseWrapper is the top-level response envelope.
type RateResponseWrapper struct {
	RateResponse *RateResponseBody `json:"RateResponse"`
}

// RateResponseBody is the body of a rate response.
type RateResponseBody struct {
	Response      ResponseSection `json:"Response"`
	RatedShipment []RatedShipment `json:"RatedShipment,omitempty"`
}

// ResponseSection carries the top-level status indicator and any advisory
// alerts.
type ResponseSection struct {
	ResponseStatus *CodeDescription  `json:"ResponseStatus"`
	Alert          []CodeDescription `json:"Alert,omitempty"`
}

// RatedShipment is one rated service entry.
type RatedShipment struct {
	Service       CodeDescription `json:"Service"`
	RatedPackage  []RatedPackage  `json:"RatedPackage,omitempty"`
	TimeInTransit *TimeInTransit  `json:"TimeInTransit,omitempty"`
}

// RatedPackage carries per-package charges, either published or negotiated.
type RatedPackage struct {
	BaseServiceCharge *Charge            `json:"BaseServiceCharge,omitempty"`
	NegotiatedCharges *NegotiatedCharges `json:"NegotiatedCharges,omitempty"`
}

// Charge is a monetary value with its currency. MonetaryValue is a
// string-encoded decimal.
type Charge struct {
	CurrencyCode  string `json:"CurrencyCode"`
	MonetaryValue string `json:"MonetaryValue"`
}

// NegotiatedCharges is the account-specific discounted price breakdown.
type NegotiatedCharges struct {
	BaseCharge     *Charge `json:"BaseCharge,omitempty"`
	DiscountAmount *Charge `json:"DiscountAmount,omitempty"`
	TotalCharge    *Charge `json:"TotalCharge,omitempty"`
}

// TimeInTransit carries the delivery estimate for a rated service.
type TimeInTransit struct {
	EstimatedArrival *EstimatedArrival `json:"EstimatedArrival,omitempty"`
}

// EstimatedArrival holds the projected arrival point.
type EstimatedArrival struct {
	Arrival ArrivalDateTime `json:"Arrival"`
}

// ArrivalDateTime is a UPS-format date (YYYYMMDD) and optional time (HHMMSS).
type ArrivalDateTime struct {
	Date string `json:"Date"`
	Time string `json:"Time,omitempty"`
}
