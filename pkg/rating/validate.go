package rating

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// structValidator is the default Validator, driven by the validate struct
// tags on the canonical request types.
type structValidator struct {
	v *validator.Validate
}

// NewValidator returns the default schema-driven request validator.
func NewValidator() Validator {
	return &structValidator{
		v: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateRateRequest checks the canonical request shape. Failures come back
// as a VALIDATION CarrierError with per-field details.
func (s *structValidator) ValidateRateRequest(req *RateRequest) error {
	if req == nil {
		return NewCarrierError("", CodeValidation, "rate request is nil")
	}

	err := s.v.Struct(req)
	if err == nil {
		return nil
	}

	details := make(map[string]any)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Namespace()] = fe.Tag()
		}
	}
	return NewCarrierError("", CodeValidation, "rate request failed validation").
		WithCause(err).
		WithDetails(details)
}
