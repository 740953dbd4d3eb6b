/*
errors.go - Pricing error taxonomy

ERROR CATEGORIES:
  1. Exclusion - this carrier/card cannot price the shipment
     (ErrNotApplicable, ratecard.ErrInvalidRateCard). Ranking drops the
     option and moves on; a single calculation reports it to the caller.
  2. Invalid request - malformed input (ErrInvalidRequest). Caller error.
  3. Everything else - system fault (store down, resolver not loaded).

USAGE:
    b, err := calc.Calculate(ctx, req)
    switch {
    case pricing.IsExclusion(err):   // 422
    case pricing.IsInvalidRequest(err): // 400
    case err != nil:                 // 500
    }
*/
package pricing

import (
	"errors"
	"fmt"

	"github.com/warp/rate-engine/ratecard"
)

var (
	// ErrNotApplicable is returned when a card has no rule that covers the
	// shipment (weight outside every window, zone missing from the card).
	ErrNotApplicable = errors.New("rate card not applicable")

	// ErrInvalidRequest is returned for malformed calculation input.
	ErrInvalidRequest = errors.New("invalid request")
)

// NotApplicableError says which carrier service could not be priced and why.
type NotApplicableError struct {
	Key    ratecard.Key
	Reason string
}

func (e *NotApplicableError) Error() string {
	return fmt.Sprintf("not applicable for %s: %s", e.Key, e.Reason)
}

func (e *NotApplicableError) Unwrap() error { return ErrNotApplicable }

// RequestError names the offending request field. Err, when set, is the
// underlying cause (e.g. zone.ErrUnknownPincode).
type RequestError struct {
	Field  string
	Reason string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidRequest}
	}
	return []error{ErrInvalidRequest, e.Err}
}

// IsExclusion reports whether err means "this option cannot be priced"
// rather than a failure of the request or the system.
func IsExclusion(err error) bool {
	return errors.Is(err, ErrNotApplicable) || errors.Is(err, ratecard.ErrInvalidRateCard)
}

// IsInvalidRequest reports whether err is a caller error.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
