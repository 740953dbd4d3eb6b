/*
errors.go - Error types for rate card lookup, validation and persistence

ERROR CATEGORIES:
  1. Not found - card, zone, company or tier assignment is missing
  2. Validation - a card violates a structural rule (overlap, mixed modes)
  3. Usability - a card exists but cannot price right now

USAGE:
  Callers classify with the helpers at the bottom of the file:

    if ratecard.IsNotFound(err) {
        // 404
    }

SEE ALSO:
  - validate.go: returns the validation errors
  - pricing/errors.go: pricing-time errors that wrap these
*/
package ratecard

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrRateCardNotFound   = errors.New("rate card not found")
	ErrZoneNotFound       = errors.New("zone not found")
	ErrCompanyNotFound    = errors.New("company not found")
	ErrAssignmentNotFound = errors.New("no rate card assigned to company tier")
	ErrCarrierNotFound    = errors.New("carrier not configured for company")

	// ErrInvalidRateCard is returned when a card is inactive or outside its
	// effective window at calculation time.
	ErrInvalidRateCard = errors.New("invalid rate card")

	// ErrInvalidCard is returned when a card fails structural validation.
	ErrInvalidCard = errors.New("rate card validation failed")

	// ErrOverlappingWindows is returned when two weight windows of the same
	// carrier service overlap.
	ErrOverlappingWindows = errors.New("overlapping weight windows")

	// ErrMixedZoneModes is returned when a card carries both flat zone rules
	// and zone multipliers.
	ErrMixedZoneModes = errors.New("card mixes flat zone rules and zone multipliers")

	// ErrSuperseded is returned when editing a card a newer version replaced.
	ErrSuperseded = errors.New("rate card superseded by a newer version")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRateCardError says why a card cannot be used for pricing.
type InvalidRateCardError struct {
	CardID RateCardID
	Reason string
}

func (e *InvalidRateCardError) Error() string {
	return fmt.Sprintf("invalid rate card %s: %s", e.CardID, e.Reason)
}

func (e *InvalidRateCardError) Unwrap() error { return ErrInvalidRateCard }

// OverlapError names the two windows that collide.
type OverlapError struct {
	Kind   string // "base rate", "weight rule" or "cod slab"
	Key    Key
	First  Window
	Second Window
}

func (e *OverlapError) Error() string {
	if e.Key == (Key{}) {
		return fmt.Sprintf("%s windows overlap: %s and %s", e.Kind, e.First, e.Second)
	}
	return fmt.Sprintf("%s windows overlap for %s: %s and %s", e.Kind, e.Key, e.First, e.Second)
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingWindows }

// ValidationError collects every structural problem found on a card.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "rate card validation failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual problems plus ErrInvalidCard to errors.Is.
func (e *ValidationError) Unwrap() []error {
	return append([]error{ErrInvalidCard}, e.Problems...)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRateCardNotFound) ||
		errors.Is(err, ErrZoneNotFound) ||
		errors.Is(err, ErrCompanyNotFound) ||
		errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrCarrierNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidCard) ||
		errors.Is(err, ErrInvalidRateCard) ||
		errors.Is(err, ErrSuperseded)
}
