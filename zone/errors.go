package zone

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrUnknownPincode is returned when a pincode is not in the reference table.
	ErrUnknownPincode = errors.New("unknown pincode")

	// ErrNotLoaded is returned when the resolver is used before the first Reload.
	ErrNotLoaded = errors.New("zone resolver not loaded")
)

// UnknownPincodeError names the pincode that failed to resolve.
type UnknownPincodeError struct {
	Pincode string
}

func (e *UnknownPincodeError) Error() string {
	return fmt.Sprintf("unknown pincode: %s", strconv.Quote(e.Pincode))
}

func (e *UnknownPincodeError) Unwrap() error {
	return ErrUnknownPincode
}
