/*

The issuer core never talks to a price feed directly; it consumes the narrow
PriceSource capability below. Implementations may read an on-chain oracle, an
HTTP feed, or return a constant for testing.

*/

package oracle

import (
	sdkmath "cosmossdk.io/math"
)

// PriceSource is the consumed price-feed interface.
type PriceSource interface {
	// LatestPrice returns the current raw price in the source's native
	// decimal scale.
	LatestPrice() (sdkmath.Int, error)

	// DecimalShift returns the number of decimal digits the raw price carries.
	DecimalShift() (uint64, error)
}

// FixedSource returns a constant price. Used for dry runs and deterministic tests.
type FixedSource struct {
	Price sdkmath.Int
	Shift uint64
}

func (s FixedSource) LatestPrice() (sdkmath.Int, error) {
	return s.Price, nil
}

func (s FixedSource) DecimalShift() (uint64, error) {
	return s.Shift, nil
}
