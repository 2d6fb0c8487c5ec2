/*
This file provides the checked 18-decimal fixed-point ("WAD") arithmetic used
for every amount in the issuer core. No operation here, or anywhere built on
top of it, is allowed to wrap around silently.
*/

package wadmath

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Scale is the WAD fixed-point scale. A value v represents the real number
// v / 10^18.
var Scale = sdkmath.NewIntWithDecimal(1, 18)

// Error definitions for zero-tolerance error handling
var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrUnderflow      = errors.New("arithmetic underflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// fits reports whether v is representable in the 256-bit range backing
// sdkmath.Int. Anything wider is an overflow for WAD amounts.
func fits(v *big.Int) bool {
	return v.BitLen() <= sdkmath.MaxBitLen
}

// validOperands rejects nil or negative inputs. WAD amounts are unsigned
// quantities; a negative operand means a caller already went below zero.
func validOperands(op string, values ...sdkmath.Int) error {
	for _, v := range values {
		if v.IsNil() {
			return fmt.Errorf("%w: nil operand in %s", ErrUnderflow, op)
		}
		if v.IsNegative() {
			return fmt.Errorf("%w: negative operand %s in %s", ErrUnderflow, v, op)
		}
	}
	return nil
}

// CheckedAdd returns a + b, failing instead of exceeding the representable range.
func CheckedAdd(a, b sdkmath.Int) (sdkmath.Int, error) {
	if err := validOperands("addition", a, b); err != nil {
		return sdkmath.ZeroInt(), err
	}
	sum := new(big.Int).Add(a.BigInt(), b.BigInt())
	if !fits(sum) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s + %s", ErrOverflow, a, b)
	}
	return sdkmath.NewIntFromBigInt(sum), nil
}

// CheckedSub returns a - b, failing instead of going below zero.
func CheckedSub(a, b sdkmath.Int) (sdkmath.Int, error) {
	if err := validOperands("subtraction", a, b); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if b.GT(a) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s - %s", ErrUnderflow, a, b)
	}
	return a.Sub(b), nil
}

// WadMul returns a*b/Scale rounded down. The intermediate product is checked
// against the representable range before scaling down.
func WadMul(a, b sdkmath.Int) (sdkmath.Int, error) {
	if err := validOperands("multiplication", a, b); err != nil {
		return sdkmath.ZeroInt(), err
	}
	product := new(big.Int).Mul(a.BigInt(), b.BigInt())
	if !fits(product) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s * %s", ErrOverflow, a, b)
	}
	return sdkmath.NewIntFromBigInt(product.Quo(product, Scale.BigInt())), nil
}

// WadDiv returns a*Scale/b rounded down.
func WadDiv(a, b sdkmath.Int) (sdkmath.Int, error) {
	if err := validOperands("division", a, b); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if b.IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s / 0", ErrDivisionByZero, a)
	}
	scaled := new(big.Int).Mul(a.BigInt(), Scale.BigInt())
	if !fits(scaled) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s * %s", ErrOverflow, a, Scale)
	}
	return sdkmath.NewIntFromBigInt(scaled.Quo(scaled, b.BigInt())), nil
}
