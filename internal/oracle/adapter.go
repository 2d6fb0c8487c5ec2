package oracle

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/usmfum/usmd/internal/logger"
	"github.com/usmfum/usmd/internal/wadmath"
)

// ErrPrice covers every oracle failure: the source call failing, a
// non-positive raw price, or a normalization that overflows.
var ErrPrice = errors.New("oracle price error")

// maxDecimalShift bounds the feed's decimal scale. 10^77 is the largest power
// of ten below 2^256; any wider shift cannot produce a representable price.
const maxDecimalShift = 77

// Adapter normalizes a PriceSource to the 18-decimal WAD scale.
// The source reference is fixed at construction and never reassigned.
type Adapter struct {
	source PriceSource
	logger zerolog.Logger
}

// NewAdapter creates an adapter over the given price source.
func NewAdapter(source PriceSource) (*Adapter, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: price source cannot be nil", ErrPrice)
	}
	return &Adapter{
		source: source,
		logger: logger.GetForComponent("oracle_adapter"),
	}, nil
}

// NormalizedPrice fetches a fresh price and rescales it to WAD:
// latestPrice * 10^18 / 10^decimalShift, rounded down.
//
// The price is never cached. Staleness feeds straight into solvency numbers,
// and caching would hide feed failures from the caller.
func (a *Adapter) NormalizedPrice() (sdkmath.Int, error) {
	raw, err := a.source.LatestPrice()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: latest price fetch failed: %w", ErrPrice, err)
	}
	if raw.IsNil() || !raw.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: source returned non-positive price %s", ErrPrice, raw)
	}

	shift, err := a.source.DecimalShift()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: decimal shift fetch failed: %w", ErrPrice, err)
	}
	if shift > maxDecimalShift {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: decimal shift %d out of range", ErrPrice, shift)
	}

	scaled := new(big.Int).Mul(raw.BigInt(), wadmath.Scale.BigInt())
	if scaled.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: normalization of %s overflows", ErrPrice, raw)
	}
	divisor := new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(shift), nil)
	normalized := sdkmath.NewIntFromBigInt(scaled.Quo(scaled, divisor))

	// A price that normalizes to zero would make every conversion degenerate.
	if normalized.IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: price %s vanishes at shift %d", ErrPrice, raw, shift)
	}

	a.logger.Debug().
		Str("rawPrice", raw.String()).
		Uint64("decimalShift", shift).
		Str("normalizedPrice", normalized.String()).
		Msg("Fetched and normalized oracle price")

	return normalized, nil
}
