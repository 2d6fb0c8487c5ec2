package oracle

import (
	"errors"
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usmfum/usmd/internal/wadmath"
)

// failingSource simulates a broken feed.
type failingSource struct {
	priceErr error
	shiftErr error
	price    sdkmath.Int
	shift    uint64
}

func (s failingSource) LatestPrice() (sdkmath.Int, error) {
	if s.priceErr != nil {
		return sdkmath.ZeroInt(), s.priceErr
	}
	return s.price, nil
}

func (s failingSource) DecimalShift() (uint64, error) {
	if s.shiftErr != nil {
		return 0, s.shiftErr
	}
	return s.shift, nil
}

func TestNewAdapterRejectsNilSource(t *testing.T) {
	_, err := NewAdapter(nil)
	require.ErrorIs(t, err, ErrPrice)
}

func TestNormalizedPriceIdentityShift(t *testing.T) {
	// a feed already at 18 decimals passes through unchanged
	raw := sdkmath.NewInt(2).Mul(wadmath.Scale)
	adapter, err := NewAdapter(FixedSource{Price: raw, Shift: 18})
	require.NoError(t, err)

	price, err := adapter.NormalizedPrice()
	require.NoError(t, err)
	assert.True(t, raw.Equal(price))
}

func TestNormalizedPriceUpscales(t *testing.T) {
	// an 8-decimal feed (2450.12345678) scales up to WAD
	adapter, err := NewAdapter(FixedSource{Price: sdkmath.NewInt(245012345678), Shift: 8})
	require.NoError(t, err)

	price, err := adapter.NormalizedPrice()
	require.NoError(t, err)
	assert.Equal(t, "2450123456780000000000", price.String())
}

func TestNormalizedPriceZeroShift(t *testing.T) {
	// a 0-decimal feed: a raw 2 means 2.0
	adapter, err := NewAdapter(FixedSource{Price: sdkmath.NewInt(2), Shift: 0})
	require.NoError(t, err)

	price, err := adapter.NormalizedPrice()
	require.NoError(t, err)
	assert.True(t, sdkmath.NewInt(2).Mul(wadmath.Scale).Equal(price))
}

func TestNormalizedPriceDownscales(t *testing.T) {
	// a 24-decimal feed floors down to WAD
	raw, ok := sdkmath.NewIntFromString("1500000000000000000999999")
	require.True(t, ok)
	adapter, err := NewAdapter(FixedSource{Price: raw, Shift: 24})
	require.NoError(t, err)

	price, err := adapter.NormalizedPrice()
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", price.String())
}

func TestNormalizedPriceRejectsZero(t *testing.T) {
	adapter, err := NewAdapter(FixedSource{Price: sdkmath.ZeroInt(), Shift: 8})
	require.NoError(t, err)

	_, err = adapter.NormalizedPrice()
	require.ErrorIs(t, err, ErrPrice)
}

func TestNormalizedPriceRejectsVanishingPrice(t *testing.T) {
	// 1 at shift 40 normalizes below one WAD unit
	adapter, err := NewAdapter(FixedSource{Price: sdkmath.NewInt(1), Shift: 40})
	require.NoError(t, err)

	_, err = adapter.NormalizedPrice()
	require.ErrorIs(t, err, ErrPrice)
}

func TestNormalizedPricePropagatesSourceFailures(t *testing.T) {
	feedDown := errors.New("feed unreachable")

	adapter, err := NewAdapter(failingSource{priceErr: feedDown})
	require.NoError(t, err)
	_, err = adapter.NormalizedPrice()
	require.ErrorIs(t, err, ErrPrice)
	require.ErrorIs(t, err, feedDown)

	adapter, err = NewAdapter(failingSource{price: sdkmath.NewInt(1), shiftErr: feedDown})
	require.NoError(t, err)
	_, err = adapter.NormalizedPrice()
	require.ErrorIs(t, err, ErrPrice)
}

func TestNormalizedPriceOverflow(t *testing.T) {
	// a raw price near 2^256 cannot survive the 10^18 upscale
	huge := new(big.Int).Lsh(big.NewInt(1), 250)
	adapter, err := NewAdapter(FixedSource{Price: sdkmath.NewIntFromBigInt(huge), Shift: 0})
	require.NoError(t, err)

	_, err = adapter.NormalizedPrice()
	require.ErrorIs(t, err, ErrPrice)
}

func TestNormalizedPriceRejectsWideShift(t *testing.T) {
	adapter, err := NewAdapter(FixedSource{Price: sdkmath.NewInt(1), Shift: 200})
	require.NoError(t, err)

	_, err = adapter.NormalizedPrice()
	require.ErrorIs(t, err, ErrPrice)
}
