package usm

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usmfum/usmd/internal/ledger"
	"github.com/usmfum/usmd/internal/oracle"
	"github.com/usmfum/usmd/internal/wadmath"
)

// switchableSource lets a test change the price or break the feed mid-flight.
type switchableSource struct {
	mu    sync.Mutex
	price sdkmath.Int
	shift uint64
	err   error
}

func (s *switchableSource) LatestPrice() (sdkmath.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return sdkmath.ZeroInt(), s.err
	}
	return s.price, nil
}

func (s *switchableSource) DecimalShift() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shift, nil
}

func (s *switchableSource) set(price sdkmath.Int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price, s.err = price, err
}

// rejectingLedger refuses every instruction, for atomicity tests.
type rejectingLedger struct {
	supply sdkmath.Int
}

var errLedgerDown = errors.New("ledger rejected the instruction")

func (l *rejectingLedger) Mint(string, sdkmath.Int) error { return errLedgerDown }
func (l *rejectingLedger) Burn(string, sdkmath.Int) error { return errLedgerDown }
func (l *rejectingLedger) TotalSupply() (sdkmath.Int, error) {
	if l.supply.IsNil() {
		return sdkmath.ZeroInt(), nil
	}
	return l.supply, nil
}

func wad(v int64) sdkmath.Int {
	return sdkmath.NewInt(v).Mul(wadmath.Scale)
}

// newTestUSM wires a USM over an in-memory ledger and a raw oracle price at
// decimal shift 0.
func newTestUSM(t *testing.T, rawPrice sdkmath.Int) (*USM, *ledger.MemoryLedger, *switchableSource) {
	t.Helper()

	source := &switchableSource{price: rawPrice, shift: 0}
	adapter, err := oracle.NewAdapter(source)
	require.NoError(t, err)

	supplyLedger := ledger.NewMemoryLedger()
	issuer, err := New(Config{
		Name:   "Minimalist USD",
		Symbol: "USM",
		Oracle: adapter,
		Ledger: supplyLedger,
	})
	require.NoError(t, err)

	return issuer, supplyLedger, source
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	source := &switchableSource{price: wad(1), shift: 0}
	adapter, err := oracle.NewAdapter(source)
	require.NoError(t, err)

	_, err = New(Config{Name: "x", Symbol: "X", Oracle: adapter})
	require.Error(t, err)

	_, err = New(Config{Symbol: "X", Oracle: adapter, Ledger: ledger.NewMemoryLedger()})
	require.Error(t, err)
}

func TestPoolStartsEmpty(t *testing.T) {
	issuer, _, _ := newTestUSM(t, wad(2))
	assert.True(t, issuer.EthPool().IsZero())
}

func TestZeroConversionsAreExact(t *testing.T) {
	// a broken oracle must not matter for zero amounts
	issuer, _, source := newTestUSM(t, wad(2))
	source.set(sdkmath.ZeroInt(), errors.New("feed down"))

	usmAmount, err := issuer.Mint("alice", sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, usmAmount.IsZero())
	assert.True(t, issuer.EthPool().IsZero())

	ethAmount, err := issuer.Burn("alice", sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, ethAmount.IsZero())
}

// The concrete scenario from the issuer's design: price 2.0, one collateral
// unit mints two synthetic units, leaving the instance exactly collateralized.
func TestMintBurnScenarioAtPriceTwo(t *testing.T) {
	issuer, supplyLedger, _ := newTestUSM(t, wad(2))

	usmAmount, err := issuer.Mint("alice", wad(1))
	require.NoError(t, err)
	assert.True(t, wad(2).Equal(usmAmount))
	assert.True(t, wad(1).Equal(issuer.EthPool()))

	supply, err := supplyLedger.TotalSupply()
	require.NoError(t, err)
	assert.True(t, wad(2).Equal(supply))

	// exactly collateralized: ratio 1.0, zero buffer
	ratio, err := issuer.DebtRatio()
	require.NoError(t, err)
	assert.True(t, wadmath.Scale.Equal(ratio))

	buffer, err := issuer.EthBuffer()
	require.NoError(t, err)
	assert.True(t, buffer.IsZero())

	// burning the full supply drains the pool
	ethAmount, err := issuer.Burn("alice", wad(2))
	require.NoError(t, err)
	assert.True(t, wad(1).Equal(ethAmount))
	assert.True(t, issuer.EthPool().IsZero())

	supply, err = supplyLedger.TotalSupply()
	require.NoError(t, err)
	assert.True(t, supply.IsZero())

	// any further burn underflows the now-empty pool and changes nothing
	_, err = issuer.Burn("alice", wad(1))
	require.ErrorIs(t, err, wadmath.ErrUnderflow)
	assert.True(t, issuer.EthPool().IsZero())
}

func TestBurnBeyondPoolUnderflows(t *testing.T) {
	issuer, supplyLedger, _ := newTestUSM(t, wad(2))

	// give alice synthetic units without backing the pool for them
	require.NoError(t, supplyLedger.Mint("alice", wad(10)))

	_, err := issuer.Burn("alice", wad(10))
	require.ErrorIs(t, err, wadmath.ErrUnderflow)

	// nothing changed
	assert.True(t, issuer.EthPool().IsZero())
	supply, err := supplyLedger.TotalSupply()
	require.NoError(t, err)
	assert.True(t, wad(10).Equal(supply))
}

func TestRoundTripBound(t *testing.T) {
	// 0.428571... synthetic per collateral unit makes the floor bite
	price := wadmath.Scale.MulRaw(3).QuoRaw(7)
	issuer, _, _ := newTestUSM(t, price)

	ethIn := sdkmath.NewInt(1_234_567_890_123_456_789)
	usmAmount, err := issuer.Mint("alice", ethIn)
	require.NoError(t, err)

	ethOut, err := issuer.Burn("alice", usmAmount)
	require.NoError(t, err)

	assert.True(t, ethOut.LTE(ethIn))
	drift := ethIn.Sub(ethOut)
	assert.True(t, drift.LTE(sdkmath.NewInt(3)), "round-trip drift %s too large", drift)
}

func TestDebtRatioZeroPool(t *testing.T) {
	issuer, supplyLedger, _ := newTestUSM(t, wad(2))

	// even with outstanding supply, an empty pool reports ratio zero
	require.NoError(t, supplyLedger.Mint("alice", wad(100)))

	ratio, err := issuer.DebtRatio()
	require.NoError(t, err)
	assert.True(t, ratio.IsZero())
}

func TestBufferEqualsPoolAtZeroSupply(t *testing.T) {
	issuer, supplyLedger, source := newTestUSM(t, wad(2))

	_, err := issuer.Mint("alice", wad(5))
	require.NoError(t, err)
	usmHeld := supplyLedger.BalanceOf("alice")
	require.NoError(t, supplyLedger.Burn("alice", usmHeld))

	// supply is zero, so the buffer equals the pool without touching the feed
	source.set(sdkmath.ZeroInt(), errors.New("feed down"))
	buffer, err := issuer.EthBuffer()
	require.NoError(t, err)
	assert.True(t, wad(5).Equal(buffer))
}

func TestBufferCanGoNegative(t *testing.T) {
	issuer, _, source := newTestUSM(t, wad(2))

	_, err := issuer.Mint("alice", wad(1))
	require.NoError(t, err)

	// price halves: 2 USM outstanding now needs 2 ETH of backing
	source.set(wad(1), nil)

	buffer, err := issuer.EthBuffer()
	require.NoError(t, err)
	assert.True(t, buffer.IsNegative())
	assert.Equal(t, wad(1).Neg().String(), buffer.String())

	ratio, err := issuer.DebtRatio()
	require.NoError(t, err)
	assert.True(t, ratio.GT(wadmath.Scale), "undercollateralized ratio must exceed 1.0")
}

func TestSequentialMintsAccumulateExactly(t *testing.T) {
	issuer, _, _ := newTestUSM(t, wad(2))

	amount := sdkmath.NewInt(1_000_000_000)
	const n = 100
	for i := 0; i < n; i++ {
		_, err := issuer.Mint("alice", amount)
		require.NoError(t, err)
	}

	assert.True(t, amount.MulRaw(n).Equal(issuer.EthPool()))
}

func TestConcurrentMintsDoNotLoseUpdates(t *testing.T) {
	issuer, supplyLedger, _ := newTestUSM(t, wad(2))

	amount := sdkmath.NewInt(1_000_000)
	const workers = 8
	const mintsPerWorker = 25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < mintsPerWorker; j++ {
				_, err := issuer.Mint("alice", amount)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	expectedPool := amount.MulRaw(workers * mintsPerWorker)
	assert.True(t, expectedPool.Equal(issuer.EthPool()))

	supply, err := supplyLedger.TotalSupply()
	require.NoError(t, err)
	assert.True(t, expectedPool.MulRaw(2).Equal(supply))
}

func TestOracleZeroPriceFailsEverything(t *testing.T) {
	issuer, supplyLedger, source := newTestUSM(t, wad(2))

	_, err := issuer.Mint("alice", wad(1))
	require.NoError(t, err)

	source.set(sdkmath.ZeroInt(), nil)

	_, err = issuer.Mint("alice", wad(1))
	require.ErrorIs(t, err, oracle.ErrPrice)

	_, err = issuer.Burn("alice", wad(1))
	require.ErrorIs(t, err, oracle.ErrPrice)

	_, err = issuer.DebtRatio()
	require.ErrorIs(t, err, oracle.ErrPrice)

	_, err = issuer.EthBuffer()
	require.ErrorIs(t, err, oracle.ErrPrice)

	// no failed call touched the pool or the supply
	assert.True(t, wad(1).Equal(issuer.EthPool()))
	supply, err := supplyLedger.TotalSupply()
	require.NoError(t, err)
	assert.True(t, wad(2).Equal(supply))
}

func TestOracleFailureAbortsWithoutEffect(t *testing.T) {
	issuer, supplyLedger, source := newTestUSM(t, wad(2))
	source.set(sdkmath.ZeroInt(), errors.New("feed unreachable"))

	_, err := issuer.Mint("alice", wad(1))
	require.ErrorIs(t, err, oracle.ErrPrice)

	assert.True(t, issuer.EthPool().IsZero())
	supply, err := supplyLedger.TotalSupply()
	require.NoError(t, err)
	assert.True(t, supply.IsZero())
}

func TestMintOverflowLeavesStateUntouched(t *testing.T) {
	// normalized price 1e-18 keeps the conversion representable, so the
	// overflow fires in the pool addition itself
	source := &switchableSource{price: sdkmath.NewInt(1), shift: 18}
	adapter, err := oracle.NewAdapter(source)
	require.NoError(t, err)

	supplyLedger := ledger.NewMemoryLedger()
	issuer, err := New(Config{Name: "Minimalist USD", Symbol: "USM", Oracle: adapter, Ledger: supplyLedger})
	require.NoError(t, err)

	_, err = issuer.Mint("alice", wad(1))
	require.NoError(t, err)
	poolBefore := issuer.EthPool()
	supplyBefore, err := supplyLedger.TotalSupply()
	require.NoError(t, err)

	// 2^256 - 1 on top of a non-empty pool exceeds the representable range
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	max.Sub(max, big.NewInt(1))
	_, err = issuer.Mint("alice", sdkmath.NewIntFromBigInt(max))
	require.ErrorIs(t, err, wadmath.ErrOverflow)

	assert.True(t, poolBefore.Equal(issuer.EthPool()))
	supplyAfter, err := supplyLedger.TotalSupply()
	require.NoError(t, err)
	assert.True(t, supplyBefore.Equal(supplyAfter))
}

func TestLedgerRejectionRollsBackMint(t *testing.T) {
	source := &switchableSource{price: wad(2), shift: 0}
	adapter, err := oracle.NewAdapter(source)
	require.NoError(t, err)

	issuer, err := New(Config{
		Name:   "Minimalist USD",
		Symbol: "USM",
		Oracle: adapter,
		Ledger: &rejectingLedger{},
	})
	require.NoError(t, err)

	_, err = issuer.Mint("alice", wad(1))
	require.ErrorIs(t, err, errLedgerDown)
	assert.True(t, issuer.EthPool().IsZero())
}

func TestNegativeAmountsRejected(t *testing.T) {
	issuer, _, _ := newTestUSM(t, wad(2))

	_, err := issuer.Mint("alice", sdkmath.NewInt(-1))
	require.ErrorIs(t, err, wadmath.ErrUnderflow)

	_, err = issuer.Burn("alice", sdkmath.NewInt(-1))
	require.ErrorIs(t, err, wadmath.ErrUnderflow)
}

func TestBurnWithoutBalanceFailsAtomically(t *testing.T) {
	issuer, _, _ := newTestUSM(t, wad(2))

	_, err := issuer.Mint("alice", wad(2))
	require.NoError(t, err)

	// bob holds nothing; the ledger refuses and the pool must not move
	_, err = issuer.Burn("bob", wad(1))
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.True(t, wad(2).Equal(issuer.EthPool()))
}
