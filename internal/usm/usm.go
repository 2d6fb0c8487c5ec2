/*

This package is the accounting core of the issuer: it owns the collateral
pool, converts between collateral and synthetic units at the oracle price, and
computes the solvency metrics. The pool changes only through Mint and Burn,
and each of those is a single atomic transition: either the pool delta and the
ledger instruction both commit, or neither does.

*/

package usm

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/usmfum/usmd/internal/ledger"
	"github.com/usmfum/usmd/internal/logger"
	"github.com/usmfum/usmd/internal/oracle"
	"github.com/usmfum/usmd/internal/wadmath"
)

// ErrInvariant signals a violated arithmetic sanity check. It indicates an
// implementation bug and the enclosing call must be treated as failed.
var ErrInvariant = errors.New("internal invariant violation")

// Config holds the dependencies for creating a new USM instance.
type Config struct {
	Name   string
	Symbol string
	Oracle *oracle.Adapter
	Ledger ledger.SupplyLedger
}

// USM tracks a pool of collateral and issues synthetic units against it.
type USM struct {
	logger zerolog.Logger
	name   string
	symbol string
	oracle *oracle.Adapter
	ledger ledger.SupplyLedger

	// mu guards ethPool and orders Mint/Burn against each other and against
	// readers. The read-modify-write of the pool must never interleave.
	mu      sync.RWMutex
	ethPool sdkmath.Int
}

// New creates a USM instance with an empty collateral pool.
func New(cfg Config) (*USM, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("USM configuration validation failed: %w", err)
	}

	u := &USM{
		logger:  logger.GetForComponent("usm_core"),
		name:    cfg.Name,
		symbol:  cfg.Symbol,
		oracle:  cfg.Oracle,
		ledger:  cfg.Ledger,
		ethPool: sdkmath.ZeroInt(),
	}

	u.logger.Info().
		Str("name", u.name).
		Str("symbol", u.symbol).
		Msg("USM instance created")

	return u, nil
}

func validateConfig(cfg Config) error {
	if cfg.Oracle == nil {
		return fmt.Errorf("oracle adapter cannot be nil")
	}
	if cfg.Ledger == nil {
		return fmt.Errorf("supply ledger cannot be nil")
	}
	if cfg.Name == "" {
		return fmt.Errorf("token name cannot be empty")
	}
	if cfg.Symbol == "" {
		return fmt.Errorf("token symbol cannot be empty")
	}
	return nil
}

// Name returns the synthetic asset's display name.
func (u *USM) Name() string { return u.name }

// Symbol returns the synthetic asset's display symbol.
func (u *USM) Symbol() string { return u.symbol }

// EthPool returns the raw collateral pool value.
func (u *USM) EthPool() sdkmath.Int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.ethPool
}

// ethToUSM converts a collateral amount to synthetic units at a fresh oracle
// price. Zero converts to zero exactly, without consulting the oracle.
func (u *USM) ethToUSM(ethAmount sdkmath.Int) (sdkmath.Int, error) {
	if ethAmount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	price, err := u.oracle.NormalizedPrice()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return wadmath.WadMul(price, ethAmount)
}

// usmToEth converts a synthetic amount to collateral units at a fresh oracle
// price. Zero converts to zero exactly, without consulting the oracle.
func (u *USM) usmToEth(usmAmount sdkmath.Int) (sdkmath.Int, error) {
	if usmAmount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	price, err := u.oracle.NormalizedPrice()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return wadmath.WadDiv(usmAmount, price)
}

// Mint converts ethAmount of deposited collateral into synthetic units,
// grows the pool, and instructs the ledger to credit the account. Returns the
// synthetic amount minted. Any failure leaves the pool and the ledger untouched.
//
// The caller-side strategy is responsible for the physical collateral transfer.
func (u *USM) Mint(account string, ethAmount sdkmath.Int) (sdkmath.Int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if ethAmount.IsNil() || ethAmount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: mint amount %s is not a valid quantity", wadmath.ErrUnderflow, ethAmount)
	}

	usmAmount, err := u.ethToUSM(ethAmount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	// Stage the pool transition; it is applied only once the ledger commits.
	newPool, err := wadmath.CheckedAdd(u.ethPool, ethAmount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := u.ledger.Mint(account, usmAmount); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("supply ledger mint failed: %w", err)
	}
	u.ethPool = newPool

	u.logger.Info().
		Str("account", account).
		Str("ethAmount", ethAmount.String()).
		Str("usmAmount", usmAmount.String()).
		Str("ethPool", u.ethPool.String()).
		Msg("Minted synthetic units")

	return usmAmount, nil
}

// Burn retires usmAmount of synthetic units, shrinks the pool by their
// collateral equivalent, and instructs the ledger to debit the account.
// Returns the collateral amount released. Fails with an underflow error if
// the pool cannot cover the conversion; any failure leaves the pool and the
// ledger untouched.
func (u *USM) Burn(account string, usmAmount sdkmath.Int) (sdkmath.Int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if usmAmount.IsNil() || usmAmount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: burn amount %s is not a valid quantity", wadmath.ErrUnderflow, usmAmount)
	}

	ethAmount, err := u.usmToEth(usmAmount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	newPool, err := wadmath.CheckedSub(u.ethPool, ethAmount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := u.ledger.Burn(account, usmAmount); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("supply ledger burn failed: %w", err)
	}
	u.ethPool = newPool

	u.logger.Info().
		Str("account", account).
		Str("usmAmount", usmAmount.String()).
		Str("ethAmount", ethAmount.String()).
		Str("ethPool", u.ethPool.String()).
		Msg("Burned synthetic units")

	return ethAmount, nil
}

// EthBuffer returns the collateral surplus after backing the outstanding
// supply at the current price. Negative means undercollateralized.
func (u *USM) EthBuffer() (sdkmath.Int, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	supply, err := u.ledger.TotalSupply()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("total supply read failed: %w", err)
	}

	backing, err := u.usmToEth(supply)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	buffer := u.ethPool.Sub(backing)

	// Always true under correct arithmetic. A violation means a bug in the
	// conversion path, not a business condition.
	if buffer.GT(u.ethPool) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: buffer %s exceeds pool %s", ErrInvariant, buffer, u.ethPool)
	}

	return buffer, nil
}

// DebtRatio returns outstanding supply over the pool's synthetic-equivalent
// value, as a WAD. Exactly zero when the pool is empty; above one WAD the
// liabilities exceed the collateral's value.
func (u *USM) DebtRatio() (sdkmath.Int, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.ethPool.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	supply, err := u.ledger.TotalSupply()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("total supply read failed: %w", err)
	}

	poolValue, err := u.ethToUSM(u.ethPool)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	return wadmath.WadDiv(supply, poolValue)
}
