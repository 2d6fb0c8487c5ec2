package ledger

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/usmfum/usmd/internal/wadmath"
)

var (
	ErrInvalidAmount       = errors.New("ledger amount is invalid")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// MemoryLedger is the reference in-memory SupplyLedger. Suitable for local
// runs and tests; a production deployment would bind a real token ledger
// behind the same interface.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]sdkmath.Int
	supply   sdkmath.Int
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]sdkmath.Int),
		supply:   sdkmath.ZeroInt(),
	}
}

func validAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}

// Mint credits the account and grows the total supply.
func (l *MemoryLedger) Mint(account string, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	newSupply, err := wadmath.CheckedAdd(l.supply, amount)
	if err != nil {
		return fmt.Errorf("total supply update failed: %w", err)
	}

	balance, ok := l.balances[account]
	if !ok {
		balance = sdkmath.ZeroInt()
	}
	newBalance, err := wadmath.CheckedAdd(balance, amount)
	if err != nil {
		return fmt.Errorf("balance update failed: %w", err)
	}

	l.supply = newSupply
	l.balances[account] = newBalance
	return nil
}

// Burn debits the account and shrinks the total supply.
func (l *MemoryLedger) Burn(account string, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[account]
	if !ok {
		balance = sdkmath.ZeroInt()
	}
	if balance.LT(amount) {
		return fmt.Errorf("%w: account %s holds %s, needs %s", ErrInsufficientBalance, account, balance, amount)
	}

	l.supply = l.supply.Sub(amount)
	l.balances[account] = balance.Sub(amount)
	return nil
}

// TotalSupply returns the outstanding supply.
func (l *MemoryLedger) TotalSupply() (sdkmath.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply, nil
}

// BalanceOf returns the account's balance, zero for unknown accounts.
func (l *MemoryLedger) BalanceOf(account string) sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if balance, ok := l.balances[account]; ok {
		return balance
	}
	return sdkmath.ZeroInt()
}
