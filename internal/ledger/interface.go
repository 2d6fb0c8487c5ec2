package ledger

import (
	sdkmath "cosmossdk.io/math"
)

// SupplyLedger defines the narrow capability the issuer core needs from the
// fungible-token ledger tracking synthetic balances. The core instructs mints
// and burns and reads the outstanding supply; balance and allowance semantics
// belong entirely to the implementation.
type SupplyLedger interface {
	// Mint increases the account's balance and the total supply by amount.
	Mint(account string, amount sdkmath.Int) error

	// Burn decreases the account's balance and the total supply by amount.
	// Fails if the account does not hold amount.
	Burn(account string, amount sdkmath.Int) error

	// TotalSupply returns the quantity of synthetic units in circulation.
	TotalSupply() (sdkmath.Int, error)
}
