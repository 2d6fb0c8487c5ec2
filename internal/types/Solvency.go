package types

import "time"

// SolvencySnapshot captures one monitor cycle's view of the issuer's state.
// All WAD quantities travel as base-10 strings.
type SolvencySnapshot struct {
	CycleID     string    `json:"cycle_id"`
	EthPool     string    `json:"eth_pool"`
	TotalSupply string    `json:"total_supply"`
	Price       string    `json:"price"`      // normalized, WAD
	EthBuffer   string    `json:"eth_buffer"` // signed; negative means undercollateralized
	DebtRatio   string    `json:"debt_ratio"` // WAD; 10^18 = exactly collateralized
	Timestamp   time.Time `json:"timestamp"`
}
