/*

The monitor is the operational loop of the issuer: on a fixed interval it
reads the pool, the outstanding supply and the oracle price, computes the
solvency metrics, and persists a snapshot. A cycle that hits any failure is
abandoned whole; the next tick starts fresh.

*/

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/usmfum/usmd/internal/ledger"
	"github.com/usmfum/usmd/internal/logger"
	"github.com/usmfum/usmd/internal/oracle"
	"github.com/usmfum/usmd/internal/state"
	"github.com/usmfum/usmd/internal/types"
	"github.com/usmfum/usmd/internal/usm"
)

// Config holds the dependencies for creating a new Monitor instance.
type Config struct {
	Issuer *usm.USM
	Ledger ledger.SupplyLedger
	Oracle *oracle.Adapter
}

// Monitor periodically samples the issuer's solvency state.
type Monitor struct {
	logger zerolog.Logger
	issuer *usm.USM
	ledger ledger.SupplyLedger
	oracle *oracle.Adapter

	cycleCount int
}

// New creates a Monitor with dependency injection.
func New(cfg Config) (*Monitor, error) {
	if cfg.Issuer == nil {
		return nil, fmt.Errorf("issuer cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("supply ledger cannot be nil")
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("oracle adapter cannot be nil")
	}

	return &Monitor{
		logger: logger.GetForComponent("solvency_monitor"),
		issuer: cfg.Issuer,
		ledger: cfg.Ledger,
		oracle: cfg.Oracle,
	}, nil
}

// RunLoop starts the monitor loop with the specified interval.
func (m *Monitor) RunLoop(ctx context.Context, interval time.Duration) {
	m.logger.Info().Dur("interval", interval).Msg("Starting solvency monitor loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	m.cycleCount++
	m.RunCycle()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Solvency monitor stopped due to context cancellation")
			return
		case <-ticker.C:
			m.cycleCount++
			m.RunCycle()
		}
	}
}

// RunCycle samples the issuer once and persists the snapshot.
func (m *Monitor) RunCycle() {
	cycleStartTime := time.Now()

	// Unique cycle ID for tracing logs across the cycle
	cycleID := uuid.New().String()
	cycleLogger := m.logger.With().Str("cycle_id", cycleID).Int("cycle", m.cycleCount).Logger()

	cycleLogger.Info().Msg("--- Starting solvency cycle ---")

	price, err := m.oracle.NormalizedPrice()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to fetch oracle price.")
		return
	}

	ethPool := m.issuer.EthPool()

	supply, err := m.ledger.TotalSupply()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to read total supply.")
		return
	}

	buffer, err := m.issuer.EthBuffer()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to compute collateral buffer.")
		return
	}

	ratio, err := m.issuer.DebtRatio()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to compute debt ratio.")
		return
	}

	snapshot := types.SolvencySnapshot{
		CycleID:     cycleID,
		EthPool:     ethPool.String(),
		TotalSupply: supply.String(),
		Price:       price.String(),
		EthBuffer:   buffer.String(),
		DebtRatio:   ratio.String(),
		Timestamp:   cycleStartTime,
	}

	snapshotID, err := state.SaveSolvencySnapshot(snapshot)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to save solvency snapshot to database")
	} else {
		cycleLogger.Info().Int64("snapshot_id", snapshotID).Msg("Solvency snapshot saved")
	}

	cycleLogger.Info().
		Str("ethPool", snapshot.EthPool).
		Str("totalSupply", snapshot.TotalSupply).
		Str("price", snapshot.Price).
		Str("ethBuffer", snapshot.EthBuffer).
		Str("debtRatio", snapshot.DebtRatio).
		Str("cycleDuration", time.Since(cycleStartTime).String()).
		Msg("--- Solvency cycle completed ---")
}
