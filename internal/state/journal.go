// ./internal/state/journal.go
package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/usmfum/usmd/internal/types"
)

// SaveOperationReceipt persists a completed mint or burn.
func SaveOperationReceipt(receipt types.OperationReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO operation_receipts (operation_id, kind, account, eth_amount, usm_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING receipt_id;
	`

	var receiptID int64
	err := DB.QueryRow(
		query,
		receipt.OperationID, string(receipt.Kind), receipt.Account,
		receipt.EthAmount, receipt.UsmAmount, receipt.Timestamp,
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to save operation receipt: %w", err)
	}

	log.Info().
		Int64("receipt_id", receiptID).
		Str("operation_id", receipt.OperationID).
		Str("kind", string(receipt.Kind)).
		Msg("Operation receipt saved to database")

	return receiptID, nil
}

// GetRecentReceipts retrieves recent operation receipts, newest first.
func GetRecentReceipts(limit int) ([]types.OperationReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT operation_id, kind, account, eth_amount, usm_amount, created_at
		FROM operation_receipts
		ORDER BY created_at DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.OperationReceipt
	for rows.Next() {
		var r types.OperationReceipt
		var kind string
		if err := rows.Scan(&r.OperationID, &kind, &r.Account, &r.EthAmount, &r.UsmAmount, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan operation receipt: %w", err)
		}
		r.Kind = types.OperationKind(kind)
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// SaveSolvencySnapshot persists one monitor cycle's solvency view.
func SaveSolvencySnapshot(snapshot types.SolvencySnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO solvency_snapshots (cycle_id, eth_pool, total_supply, price, eth_buffer, debt_ratio, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		snapshot.CycleID, snapshot.EthPool, snapshot.TotalSupply,
		snapshot.Price, snapshot.EthBuffer, snapshot.DebtRatio, snapshot.Timestamp,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save solvency snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Str("eth_pool", snapshot.EthPool).
		Str("debt_ratio", snapshot.DebtRatio).
		Msg("Solvency snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots retrieves recent solvency snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.SolvencySnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT cycle_id, eth_pool, total_supply, price, eth_buffer, debt_ratio, created_at
		FROM solvency_snapshots
		ORDER BY created_at DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query solvency snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.SolvencySnapshot
	for rows.Next() {
		var s types.SolvencySnapshot
		if err := rows.Scan(&s.CycleID, &s.EthPool, &s.TotalSupply, &s.Price, &s.EthBuffer, &s.DebtRatio, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan solvency snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
