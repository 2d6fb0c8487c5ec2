/*

Journal record for a completed mint or burn. Amounts are serialized as
base-10 strings since they exceed what JSON numbers can carry.

*/

package types

import "time"

type OperationKind string

const (
	OperationMint OperationKind = "mint"
	OperationBurn OperationKind = "burn"
)

type OperationReceipt struct {
	OperationID string        `json:"operation_id"` // e.g., a UUID assigned by the caller
	Kind        OperationKind `json:"kind"`
	Account     string        `json:"account"`
	EthAmount   string        `json:"eth_amount"` // collateral units, smallest denomination
	UsmAmount   string        `json:"usm_amount"` // synthetic units, smallest denomination
	Timestamp   time.Time     `json:"timestamp"`
}
