package domain

import "time"

// IdempotencyLog caches a vault operation result so client retries return
// the original receipt instead of double-minting or double-burning.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "op:address:reference_id"
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildDepositKey constructs the idempotency key for a deposit.
func BuildDepositKey(address, referenceID string) string {
	return "deposit:" + address + ":" + referenceID
}

// BuildRedeemKey constructs the idempotency key for a redeem.
func BuildRedeemKey(address, referenceID string) string {
	return "redeem:" + address + ":" + referenceID
}
