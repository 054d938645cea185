package models

import (
	"time"

	"github.com/google/uuid"
)

type IntentState string

const (
	IntentIdle              IntentState = "idle"
	IntentBuilding          IntentState = "building"
	IntentSimulating        IntentState = "simulating"
	IntentAwaitingSignature IntentState = "awaiting_signature"
	IntentSubmitting        IntentState = "submitting"
	IntentConfirmed         IntentState = "confirmed"
	IntentRecorded          IntentState = "recorded"
	IntentRejected          IntentState = "rejected"
	IntentFailed            IntentState = "failed"
	IntentAbandoned         IntentState = "abandoned"
)

// Terminal reports whether the intent can no longer make progress on-chain.
// Confirmed is terminal for submission purposes even while the off-chain
// recording is still pending.
func (s IntentState) Terminal() bool {
	switch s {
	case IntentConfirmed, IntentRecorded, IntentRejected, IntentFailed, IntentAbandoned:
		return true
	}
	return false
}

type RecorderStatus string

const (
	RecorderNone     RecorderStatus = "none"
	RecorderPending  RecorderStatus = "pending"
	RecorderRecorded RecorderStatus = "recorded"
	RecorderConflict RecorderStatus = "conflict"
)

// PurchaseIntent is one attempted buy, the unit of idempotence. An intent
// is never reused across retries; each retry is a new intent with a fresh
// sequence number, because a consumed sequence guarantees rejection.
type PurchaseIntent struct {
	ID                  uuid.UUID      `json:"id"`
	ListingID           int64          `json:"listing_id"`
	TokenID             int64          `json:"token_id"`
	BuyerAddress        string         `json:"buyer_address"`
	TokenAmount         int64          `json:"token_amount"`
	UnitPrice           int64          `json:"unit_price_stroops"`
	TotalPrice          int64          `json:"total_price_stroops"`
	ContractID          string         `json:"contract_id"`
	State               IntentState    `json:"state"`
	LedgerTransactionID string         `json:"ledger_transaction_id,omitempty"`
	RecorderStatus      RecorderStatus `json:"recorder_status"`
	Warning             string         `json:"warning,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}
