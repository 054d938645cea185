package models

// Listing is the catalog backend's view of one tokenized asset. PriceXLM
// and Supply are the cached values the reconciliation service cross-checks
// against the contract.
type Listing struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	PriceXLM        float64 `json:"price"`
	Supply          int64   `json:"supply"`
	TokenID         int64   `json:"token_id"`
	ContractAddress string  `json:"smart_contract_address"`
	Status          string  `json:"status"`
}

// RecordPurchaseRequest is the off-chain bookkeeping call made after a
// transaction is confirmed on-chain.
type RecordPurchaseRequest struct {
	Wallet          string `json:"wallet"`
	ListingID       int64  `json:"terreno_id"`
	Amount          int64  `json:"monto"`
	Hash            string `json:"hash"`
	ContractAddress string `json:"smart_contract_address"`
}

// APIEnvelope is the catalog backend's response envelope, reused by this
// service's own HTTP surface.
type APIEnvelope struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
