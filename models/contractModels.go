package models

import (
	"fmt"

	"github.com/atomlink/stellar-marketplace-go/config"
)

// ContractReference is an addressable on-chain program instance plus the
// function catalog of its deployment.
type ContractReference struct {
	ContractID string              `json:"contract_id"`
	Role       config.ContractRole `json:"role"`
	Functions  map[string]string   `json:"-"`
}

// Entry maps a logical operation name to the deployment's entry point.
func (r ContractReference) Entry(op string) (string, error) {
	fn, ok := r.Functions[op]
	if !ok || fn == "" {
		return "", &ConfigurationError{Reason: fmt.Sprintf("contract %s has no entry point for operation %q", r.ContractID, op)}
	}
	return fn, nil
}
