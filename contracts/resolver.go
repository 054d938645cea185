package contracts

import (
	"fmt"
	"strings"

	"github.com/atomlink/stellar-marketplace-go/config"
	"github.com/atomlink/stellar-marketplace-go/models"
	"github.com/atomlink/stellar-marketplace-go/utils"
)

// Resolver maps a listing to the on-chain contract responsible for its
// sale. Per-listing overrides exist so the admin can bind an asset to its
// own token contract; the marketplace contract is shared infrastructure
// and never overridden.
type Resolver struct {
	catalog config.ContractCatalog
}

func NewResolver(catalog config.ContractCatalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve picks the contract for (listing, role).
//
// A listing override that fails address validation is a ConfigurationError,
// never a silent fall-through to the default: that would mask a data-entry
// error as normal operation.
func (r *Resolver) Resolve(listing *models.Listing, role config.ContractRole) (models.ContractReference, error) {
	entry, ok := r.catalog[role]
	if role == config.RoleMarketplace {
		if !ok || entry.Address == "" {
			return models.ContractReference{}, &models.ConfigurationError{Reason: "no marketplace contract configured for this network"}
		}
		return reference(entry, role), nil
	}

	if listing != nil {
		override := strings.TrimSpace(listing.ContractAddress)
		if override != "" {
			if !utils.IsValidContractAddress(override) {
				return models.ContractReference{}, &models.ConfigurationError{
					Reason: fmt.Sprintf("listing %d has malformed contract address %q", listing.ID, override),
				}
			}
			ref := reference(entry, role)
			ref.ContractID = override
			return ref, nil
		}
	}

	// platform default, used in non-production flows only
	if !ok || entry.Address == "" {
		return models.ContractReference{}, &models.ConfigurationError{Reason: fmt.Sprintf("no %s contract configured for this network", role)}
	}
	return reference(entry, role), nil
}

func reference(entry config.ContractEntry, role config.ContractRole) models.ContractReference {
	return models.ContractReference{
		ContractID: entry.Address,
		Role:       role,
		Functions:  entry.Functions,
	}
}
