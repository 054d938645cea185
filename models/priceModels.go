package models

type PriceSource string

const (
	PriceSourceContract PriceSource = "contract"
	PriceSourceCache    PriceSource = "cache"
	PriceSourceFallback PriceSource = "fallback"
)

// ListingPriceFacts is the reconciled pricing for one listing. All prices
// are stroops. ResolvedPrice is what both the display layer and the
// purchase flow use; the contract wins whenever it reports a price.
type ListingPriceFacts struct {
	ContractPrice    int64       `json:"contract_price_stroops"`
	CachedPrice      int64       `json:"cached_price_stroops"`
	ResolvedPrice    int64       `json:"resolved_price_stroops"`
	Source           PriceSource `json:"source"`
	DiscrepancyRatio float64     `json:"discrepancy_ratio"`
	HasDiscrepancy   bool        `json:"has_discrepancy"`
}
