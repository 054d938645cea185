package pricing

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/atomlink/stellar-marketplace-go/config"
	"github.com/atomlink/stellar-marketplace-go/models"
	"github.com/atomlink/stellar-marketplace-go/rpc"
	"github.com/atomlink/stellar-marketplace-go/utils"
)

// DiscrepancyTolerance is the relative drift between contract and cached
// price above which a listing is flagged.
const DiscrepancyTolerance = 1e-4

// DefaultUnitPrice is the platform fallback (5 XLM) used only when neither
// the contract nor the cache reports a positive price.
const DefaultUnitPrice = 5 * utils.StroopsPerLumen

// Service reconciles the authoritative token price between the on-chain
// contract and the catalog cache. Price lookup is advisory to UX, not a
// purchase precondition, so Reconcile never returns an error: every
// failure degrades to a lower-priority source. The contract itself stays
// the final authority at submission time.
type Service struct {
	rpc         *rpc.Client
	readTimeout time.Duration
	log         zerolog.Logger
}

func NewService(rpcClient *rpc.Client, log zerolog.Logger) *Service {
	return &Service{
		rpc:         rpcClient,
		readTimeout: 10 * time.Second,
		log:         log.With().Str("component", "pricing").Logger(),
	}
}

// Reconcile fetches the contract price for tokenID and applies the
// resolution policy: contract when positive, else cache when positive,
// else the platform default.
func (s *Service) Reconcile(ctx context.Context, ref models.ContractReference, tokenID int64, cachedPrice int64) models.ListingPriceFacts {
	facts := models.ListingPriceFacts{CachedPrice: cachedPrice}

	facts.ContractPrice = s.contractPrice(ctx, ref, tokenID)

	switch {
	case facts.ContractPrice > 0:
		facts.ResolvedPrice = facts.ContractPrice
		facts.Source = models.PriceSourceContract
	case cachedPrice > 0:
		facts.ResolvedPrice = cachedPrice
		facts.Source = models.PriceSourceCache
	default:
		facts.ResolvedPrice = DefaultUnitPrice
		facts.Source = models.PriceSourceFallback
	}

	if facts.ContractPrice > 0 && cachedPrice > 0 {
		facts.DiscrepancyRatio = math.Abs(float64(facts.ContractPrice-cachedPrice)) / float64(cachedPrice)
		facts.HasDiscrepancy = facts.DiscrepancyRatio > DiscrepancyTolerance
		if facts.HasDiscrepancy {
			s.log.Warn().
				Str("contract", ref.ContractID).
				Int64("token_id", tokenID).
				Int64("contract_price", facts.ContractPrice).
				Int64("cached_price", cachedPrice).
				Float64("ratio", facts.DiscrepancyRatio).
				Msg("price discrepancy between contract and cache")
		}
	}

	return facts
}

// contractPrice reads the price entry point. Any failure (unreachable
// node, missing function, malformed result) means "absent", not an error.
func (s *Service) contractPrice(ctx context.Context, ref models.ContractReference, tokenID int64) int64 {
	fn, err := ref.Entry(config.OpPrice)
	if err != nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	result, err := s.rpc.ReadContract(ctx, ref.ContractID, fn, utils.U32ScVal(uint32(tokenID)))
	if err != nil {
		s.log.Debug().Err(err).Str("contract", ref.ContractID).Msg("contract price lookup failed")
		return 0
	}

	price, err := utils.PriceFromScVal(result)
	if err != nil {
		s.log.Debug().Err(err).Str("contract", ref.ContractID).Msg("could not decode contract price")
		return 0
	}
	return price
}
