package config

// Logical operation names used by callers. The function catalog maps these
// to the entry-point names of a concrete deployment, since different
// contract generations name the same operation differently.
const (
	OpBuy      = "buy"
	OpPrice    = "price"
	OpForSale  = "for_sale"
	OpSaleInfo = "sale_info"
)

// ContractRole identifies which on-chain program a caller needs.
type ContractRole string

const (
	RoleLandRegistry  ContractRole = "land_registry"
	RoleMarketplace   ContractRole = "marketplace"
	RoleFungibleToken ContractRole = "fungible_token"
)

// ContractEntry is one deployed contract of the platform.
type ContractEntry struct {
	Address   string
	Name      string
	Functions map[string]string
}

// ContractCatalog is the single authoritative source for platform contract
// addresses, keyed by (environment, role). The per-file constants the old
// frontend carried kept drifting apart; everything reads from here now.
type ContractCatalog map[ContractRole]ContractEntry

var testnetContracts = ContractCatalog{
	RoleLandRegistry: {
		Address: "CCFQLVE4YO2ZH3GDBGPMO3THDQ73G5EJLW3BQFZQQB4HADGHRPYSIUYF",
		Name:    "LandTokenization",
		Functions: map[string]string{
			OpPrice: "get_land",
		},
	},
	RoleMarketplace: {
		Address: "CDUI5BEM7R3CBSF3CCLQGM4QGBON6NIKLGBLXFEM2PSRMPYPS6PXAZCO",
		Name:    "Marketplace",
		Functions: map[string]string{
			OpBuy:      "buy_land",
			OpPrice:    "get_sale_info",
			OpForSale:  "is_land_for_sale",
			OpSaleInfo: "get_sale_info",
		},
	},
	RoleFungibleToken: {
		Address: "CBDYP24VQBEXEONDO74DDAL3LTFSPSRD7JIVBP53YKDXK7YBH2CPHFP4",
		Name:    "SimpleToken",
		Functions: map[string]string{
			OpBuy:   "buy_tokens",
			OpPrice: "get_info",
		},
	},
}

// mainnet contracts are not deployed yet. Resolution against an empty
// address fails closed.
var mainnetContracts = ContractCatalog{}

// ContractsFor returns the contract catalog of the given environment.
func ContractsFor(environment string) ContractCatalog {
	if environment == "production" {
		return mainnetContracts
	}
	return testnetContracts
}
