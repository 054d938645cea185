package config

import (
	"errors"
	"time"

	"github.com/stellar/go/network"
)

// Network holds the endpoints and protocol identifiers of one ledger
// environment. Resolved once at startup; everything downstream takes it
// as a value.
type Network struct {
	Name         string
	Passphrase   string
	HorizonURL   string
	RPCURL       string
	FriendbotURL string
	BaseFee      int64
	Timeout      time.Duration
}

var testnetNetwork = Network{
	Name:         "Stellar Testnet",
	Passphrase:   network.TestNetworkPassphrase,
	HorizonURL:   "https://horizon-testnet.stellar.org",
	RPCURL:       "https://soroban-testnet.stellar.org",
	FriendbotURL: "https://friendbot.stellar.org",
	BaseFee:      100,
	Timeout:      10 * time.Second,
}

var mainnetNetwork = Network{
	Name:       "Stellar Mainnet",
	Passphrase: network.PublicNetworkPassphrase,
	HorizonURL: "https://horizon.stellar.org",
	RPCURL:     "https://soroban-rpc.mainnet.stellar.gateway.fm",
	BaseFee:    100,
	Timeout:    10 * time.Second,
}

// ResolveNetwork maps the deployment environment to its network config.
// Unknown environments are a startup error, there is no runtime fallback.
func ResolveNetwork(environment string) (Network, error) {
	switch environment {
	case "testing":
		return testnetNetwork, nil
	case "production":
		return mainnetNetwork, nil
	default:
		return Network{}, errors.New("set the deployment environment config: options (testing, production)")
	}
}

// RPC_URL overrides the network default when set, mainly for local
// soroban-rpc instances during development.
func (n Network) EffectiveRPCURL() string {
	if url := RPC_URL; url != "" {
		return url
	}
	return n.RPCURL
}
