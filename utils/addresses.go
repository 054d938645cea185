package utils

import (
	"fmt"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

// IsValidAccountAddress reports whether s is a well-formed ed25519 account
// address (G...).
func IsValidAccountAddress(s string) bool {
	_, err := strkey.Decode(strkey.VersionByteAccountID, s)
	return err == nil
}

// IsValidContractAddress reports whether s is a well-formed contract
// address (C...).
func IsValidContractAddress(s string) bool {
	_, err := strkey.Decode(strkey.VersionByteContract, s)
	return err == nil
}

// ScAddressFromString builds an ScAddress from either an account (G) or
// contract (C) strkey.
func ScAddressFromString(addressStr string) (xdr.ScAddress, error) {
	var scAddr xdr.ScAddress

	if len(addressStr) == 0 {
		return scAddr, fmt.Errorf("empty address string")
	}

	switch addressStr[0] {
	case 'G':
		rawBytes, err := strkey.Decode(strkey.VersionByteAccountID, addressStr)
		if err != nil {
			return scAddr, fmt.Errorf("failed to decode account address: %w", err)
		}

		var accountID xdr.AccountId
		var uint256 xdr.Uint256
		copy(uint256[:], rawBytes)
		accountID.Type = xdr.PublicKeyTypePublicKeyTypeEd25519
		accountID.Ed25519 = &uint256

		scAddr.Type = xdr.ScAddressTypeScAddressTypeAccount
		scAddr.AccountId = &accountID

	case 'C':
		rawBytes, err := strkey.Decode(strkey.VersionByteContract, addressStr)
		if err != nil {
			return scAddr, fmt.Errorf("failed to decode contract address: %w", err)
		}

		var contractId xdr.ContractId
		copy(contractId[:], rawBytes)

		scAddr.Type = xdr.ScAddressTypeScAddressTypeContract
		scAddr.ContractId = &contractId

	default:
		return scAddr, fmt.Errorf("invalid address format: must start with G or C")
	}

	return scAddr, nil
}
