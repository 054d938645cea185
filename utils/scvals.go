package utils

import (
	"fmt"

	"github.com/stellar/go/xdr"
)

// ScVal constructors for the argument shapes the marketplace contracts
// take: addresses, u32 land ids, i128 token amounts.

func AddressScVal(address string) (xdr.ScVal, error) {
	scAddr, err := ScAddressFromString(address)
	if err != nil {
		return xdr.ScVal{}, err
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &scAddr}, nil
}

func U32ScVal(v uint32) xdr.ScVal {
	u := xdr.Uint32(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &u}
}

func I128ScVal(v int64) xdr.ScVal {
	parts := xdr.Int128Parts{Lo: xdr.Uint64(uint64(v))}
	if v < 0 {
		parts.Hi = xdr.Int64(-1)
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &parts}
}

// ScValToStroops extracts an integer amount from the numeric ScVal shapes
// contracts return prices in.
func ScValToStroops(v xdr.ScVal) (int64, bool) {
	switch v.Type {
	case xdr.ScValTypeScvI128:
		return Int128ToStroops(v.MustI128())
	case xdr.ScValTypeScvU64:
		u := uint64(v.MustU64())
		if u > uint64(1)<<62 {
			return 0, false
		}
		return int64(u), true
	case xdr.ScValTypeScvI64:
		return int64(v.MustI64()), true
	case xdr.ScValTypeScvU32:
		return int64(v.MustU32()), true
	default:
		return 0, false
	}
}

// MapLookup finds the value stored under any of the given symbol keys in a
// ScVal map, e.g. the sale_price field of a get_sale_info result.
func MapLookup(v xdr.ScVal, keys ...string) (xdr.ScVal, bool) {
	m, ok := v.GetMap()
	if !ok || m == nil {
		return xdr.ScVal{}, false
	}
	for _, entry := range *m {
		sym, ok := entry.Key.GetSym()
		if !ok {
			continue
		}
		for _, key := range keys {
			if string(sym) == key {
				return entry.Val, true
			}
		}
	}
	return xdr.ScVal{}, false
}

// PriceFromScVal pulls a stroop price out of a contract read result, which
// is either a bare numeric or a struct-map carrying a price field.
func PriceFromScVal(v xdr.ScVal) (int64, error) {
	if stroops, ok := ScValToStroops(v); ok {
		return stroops, nil
	}
	if inner, ok := MapLookup(v, "sale_price", "price", "price_per_token"); ok {
		if stroops, ok := ScValToStroops(inner); ok {
			return stroops, nil
		}
	}
	return 0, fmt.Errorf("no price in contract result of type %s", v.Type)
}
