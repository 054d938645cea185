package utils

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/stellar/go/xdr"
)

// Everything that crosses the network boundary is integer stroops.
// 1 XLM = 10^7 stroops. Decimal conversion happens only at the edges and
// always truncates toward zero so we never spend more than authorized.

const StroopsPerLumen = 10_000_000

const lumenDecimals = 7

// ParseLumens converts a human-readable decimal XLM string to stroops.
// Digits beyond the seventh decimal place are dropped, not rounded.
func ParseLumens(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > lumenDecimals {
		frac = frac[:lumenDecimals]
	}
	frac += strings.Repeat("0", lumenDecimals-len(frac))

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	stroops := w*StroopsPerLumen + f
	if neg {
		stroops = -stroops
	}
	return stroops, nil
}

// DecimalToStroops converts a float64 XLM amount to stroops, truncating.
// The float is rendered to a string first to avoid binary representation
// drift around the seventh decimal.
func DecimalToStroops(v float64) (int64, error) {
	return ParseLumens(strconv.FormatFloat(v, 'f', -1, 64))
}

// FormatStroops renders stroops as a decimal XLM string.
func FormatStroops(stroops int64) string {
	neg := ""
	if stroops < 0 {
		neg = "-"
		stroops = -stroops
	}
	return fmt.Sprintf("%s%d.%07d", neg, stroops/StroopsPerLumen, stroops%StroopsPerLumen)
}

// Int128ToBigInt reassembles the two halves of an xdr 128-bit integer.
func Int128ToBigInt(parts xdr.Int128Parts) *big.Int {
	hi := big.NewInt(int64(parts.Hi))
	lo := new(big.Int)
	lo.SetUint64(uint64(parts.Lo))
	hi.Lsh(hi, 64)
	hi.Add(hi, lo)
	return hi
}

// Int128ToStroops narrows an i128 contract value to int64 stroops.
// Values outside int64 report failure instead of wrapping.
func Int128ToStroops(parts xdr.Int128Parts) (int64, bool) {
	v := Int128ToBigInt(parts)
	if !v.IsInt64() {
		return 0, false
	}
	return v.Int64(), true
}
