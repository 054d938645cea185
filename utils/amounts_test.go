package utils

import (
	"testing"

	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLumens(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"5", 50_000_000},
		{"5.0000001", 50_000_001},
		{"0.1", 1_000_000},
		{"0", 0},
		{"12.3456789", 123_456_789},
		// digits past the seventh decimal are dropped, never rounded up
		{"1.99999999", 19_999_999},
		{"-2.5", -25_000_000},
	}
	for _, c := range cases {
		got, err := ParseLumens(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseLumensRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "1,5"} {
		_, err := ParseLumens(in)
		assert.Error(t, err, in)
	}
}

func TestDecimalToStroopsTruncates(t *testing.T) {
	got, err := DecimalToStroops(5.0)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000_000), got)

	got, err = DecimalToStroops(5.0001)
	require.NoError(t, err)
	assert.Equal(t, int64(50_001_000), got)
}

func TestFormatStroops(t *testing.T) {
	assert.Equal(t, "5.0000000", FormatStroops(50_000_000))
	assert.Equal(t, "0.0000001", FormatStroops(1))
	assert.Equal(t, "-2.5000000", FormatStroops(-25_000_000))
}

func TestInt128ToStroops(t *testing.T) {
	v, ok := Int128ToStroops(xdr.Int128Parts{Hi: 0, Lo: 50_000_000})
	require.True(t, ok)
	assert.Equal(t, int64(50_000_000), v)

	// values outside int64 report failure instead of wrapping
	_, ok = Int128ToStroops(xdr.Int128Parts{Hi: 1, Lo: 0})
	assert.False(t, ok)
}
