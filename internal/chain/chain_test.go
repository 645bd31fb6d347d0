package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("  0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed ")
	require.NoError(t, err)
	require.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", got)

	_, err = NormalizeAddress("0x1234")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddressFromDID(t *testing.T) {
	const want = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	for _, in := range []string{
		"eip155:0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"eip155:80001:0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
	} {
		got, err := AddressFromDID(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}
	_, err := AddressFromDID("eip155:not-an-address")
	require.ErrorIs(t, err, ErrInvalidAddress)
	require.Equal(t, "eip155:"+want, DID(want))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("0.1", 18)
	require.NoError(t, err)
	require.Equal(t, "100000000000000000", v.String())

	v, err = ParseAmount("2", 6)
	require.NoError(t, err)
	require.Equal(t, "2000000", v.String())

	_, err = ParseAmount("0.0000000000000000001", 18)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ParseAmount("-1", 18)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ParseAmount("abc", 18)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseWeiAndFormat(t *testing.T) {
	v, err := ParseWei("50000000000000000")
	require.NoError(t, err)
	require.Equal(t, "0.05", FormatAmount(v, 18))
	require.Equal(t, "0", FormatAmount(big.NewInt(0), 18))

	_, err = ParseWei("-5")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ParseWei("1.5")
	require.ErrorIs(t, err, ErrInvalidAmount)
}
