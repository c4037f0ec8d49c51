package types

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestAccountIDValidate(t *testing.T) {
	valid := []string{"alice.near", "bob", "dev-1667910219580-96853394592542", "a_b.c-d"}
	for _, raw := range valid {
		_, err := ParseAccountID(raw)
		require.NoError(t, err, raw)
	}
	invalid := []string{"", "a", "Alice", ".alice", "alice.", "al..ice", "al ice", string(make([]byte, 65))}
	for _, raw := range invalid {
		_, err := ParseAccountID(raw)
		require.Error(t, err, "%q", raw)
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("")
	require.NoError(t, err)
	require.True(t, v.IsZero())

	v, err = ParseAmount(" 340282366920938463463374607431768211455 ")
	require.NoError(t, err)
	require.Equal(t, MaxAmount, v)

	_, err = ParseAmount("340282366920938463463374607431768211456")
	require.ErrorIs(t, err, ErrAmountOverflow)

	_, err = ParseAmount("-1")
	require.Error(t, err)
	_, err = ParseAmount("12abc")
	require.Error(t, err)
}

func TestAddAmountsOverflow(t *testing.T) {
	sum, err := AddAmounts(uint256.NewInt(40), uint256.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, "42", FormatAmount(sum))

	_, err = AddAmounts(MaxAmount, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrAmountOverflow)
}

func TestCloneAmountTreatsNilAsZero(t *testing.T) {
	require.True(t, CloneAmount(nil).IsZero())
	orig := uint256.NewInt(7)
	clone := CloneAmount(orig)
	clone.AddUint64(clone, 1)
	require.Equal(t, uint64(7), orig.Uint64())
	require.Equal(t, "0", FormatAmount(nil))
}
