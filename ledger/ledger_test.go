package ledger

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestBech32mCodecRoundTrip(t *testing.T) {
	payload := make([]byte, 21)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	addr, err := EncodeAddress(DefaultAddressPrefix, payload)
	require.NoError(t, err)
	require.Equal(t, "tnam1", addr.String()[:5])

	decoded, err := NewBech32mCodec("").DecodeAddress(addr.String())
	require.NoError(t, err)
	require.True(t, decoded.Equal(addr))
	require.Equal(t, payload, decoded.Bytes())
	require.Equal(t, DefaultAddressPrefix, decoded.Prefix())
}

func TestBech32mCodecRejectsInvalidInput(t *testing.T) {
	codec := NewBech32mCodec("tnam")
	cases := map[string]string{
		"empty":           "",
		"not bech32":      "not-an-address",
		"bad checksum":    "tnam1qxvg64psvhwumv3mwrrjfcz0h3t3274hwggyzcex",
		"legacy bech32":   "a12uel5l",
		"foreign prefix":  "abcdef1l7aum6echk45nj3s0wdvt2fg8x9yrzpqzd3ryx",
		"truncated value": "tnam1",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.DecodeAddress(raw)
			require.Error(t, err)
		})
	}
}

func TestAmountCanonicalString(t *testing.T) {
	amount, err := ParseAmount(" 000123 ")
	require.NoError(t, err)
	require.Equal(t, "123", amount.String())

	large := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	require.Equal(t, large.Dec(), NewAmount(large).String())
	require.Equal(t, "0", Amount{}.String())
	require.True(t, Amount{}.IsZero())

	_, err = ParseAmount("-5")
	require.Error(t, err)
	_, err = ParseAmount("")
	require.Error(t, err)
}

func TestValidatorStateNamesAreTotal(t *testing.T) {
	seen := map[string]bool{}
	for _, state := range ValidatorStates() {
		require.True(t, state.Valid())
		name := state.String()
		require.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
		parsed, err := ParseValidatorState(name)
		require.NoError(t, err)
		require.Equal(t, state, parsed)
	}
	require.Len(t, seen, 5)

	_, err := ParseValidatorState("Retired")
	require.Error(t, err)
	require.False(t, ValidatorState(0).Valid())
}

func TestQueryErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewQueryError("shell_epoch", cause)
	require.True(t, IsQueryError(err))
	require.ErrorIs(t, err, cause)
	require.Equal(t, "query shell_epoch: connection refused", err.Error())

	again := NewQueryError("other", err)
	require.Same(t, err, again)
	require.Nil(t, NewQueryError("noop", nil))
	require.False(t, IsQueryError(cause))
}
