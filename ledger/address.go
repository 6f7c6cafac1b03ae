package ledger

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// DefaultAddressPrefix is the human-readable part of ledger addresses.
const DefaultAddressPrefix = "tnam"

// Address is a decoded chain address. The zero value is not a valid address.
type Address struct {
	prefix  string
	payload []byte
	encoded string
}

// NewAddress builds an Address from its decoded parts. encoded must be the
// canonical string form of prefix and payload.
func NewAddress(prefix string, payload []byte, encoded string) Address {
	return Address{
		prefix:  prefix,
		payload: append([]byte(nil), payload...),
		encoded: encoded,
	}
}

func (a Address) String() string {
	return a.encoded
}

func (a Address) Prefix() string {
	return a.prefix
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a.payload...)
}

func (a Address) IsZero() bool {
	return a.encoded == ""
}

func (a Address) Equal(other Address) bool {
	return a.encoded == other.encoded && a.prefix == other.prefix && bytes.Equal(a.payload, other.payload)
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.encoded), nil
}

// AddressCodec decodes the string form of an address.
type AddressCodec interface {
	DecodeAddress(raw string) (Address, error)
}

// Bech32mCodec decodes bech32m addresses carrying a fixed prefix.
type Bech32mCodec struct {
	Prefix string
}

func NewBech32mCodec(prefix string) Bech32mCodec {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultAddressPrefix
	}
	return Bech32mCodec{Prefix: prefix}
}

func (c Bech32mCodec) DecodeAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Address{}, fmt.Errorf("address is empty")
	}
	hrp, data, version, err := bech32.DecodeGeneric(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32m string: %w", err)
	}
	if version != bech32.VersionM {
		return Address{}, fmt.Errorf("address %q is not bech32m encoded", raw)
	}
	if c.Prefix != "" && hrp != c.Prefix {
		return Address{}, fmt.Errorf("address prefix %q does not match %q", hrp, c.Prefix)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(payload) == 0 {
		return Address{}, fmt.Errorf("address %q has an empty payload", raw)
	}
	return NewAddress(hrp, payload, strings.ToLower(trimmed)), nil
}

// EncodeAddress renders prefix and payload in bech32m form.
func EncodeAddress(prefix string, payload []byte) (Address, error) {
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	encoded, err := bech32.EncodeM(prefix, conv)
	if err != nil {
		return Address{}, fmt.Errorf("encode address: %w", err)
	}
	return NewAddress(prefix, payload, encoded), nil
}
