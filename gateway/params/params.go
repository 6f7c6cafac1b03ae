// Package params turns raw path segments into typed ledger query arguments.
package params

import (
	"errors"
	"fmt"
	"strconv"

	"ledgergate/ledger"
)

type FailureKind int

const (
	// Malformed marks a segment that does not parse as its declared type.
	Malformed FailureKind = iota + 1
	// InvalidAddress marks a segment rejected by the address codec.
	InvalidAddress
)

func (k FailureKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case InvalidAddress:
		return "invalid_address"
	default:
		return "unknown"
	}
}

// ValidationError reports a path segment that failed validation. It is
// produced before any ledger query is issued.
type ValidationError struct {
	Kind  FailureKind
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case InvalidAddress:
		return fmt.Sprintf("invalid address %q for %s: %v", e.Value, e.Field, e.Err)
	default:
		return fmt.Sprintf("malformed %s %q: %v", e.Field, e.Value, e.Err)
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AsValidationError extracts a ValidationError from err's chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var errEmpty = errors.New("value is empty")

// Validator parses path parameters. It holds only the address codec and is
// safe for concurrent use.
type Validator struct {
	codec ledger.AddressCodec
}

func NewValidator(codec ledger.AddressCodec) *Validator {
	if codec == nil {
		codec = ledger.NewBech32mCodec(ledger.DefaultAddressPrefix)
	}
	return &Validator{codec: codec}
}

// Uint parses raw as a base-10 unsigned 64-bit integer.
func (v *Validator) Uint(field, raw string) (uint64, error) {
	if raw == "" {
		return 0, &ValidationError{Kind: Malformed, Field: field, Value: raw, Err: errEmpty}
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, &ValidationError{Kind: Malformed, Field: field, Value: raw, Err: err}
	}
	return value, nil
}

func (v *Validator) Epoch(field, raw string) (ledger.Epoch, error) {
	value, err := v.Uint(field, raw)
	if err != nil {
		return 0, err
	}
	return ledger.Epoch(value), nil
}

func (v *Validator) ProposalID(field, raw string) (uint64, error) {
	return v.Uint(field, raw)
}

func (v *Validator) Address(field, raw string) (ledger.Address, error) {
	addr, err := v.codec.DecodeAddress(raw)
	if err != nil {
		return ledger.Address{}, &ValidationError{Kind: InvalidAddress, Field: field, Value: raw, Err: err}
	}
	return addr, nil
}

// TxHash passes the hash through verbatim; the node decides whether it
// exists. Only the empty string is rejected.
func (v *Validator) TxHash(field, raw string) (string, error) {
	if raw == "" {
		return "", &ValidationError{Kind: Malformed, Field: field, Value: raw, Err: errEmpty}
	}
	return raw, nil
}
