// Package ledgertest provides an in-memory ledger.Service that records every
// query it receives.
package ledgertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"ledgergate/ledger"
)

// Call records a single query issued against the fake.
type Call struct {
	Method string
	Args   []string
}

// Service is a programmable ledger.Service. Each Func field, when set,
// answers the corresponding method; unset methods fail with a QueryError.
type Service struct {
	CurrentEpochFunc         func(ctx context.Context) (ledger.Epoch, error)
	AllValidatorsFunc        func(ctx context.Context, epoch ledger.Epoch) ([]ledger.Address, error)
	ValidatorStakeFunc       func(ctx context.Context, epoch ledger.Epoch, validator ledger.Address) (ledger.Amount, error)
	ValidatorStateFunc       func(ctx context.Context, validator ledger.Address, epoch ledger.Epoch) (*ledger.ValidatorState, error)
	ValidatorMetadataFunc    func(ctx context.Context, validator ledger.Address, epoch ledger.Epoch) (*ledger.ValidatorMetadata, *ledger.CommissionPair, error)
	TotalStakedFunc          func(ctx context.Context, epoch ledger.Epoch) (ledger.Amount, error)
	TokenBalanceFunc         func(ctx context.Context, token, owner ledger.Address) (ledger.Amount, error)
	TxResponseFunc           func(ctx context.Context, hash string) (ledger.RawTxResult, error)
	TxStatusFunc             func(ctx context.Context, hash string) (ledger.Event, error)
	TxEventsFunc             func(ctx context.Context, hash string) (*ledger.Event, error)
	GovernanceParametersFunc func(ctx context.Context) (ledger.GovernanceParameters, error)
	ProposalByIDFunc         func(ctx context.Context, id uint64) (*ledger.Proposal, error)
	ProposalVotesFunc        func(ctx context.Context, id uint64) ([]ledger.ProposalVote, error)

	mu    sync.Mutex
	calls []Call
}

var _ ledger.Service = (*Service)(nil)

func (s *Service) record(method string, args ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of the recorded queries in arrival order.
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Service) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func unconfigured(method string) error {
	return ledger.NewQueryError(method, fmt.Errorf("ledgertest: %s not configured", method))
}

func (s *Service) CurrentEpoch(ctx context.Context) (ledger.Epoch, error) {
	s.record("CurrentEpoch")
	if s.CurrentEpochFunc == nil {
		return 0, unconfigured("CurrentEpoch")
	}
	return s.CurrentEpochFunc(ctx)
}

func (s *Service) AllValidators(ctx context.Context, epoch ledger.Epoch) ([]ledger.Address, error) {
	s.record("AllValidators", epoch.String())
	if s.AllValidatorsFunc == nil {
		return nil, unconfigured("AllValidators")
	}
	return s.AllValidatorsFunc(ctx, epoch)
}

func (s *Service) ValidatorStake(ctx context.Context, epoch ledger.Epoch, validator ledger.Address) (ledger.Amount, error) {
	s.record("ValidatorStake", epoch.String(), validator.String())
	if s.ValidatorStakeFunc == nil {
		return ledger.Amount{}, unconfigured("ValidatorStake")
	}
	return s.ValidatorStakeFunc(ctx, epoch, validator)
}

func (s *Service) ValidatorState(ctx context.Context, validator ledger.Address, epoch ledger.Epoch) (*ledger.ValidatorState, error) {
	s.record("ValidatorState", validator.String(), epoch.String())
	if s.ValidatorStateFunc == nil {
		return nil, unconfigured("ValidatorState")
	}
	return s.ValidatorStateFunc(ctx, validator, epoch)
}

func (s *Service) ValidatorMetadata(ctx context.Context, validator ledger.Address, epoch ledger.Epoch) (*ledger.ValidatorMetadata, *ledger.CommissionPair, error) {
	s.record("ValidatorMetadata", validator.String(), epoch.String())
	if s.ValidatorMetadataFunc == nil {
		return nil, nil, unconfigured("ValidatorMetadata")
	}
	return s.ValidatorMetadataFunc(ctx, validator, epoch)
}

func (s *Service) TotalStaked(ctx context.Context, epoch ledger.Epoch) (ledger.Amount, error) {
	s.record("TotalStaked", epoch.String())
	if s.TotalStakedFunc == nil {
		return ledger.Amount{}, unconfigured("TotalStaked")
	}
	return s.TotalStakedFunc(ctx, epoch)
}

func (s *Service) TokenBalance(ctx context.Context, token, owner ledger.Address) (ledger.Amount, error) {
	s.record("TokenBalance", token.String(), owner.String())
	if s.TokenBalanceFunc == nil {
		return ledger.Amount{}, unconfigured("TokenBalance")
	}
	return s.TokenBalanceFunc(ctx, token, owner)
}

func (s *Service) TxResponse(ctx context.Context, hash string) (ledger.RawTxResult, error) {
	s.record("TxResponse", hash)
	if s.TxResponseFunc == nil {
		return nil, unconfigured("TxResponse")
	}
	return s.TxResponseFunc(ctx, hash)
}

func (s *Service) TxStatus(ctx context.Context, hash string) (ledger.Event, error) {
	s.record("TxStatus", hash)
	if s.TxStatusFunc == nil {
		return ledger.Event{}, unconfigured("TxStatus")
	}
	return s.TxStatusFunc(ctx, hash)
}

func (s *Service) TxEvents(ctx context.Context, hash string) (*ledger.Event, error) {
	s.record("TxEvents", hash)
	if s.TxEventsFunc == nil {
		return nil, unconfigured("TxEvents")
	}
	return s.TxEventsFunc(ctx, hash)
}

func (s *Service) GovernanceParameters(ctx context.Context) (ledger.GovernanceParameters, error) {
	s.record("GovernanceParameters")
	if s.GovernanceParametersFunc == nil {
		return ledger.GovernanceParameters{}, unconfigured("GovernanceParameters")
	}
	return s.GovernanceParametersFunc(ctx)
}

func (s *Service) ProposalByID(ctx context.Context, id uint64) (*ledger.Proposal, error) {
	s.record("ProposalByID", fmt.Sprint(id))
	if s.ProposalByIDFunc == nil {
		return nil, unconfigured("ProposalByID")
	}
	return s.ProposalByIDFunc(ctx, id)
}

func (s *Service) ProposalVotes(ctx context.Context, id uint64) ([]ledger.ProposalVote, error) {
	s.record("ProposalVotes", fmt.Sprint(id))
	if s.ProposalVotesFunc == nil {
		return nil, unconfigured("ProposalVotes")
	}
	return s.ProposalVotesFunc(ctx, id)
}

// PrefixCodec accepts any string beginning with Prefix followed by at least
// one character. It stands in for the bech32m codec in tests that use short
// literal addresses.
type PrefixCodec struct {
	Prefix string
}

func (c PrefixCodec) DecodeAddress(raw string) (ledger.Address, error) {
	trimmed := strings.TrimSpace(raw)
	prefix := c.Prefix
	if prefix == "" {
		prefix = ledger.DefaultAddressPrefix + "1"
	}
	if !strings.HasPrefix(trimmed, prefix) || len(trimmed) == len(prefix) {
		return ledger.Address{}, fmt.Errorf("address %q does not start with %q", raw, prefix)
	}
	hrp := strings.TrimSuffix(prefix, "1")
	return ledger.NewAddress(hrp, []byte(strings.TrimPrefix(trimmed, prefix)), trimmed), nil
}

// MustAddress decodes raw with PrefixCodec and panics on failure.
func MustAddress(raw string) ledger.Address {
	addr, err := PrefixCodec{}.DecodeAddress(raw)
	if err != nil {
		panic(err)
	}
	return addr
}

// ScannerFunc adapts a function to ledger.ProposalScanner.
type ScannerFunc func(ctx context.Context) (uint64, error)

func (f ScannerFunc) LatestProposalID(ctx context.Context) (uint64, error) {
	return f(ctx)
}
