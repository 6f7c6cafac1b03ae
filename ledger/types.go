package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

// Epoch identifies a consensus epoch.
type Epoch uint64

func (e Epoch) String() string {
	return strconv.FormatUint(uint64(e), 10)
}

// Amount is a non-negative token amount in base units.
type Amount struct {
	v uint256.Int
}

func NewAmount(v *uint256.Int) Amount {
	var a Amount
	if v != nil {
		a.v.Set(v)
	}
	return a
}

func AmountFromUint64(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// ParseAmount decodes a base-10 amount string.
func ParseAmount(s string) (Amount, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Amount{}, fmt.Errorf("amount is empty")
	}
	v, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return NewAmount(v), nil
}

// String returns the canonical base-10 representation.
func (a Amount) String() string {
	return a.v.Dec()
}

func (a Amount) Int() *uint256.Int {
	return new(uint256.Int).Set(&a.v)
}

func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// ValidatorState is the proof-of-stake state of a validator at an epoch.
type ValidatorState uint8

const (
	ValidatorStateConsensus ValidatorState = iota + 1
	ValidatorStateBelowCapacity
	ValidatorStateBelowThreshold
	ValidatorStateInactive
	ValidatorStateJailed
)

var validatorStateNames = map[ValidatorState]string{
	ValidatorStateConsensus:      "Consensus",
	ValidatorStateBelowCapacity:  "BelowCapacity",
	ValidatorStateBelowThreshold: "BelowThreshold",
	ValidatorStateInactive:       "Inactive",
	ValidatorStateJailed:         "Jailed",
}

// ValidatorStates lists every defined state in declaration order.
func ValidatorStates() []ValidatorState {
	return []ValidatorState{
		ValidatorStateConsensus,
		ValidatorStateBelowCapacity,
		ValidatorStateBelowThreshold,
		ValidatorStateInactive,
		ValidatorStateJailed,
	}
}

func (s ValidatorState) Valid() bool {
	_, ok := validatorStateNames[s]
	return ok
}

func (s ValidatorState) String() string {
	if name, ok := validatorStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ValidatorState(%d)", uint8(s))
}

func ParseValidatorState(name string) (ValidatorState, error) {
	trimmed := strings.TrimSpace(name)
	for state, candidate := range validatorStateNames {
		if strings.EqualFold(candidate, trimmed) {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown validator state %q", name)
}

// ValidatorMetadata is the self-declared profile of a validator. Only the
// email is mandatory on chain.
type ValidatorMetadata struct {
	Email         string
	Description   *string
	Website       *string
	DiscordHandle *string
	Avatar        *string
}

// CommissionPair holds a validator's commission rate and the maximum change
// permitted per epoch, both as decimal strings.
type CommissionPair struct {
	CommissionRate              string
	MaxCommissionChangePerEpoch string
}

type GovernanceParameters struct {
	MinProposalFund         Amount
	MaxProposalCodeSize     uint64
	MinProposalVotingPeriod uint64
	MaxProposalPeriod       uint64
	MaxProposalContentSize  uint64
	MinProposalGraceEpochs  uint64
}

// ProposalKind is the governance proposal type.
type ProposalKind uint8

const (
	ProposalKindDefault ProposalKind = iota + 1
	ProposalKindDefaultWithWasm
	ProposalKindPGFSteward
	ProposalKindPGFPayment
)

var proposalKindNames = map[ProposalKind]string{
	ProposalKindDefault:         "Default",
	ProposalKindDefaultWithWasm: "DefaultWithWasm",
	ProposalKindPGFSteward:      "PGFSteward",
	ProposalKindPGFPayment:      "PGFPayment",
}

func (k ProposalKind) Valid() bool {
	_, ok := proposalKindNames[k]
	return ok
}

func (k ProposalKind) String() string {
	if name, ok := proposalKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ProposalKind(%d)", uint8(k))
}

func ParseProposalKind(name string) (ProposalKind, error) {
	trimmed := strings.TrimSpace(name)
	for kind, candidate := range proposalKindNames {
		if strings.EqualFold(candidate, trimmed) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown proposal type %q", name)
}

type Proposal struct {
	ID               uint64
	Content          map[string]string
	Author           Address
	Kind             ProposalKind
	VotingStartEpoch Epoch
	VotingEndEpoch   Epoch
	GraceEpoch       Epoch
}

// VoteChoice is the ballot cast in a ProposalVote.
type VoteChoice uint8

const (
	VoteYay VoteChoice = iota + 1
	VoteNay
	VoteAbstain
)

var voteChoiceNames = map[VoteChoice]string{
	VoteYay:     "Yay",
	VoteNay:     "Nay",
	VoteAbstain: "Abstain",
}

func (v VoteChoice) Valid() bool {
	_, ok := voteChoiceNames[v]
	return ok
}

func (v VoteChoice) String() string {
	if name, ok := voteChoiceNames[v]; ok {
		return name
	}
	return fmt.Sprintf("VoteChoice(%d)", uint8(v))
}

func ParseVoteChoice(name string) (VoteChoice, error) {
	trimmed := strings.TrimSpace(name)
	for choice, candidate := range voteChoiceNames {
		if strings.EqualFold(candidate, trimmed) {
			return choice, nil
		}
	}
	return 0, fmt.Errorf("unknown vote %q", name)
}

type ProposalVote struct {
	Validator Address
	Delegator Address
	Data      VoteChoice
}

// EventLevel is the scope an event was emitted at.
type EventLevel uint8

const (
	EventLevelBlock EventLevel = iota + 1
	EventLevelTx
)

var eventLevelNames = map[EventLevel]string{
	EventLevelBlock: "Block",
	EventLevelTx:    "Tx",
}

func (l EventLevel) Valid() bool {
	_, ok := eventLevelNames[l]
	return ok
}

func (l EventLevel) String() string {
	if name, ok := eventLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("EventLevel(%d)", uint8(l))
}

func ParseEventLevel(name string) (EventLevel, error) {
	trimmed := strings.TrimSpace(name)
	for level, candidate := range eventLevelNames {
		if strings.EqualFold(candidate, trimmed) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown event level %q", name)
}

// Event is a ledger event attached to a transaction.
type Event struct {
	EventType  string
	Level      EventLevel
	Attributes map[string]string
}

// RawTxResult is the node's transaction result, passed through untouched.
type RawTxResult json.RawMessage
