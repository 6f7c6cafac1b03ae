// Package projection maps ledger domain values onto their JSON wire shapes.
//
// Every function here is pure. Enumerations render as fixed names, numbers
// and amounts render as base-10 strings, absent textual metadata renders as
// an empty string and collections render as arrays in the order the ledger
// returned them, never as null.
package projection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"ledgergate/ledger"
)

type EpochView struct {
	Epoch string `json:"epoch"`
}

func Epoch(e ledger.Epoch) EpochView {
	return EpochView{Epoch: e.String()}
}

func Validators(addrs []ledger.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr.String())
	}
	return out
}

type StateView struct {
	State string `json:"state"`
}

// variant is satisfied by the ledger enums. Their String names are the wire
// names, so Valid guards against rendering the fallback form.
type variant interface {
	Valid() bool
	String() string
}

func wireName[T variant](kind string, v T) (string, error) {
	if !v.Valid() {
		return "", fmt.Errorf("unknown %s %v", kind, v)
	}
	return v.String(), nil
}

// StateName maps every ValidatorState variant onto its wire name.
func StateName(s ledger.ValidatorState) (string, error) {
	return wireName("validator state", s)
}

func ValidatorState(s ledger.ValidatorState) (StateView, error) {
	name, err := StateName(s)
	if err != nil {
		return StateView{}, err
	}
	return StateView{State: name}, nil
}

// Amount renders a token amount as plain text.
func Amount(a ledger.Amount) string {
	return a.String()
}

type MetadataFields struct {
	Email         string `json:"email"`
	Description   string `json:"description"`
	Website       string `json:"website"`
	DiscordHandle string `json:"discord_handle"`
	Avatar        string `json:"avatar"`
}

// CommissionView is empty, and renders as {}, when the validator has no
// recorded commission.
type CommissionView struct {
	Rate    string `json:"rate,omitempty"`
	MaxRate string `json:"max_rate,omitempty"`
}

type MetadataView struct {
	Metadata       MetadataFields `json:"metadata"`
	CommissionPair CommissionView `json:"commission_pair"`
}

func ValidatorMetadata(meta *ledger.ValidatorMetadata, commission *ledger.CommissionPair) MetadataView {
	var view MetadataView
	if meta != nil {
		view.Metadata = MetadataFields{
			Email:         meta.Email,
			Description:   orEmpty(meta.Description),
			Website:       orEmpty(meta.Website),
			DiscordHandle: orEmpty(meta.DiscordHandle),
			Avatar:        orEmpty(meta.Avatar),
		}
	}
	if commission != nil {
		view.CommissionPair = CommissionView{
			Rate:    commission.CommissionRate,
			MaxRate: commission.MaxCommissionChangePerEpoch,
		}
	}
	return view
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// TxResult validates and compacts the node's raw transaction result.
func TxResult(raw ledger.RawTxResult) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty transaction result")
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("transaction result is not valid JSON")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("compact transaction result: %w", err)
	}
	return buf.Bytes(), nil
}

type EventView struct {
	EventType  string            `json:"event_type"`
	Level      string            `json:"level"`
	Attributes map[string]string `json:"attributes"`
}

func Event(ev ledger.Event) (EventView, error) {
	level, err := wireName("event level", ev.Level)
	if err != nil {
		return EventView{}, err
	}
	attrs := make(map[string]string, len(ev.Attributes))
	for key, value := range ev.Attributes {
		attrs[key] = value
	}
	return EventView{EventType: ev.EventType, Level: level, Attributes: attrs}, nil
}


type GovernanceParametersView struct {
	MinProposalFund         string `json:"min_proposal_fund"`
	MaxProposalCodeSize     string `json:"max_proposal_code_size"`
	MinProposalVotingPeriod string `json:"min_proposal_voting_period"`
	MaxProposalPeriod       string `json:"max_proposal_period"`
	MaxProposalContentSize  string `json:"max_proposal_content_size"`
	MinProposalGraceEpochs  string `json:"min_proposal_grace_epochs"`
}

func GovernanceParameters(p ledger.GovernanceParameters) GovernanceParametersView {
	return GovernanceParametersView{
		MinProposalFund:         p.MinProposalFund.String(),
		MaxProposalCodeSize:     uintString(p.MaxProposalCodeSize),
		MinProposalVotingPeriod: uintString(p.MinProposalVotingPeriod),
		MaxProposalPeriod:       uintString(p.MaxProposalPeriod),
		MaxProposalContentSize:  uintString(p.MaxProposalContentSize),
		MinProposalGraceEpochs:  uintString(p.MinProposalGraceEpochs),
	}
}

type ProposalView struct {
	ID               string            `json:"id"`
	Content          map[string]string `json:"content"`
	Author           string            `json:"author"`
	Type             string            `json:"type"`
	VotingStartEpoch string            `json:"voting_start_epoch"`
	VotingEndEpoch   string            `json:"voting_end_epoch"`
	GraceEpoch       string            `json:"grace_epoch"`
}

func Proposal(p ledger.Proposal) (ProposalView, error) {
	kind, err := wireName("proposal type", p.Kind)
	if err != nil {
		return ProposalView{}, err
	}
	content := make(map[string]string, len(p.Content))
	for key, value := range p.Content {
		content[key] = value
	}
	return ProposalView{
		ID:               uintString(p.ID),
		Content:          content,
		Author:           p.Author.String(),
		Type:             kind,
		VotingStartEpoch: p.VotingStartEpoch.String(),
		VotingEndEpoch:   p.VotingEndEpoch.String(),
		GraceEpoch:       p.GraceEpoch.String(),
	}, nil
}


type VoteView struct {
	Validator string `json:"validator"`
	Delegator string `json:"delegator"`
	Data      string `json:"data"`
}

func Votes(votes []ledger.ProposalVote) ([]VoteView, error) {
	out := make([]VoteView, 0, len(votes))
	for i, vote := range votes {
		choice, err := wireName("vote", vote.Data)
		if err != nil {
			return nil, fmt.Errorf("vote %d: %w", i, err)
		}
		out = append(out, VoteView{
			Validator: vote.Validator.String(),
			Delegator: vote.Delegator.String(),
			Data:      choice,
		})
	}
	return out, nil
}


// ProposalID renders the result of the legacy proposal scan.
func ProposalID(id uint64) string {
	return uintString(id)
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
