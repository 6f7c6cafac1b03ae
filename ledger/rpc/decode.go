package rpc

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"ledgergate/ledger"
)

// scalar returns the textual form of a string or number without the float
// round trip gjson applies to large numbers.
func scalar(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return r.Raw
	default:
		return ""
	}
}

func optionalString(r gjson.Result) *string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	value := r.String()
	return &value
}

func decodeUint(r gjson.Result, field string) (uint64, error) {
	text := scalar(r)
	if text == "" {
		return 0, fmt.Errorf("%s: expected unsigned integer, got %s", field, r.Type)
	}
	value, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return value, nil
}

func decodeAmount(r gjson.Result) (ledger.Amount, error) {
	text := scalar(r)
	if text == "" {
		return ledger.Amount{}, fmt.Errorf("expected amount, got %s", r.Type)
	}
	return ledger.ParseAmount(text)
}

// decodeVariant reads an enum value encoded either as a bare string or as an
// externally tagged object such as {"PGFSteward": {...}}.
func decodeVariant(r gjson.Result) (string, error) {
	switch {
	case r.Type == gjson.String:
		return r.Str, nil
	case r.IsObject():
		var name string
		count := 0
		r.ForEach(func(key, _ gjson.Result) bool {
			name = key.String()
			count++
			return true
		})
		if count != 1 {
			return "", fmt.Errorf("expected single-key variant object, got %d keys", count)
		}
		return name, nil
	default:
		return "", fmt.Errorf("expected variant, got %s", r.Type)
	}
}

func (c *Client) decodeAddress(r gjson.Result, field string) (ledger.Address, error) {
	if r.Type != gjson.String {
		return ledger.Address{}, fmt.Errorf("%s: expected address string, got %s", field, r.Type)
	}
	addr, err := c.codec.DecodeAddress(r.Str)
	if err != nil {
		return ledger.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func (c *Client) decodeAddresses(r gjson.Result) ([]ledger.Address, error) {
	if r.Type == gjson.Null {
		return []ledger.Address{}, nil
	}
	if !r.IsArray() {
		return nil, fmt.Errorf("expected address array, got %s", r.Type)
	}
	items := r.Array()
	out := make([]ledger.Address, 0, len(items))
	for i, item := range items {
		addr, err := c.decodeAddress(item, fmt.Sprintf("validators[%d]", i))
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func decodeEvent(r gjson.Result) (ledger.Event, error) {
	if !r.IsObject() {
		return ledger.Event{}, fmt.Errorf("expected event object, got %s", r.Type)
	}
	eventType, err := decodeVariant(r.Get("event_type"))
	if err != nil {
		return ledger.Event{}, fmt.Errorf("event_type: %w", err)
	}
	levelName, err := decodeVariant(r.Get("level"))
	if err != nil {
		return ledger.Event{}, fmt.Errorf("level: %w", err)
	}
	level, err := ledger.ParseEventLevel(levelName)
	if err != nil {
		return ledger.Event{}, err
	}
	attrs := map[string]string{}
	raw := r.Get("attributes")
	switch {
	case raw.IsObject():
		raw.ForEach(func(key, value gjson.Result) bool {
			attrs[key.String()] = value.String()
			return true
		})
	case raw.Exists() && raw.Type != gjson.Null:
		return ledger.Event{}, fmt.Errorf("attributes: expected object, got %s", raw.Type)
	}
	return ledger.Event{EventType: eventType, Level: level, Attributes: attrs}, nil
}

func decodeGovernanceParameters(r gjson.Result) (ledger.GovernanceParameters, error) {
	if !r.IsObject() {
		return ledger.GovernanceParameters{}, fmt.Errorf("expected parameters object, got %s", r.Type)
	}
	fund, err := decodeAmount(r.Get("min_proposal_fund"))
	if err != nil {
		return ledger.GovernanceParameters{}, fmt.Errorf("min_proposal_fund: %w", err)
	}
	out := ledger.GovernanceParameters{MinProposalFund: fund}
	fields := []struct {
		name string
		dst  *uint64
	}{
		{"max_proposal_code_size", &out.MaxProposalCodeSize},
		{"min_proposal_voting_period", &out.MinProposalVotingPeriod},
		{"max_proposal_period", &out.MaxProposalPeriod},
		{"max_proposal_content_size", &out.MaxProposalContentSize},
		{"min_proposal_grace_epochs", &out.MinProposalGraceEpochs},
	}
	for _, field := range fields {
		value, err := decodeUint(r.Get(field.name), field.name)
		if err != nil {
			return ledger.GovernanceParameters{}, err
		}
		*field.dst = value
	}
	return out, nil
}

func (c *Client) decodeProposal(r gjson.Result) (*ledger.Proposal, error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("expected proposal object, got %s", r.Type)
	}
	id, err := decodeUint(r.Get("id"), "id")
	if err != nil {
		return nil, err
	}
	author, err := c.decodeAddress(r.Get("author"), "author")
	if err != nil {
		return nil, err
	}
	kindName, err := decodeVariant(r.Get("type"))
	if err != nil {
		return nil, fmt.Errorf("type: %w", err)
	}
	kind, err := ledger.ParseProposalKind(kindName)
	if err != nil {
		return nil, err
	}
	epochs := make([]uint64, 3)
	for i, name := range []string{"voting_start_epoch", "voting_end_epoch", "grace_epoch"} {
		value, err := decodeUint(r.Get(name), name)
		if err != nil {
			return nil, err
		}
		epochs[i] = value
	}
	content := map[string]string{}
	if raw := r.Get("content"); raw.IsObject() {
		raw.ForEach(func(key, value gjson.Result) bool {
			content[key.String()] = value.String()
			return true
		})
	}
	return &ledger.Proposal{
		ID:               id,
		Content:          content,
		Author:           author,
		Kind:             kind,
		VotingStartEpoch: ledger.Epoch(epochs[0]),
		VotingEndEpoch:   ledger.Epoch(epochs[1]),
		GraceEpoch:       ledger.Epoch(epochs[2]),
	}, nil
}

var errNotArray = errors.New("expected vote array")

func (c *Client) decodeVotes(r gjson.Result) ([]ledger.ProposalVote, error) {
	if r.Type == gjson.Null {
		return []ledger.ProposalVote{}, nil
	}
	if !r.IsArray() {
		return nil, fmt.Errorf("%w, got %s", errNotArray, r.Type)
	}
	items := r.Array()
	out := make([]ledger.ProposalVote, 0, len(items))
	for i, item := range items {
		validator, err := c.decodeAddress(item.Get("validator"), fmt.Sprintf("votes[%d].validator", i))
		if err != nil {
			return nil, err
		}
		delegator, err := c.decodeAddress(item.Get("delegator"), fmt.Sprintf("votes[%d].delegator", i))
		if err != nil {
			return nil, err
		}
		choiceName, err := decodeVariant(item.Get("data"))
		if err != nil {
			return nil, fmt.Errorf("votes[%d].data: %w", i, err)
		}
		choice, err := ledger.ParseVoteChoice(choiceName)
		if err != nil {
			return nil, fmt.Errorf("votes[%d]: %w", i, err)
		}
		out = append(out, ledger.ProposalVote{Validator: validator, Delegator: delegator, Data: choice})
	}
	return out, nil
}
