// Package rpc implements ledger.Service over the node's JSON-RPC query
// endpoint.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ledgergate/ledger"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 16 << 20 // 16 MiB
	errorBodyPreview = 512
)

// Method names understood by the node's query endpoint.
const (
	MethodEpoch             = "shell_epoch"
	MethodValidators        = "pos_validatorAddresses"
	MethodValidatorStake    = "pos_validatorStake"
	MethodValidatorState    = "pos_validatorState"
	MethodValidatorMetadata = "pos_validatorMetadata"
	MethodTotalStake        = "pos_totalStake"
	MethodTokenBalance      = "token_balance"
	MethodTxResponse        = "tx_response"
	MethodTxStatus          = "tx_status"
	MethodTxEvents          = "tx_events"
	MethodGovParameters     = "gov_parameters"
	MethodProposal          = "gov_proposal"
	MethodProposalVotes     = "gov_proposalVotes"
)

type Config struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Codec      ledger.AddressCodec
	Observer   ledger.QueryObserver
}

// Client is safe for concurrent use; the underlying http.Client owns the
// connection pool.
type Client struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	codec    ledger.AddressCodec
	observer ledger.QueryObserver
}

var _ ledger.Service = (*Client)(nil)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int64
	Message string
	Data    string
}

func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func New(cfg Config) (*Client, error) {
	endpoint, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	codec := cfg.Codec
	if codec == nil {
		codec = ledger.NewBech32mCodec(ledger.DefaultAddressPrefix)
	}
	return &Client{endpoint: endpoint, client: httpClient, timeout: timeout, codec: codec, observer: cfg.Observer}, nil
}

func normalizeEndpoint(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("rpc endpoint is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse rpc endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("rpc endpoint %q has no host", raw)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	case "tcp":
		parsed.Scheme = "http"
	default:
		return "", fmt.Errorf("unsupported rpc endpoint scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// observe reports the final error of a query method. It is deferred with a
// pointer to the method's named error so decode failures and absence errors
// added after the round trip are counted too.
func (c *Client) observe(method string, start time.Time, err *error) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveQuery(method, time.Since(start), *err)
}

// call performs one JSON-RPC round trip and returns the result member. A
// JSON null result is returned as-is so callers can treat it as absence.
func (c *Client) call(ctx context.Context, method string, params ...any) (gjson.Result, error) {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encode rpc request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("perform rpc request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read rpc response: %w", err)
	}
	if len(data) > maxResponseBytes {
		return gjson.Result{}, fmt.Errorf("rpc response exceeds %d bytes", maxResponseBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, fmt.Errorf("rpc status %d: %s", resp.StatusCode, preview(data))
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("decode rpc response: invalid JSON: %s", preview(data))
	}
	envelope := gjson.ParseBytes(data)
	if rpcErr := envelope.Get("error"); rpcErr.Exists() && rpcErr.Type != gjson.Null {
		return gjson.Result{}, &Error{
			Code:    rpcErr.Get("code").Int(),
			Message: rpcErr.Get("message").String(),
			Data:    rpcErr.Get("data").String(),
		}
	}
	result := envelope.Get("result")
	if !result.Exists() {
		return gjson.Result{}, errors.New("decode rpc response: missing result")
	}
	return result, nil
}

func preview(data []byte) string {
	text := strings.TrimSpace(string(data))
	if len(text) > errorBodyPreview {
		text = text[:errorBodyPreview] + "..."
	}
	return text
}

func (c *Client) CurrentEpoch(ctx context.Context) (_ ledger.Epoch, err error) {
	defer c.observe(MethodEpoch, time.Now(), &err)
	result, err := c.call(ctx, MethodEpoch)
	if err != nil {
		return 0, ledger.NewQueryError(MethodEpoch, err)
	}
	value, err := decodeUint(result, "epoch")
	if err != nil {
		return 0, ledger.NewQueryError(MethodEpoch, err)
	}
	return ledger.Epoch(value), nil
}

func (c *Client) AllValidators(ctx context.Context, epoch ledger.Epoch) (_ []ledger.Address, err error) {
	defer c.observe(MethodValidators, time.Now(), &err)
	result, err := c.call(ctx, MethodValidators, epoch.String())
	if err != nil {
		return nil, ledger.NewQueryError(MethodValidators, err)
	}
	addrs, err := c.decodeAddresses(result)
	if err != nil {
		return nil, ledger.NewQueryError(MethodValidators, err)
	}
	return addrs, nil
}

func (c *Client) ValidatorStake(ctx context.Context, epoch ledger.Epoch, validator ledger.Address) (ledger.Amount, error) {
	return c.amount(ctx, MethodValidatorStake, epoch.String(), validator.String())
}

func (c *Client) ValidatorState(ctx context.Context, validator ledger.Address, epoch ledger.Epoch) (_ *ledger.ValidatorState, err error) {
	defer c.observe(MethodValidatorState, time.Now(), &err)
	result, err := c.call(ctx, MethodValidatorState, validator.String(), epoch.String())
	if err != nil {
		return nil, ledger.NewQueryError(MethodValidatorState, err)
	}
	if result.Type == gjson.Null {
		return nil, nil
	}
	name, err := decodeVariant(result)
	if err != nil {
		return nil, ledger.NewQueryError(MethodValidatorState, err)
	}
	state, err := ledger.ParseValidatorState(name)
	if err != nil {
		return nil, ledger.NewQueryError(MethodValidatorState, err)
	}
	return &state, nil
}

func (c *Client) ValidatorMetadata(ctx context.Context, validator ledger.Address, epoch ledger.Epoch) (_ *ledger.ValidatorMetadata, _ *ledger.CommissionPair, err error) {
	defer c.observe(MethodValidatorMetadata, time.Now(), &err)
	result, err := c.call(ctx, MethodValidatorMetadata, validator.String(), epoch.String())
	if err != nil {
		return nil, nil, ledger.NewQueryError(MethodValidatorMetadata, err)
	}
	if result.Type == gjson.Null {
		return nil, nil, nil
	}
	if !result.IsObject() {
		return nil, nil, ledger.NewQueryError(MethodValidatorMetadata, fmt.Errorf("expected object, got %s", result.Type))
	}
	var meta *ledger.ValidatorMetadata
	if raw := result.Get("metadata"); raw.IsObject() {
		meta = &ledger.ValidatorMetadata{
			Email:         raw.Get("email").String(),
			Description:   optionalString(raw.Get("description")),
			Website:       optionalString(raw.Get("website")),
			DiscordHandle: optionalString(raw.Get("discord_handle")),
			Avatar:        optionalString(raw.Get("avatar")),
		}
	}
	var commission *ledger.CommissionPair
	if raw := result.Get("commission_pair"); raw.IsObject() {
		commission = &ledger.CommissionPair{
			CommissionRate:              scalar(raw.Get("commission_rate")),
			MaxCommissionChangePerEpoch: scalar(raw.Get("max_commission_change_per_epoch")),
		}
	}
	return meta, commission, nil
}

func (c *Client) TotalStaked(ctx context.Context, epoch ledger.Epoch) (ledger.Amount, error) {
	return c.amount(ctx, MethodTotalStake, epoch.String())
}

func (c *Client) TokenBalance(ctx context.Context, token, owner ledger.Address) (ledger.Amount, error) {
	return c.amount(ctx, MethodTokenBalance, token.String(), owner.String())
}

func (c *Client) amount(ctx context.Context, method string, params ...any) (_ ledger.Amount, err error) {
	defer c.observe(method, time.Now(), &err)
	result, err := c.call(ctx, method, params...)
	if err != nil {
		return ledger.Amount{}, ledger.NewQueryError(method, err)
	}
	amount, err := decodeAmount(result)
	if err != nil {
		return ledger.Amount{}, ledger.NewQueryError(method, err)
	}
	return amount, nil
}

func (c *Client) TxResponse(ctx context.Context, hash string) (_ ledger.RawTxResult, err error) {
	defer c.observe(MethodTxResponse, time.Now(), &err)
	result, err := c.call(ctx, MethodTxResponse, hash)
	if err != nil {
		return nil, ledger.NewQueryError(MethodTxResponse, err)
	}
	if result.Type == gjson.Null {
		return nil, ledger.NewQueryError(MethodTxResponse, ledger.ErrTxNotFound)
	}
	return ledger.RawTxResult(result.Raw), nil
}

func (c *Client) TxStatus(ctx context.Context, hash string) (_ ledger.Event, err error) {
	defer c.observe(MethodTxStatus, time.Now(), &err)
	result, err := c.call(ctx, MethodTxStatus, hash)
	if err != nil {
		return ledger.Event{}, ledger.NewQueryError(MethodTxStatus, err)
	}
	if result.Type == gjson.Null {
		return ledger.Event{}, ledger.NewQueryError(MethodTxStatus, ledger.ErrTxNotFound)
	}
	event, err := decodeEvent(result)
	if err != nil {
		return ledger.Event{}, ledger.NewQueryError(MethodTxStatus, err)
	}
	return event, nil
}

func (c *Client) TxEvents(ctx context.Context, hash string) (_ *ledger.Event, err error) {
	defer c.observe(MethodTxEvents, time.Now(), &err)
	result, err := c.call(ctx, MethodTxEvents, hash)
	if err != nil {
		return nil, ledger.NewQueryError(MethodTxEvents, err)
	}
	if result.Type == gjson.Null {
		return nil, nil
	}
	event, err := decodeEvent(result)
	if err != nil {
		return nil, ledger.NewQueryError(MethodTxEvents, err)
	}
	return &event, nil
}

func (c *Client) GovernanceParameters(ctx context.Context) (_ ledger.GovernanceParameters, err error) {
	defer c.observe(MethodGovParameters, time.Now(), &err)
	result, err := c.call(ctx, MethodGovParameters)
	if err != nil {
		return ledger.GovernanceParameters{}, ledger.NewQueryError(MethodGovParameters, err)
	}
	params, err := decodeGovernanceParameters(result)
	if err != nil {
		return ledger.GovernanceParameters{}, ledger.NewQueryError(MethodGovParameters, err)
	}
	return params, nil
}

func (c *Client) ProposalByID(ctx context.Context, id uint64) (_ *ledger.Proposal, err error) {
	defer c.observe(MethodProposal, time.Now(), &err)
	result, err := c.call(ctx, MethodProposal, fmt.Sprint(id))
	if err != nil {
		return nil, ledger.NewQueryError(MethodProposal, err)
	}
	if result.Type == gjson.Null {
		return nil, nil
	}
	proposal, err := c.decodeProposal(result)
	if err != nil {
		return nil, ledger.NewQueryError(MethodProposal, err)
	}
	return proposal, nil
}

func (c *Client) ProposalVotes(ctx context.Context, id uint64) (_ []ledger.ProposalVote, err error) {
	defer c.observe(MethodProposalVotes, time.Now(), &err)
	result, err := c.call(ctx, MethodProposalVotes, fmt.Sprint(id))
	if err != nil {
		return nil, ledger.NewQueryError(MethodProposalVotes, err)
	}
	votes, err := c.decodeVotes(result)
	if err != nil {
		return nil, ledger.NewQueryError(MethodProposalVotes, err)
	}
	return votes, nil
}
