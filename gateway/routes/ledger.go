package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ledgergate/gateway/middleware"
	"ledgergate/gateway/params"
	"ledgergate/gateway/projection"
	"ledgergate/ledger"
)

// ledgerRoutes holds the dependencies shared by every pipeline. It is
// immutable after construction.
type ledgerRoutes struct {
	ledger    ledger.Service
	scanner   ledger.ProposalScanner
	validator *params.Validator
	token     ledger.Address
	timeout   time.Duration
	logger    *slog.Logger
	obs       *middleware.Observability
}

func newLedgerRoutes(cfg Config) *ledgerRoutes {
	validator := cfg.Validator
	if validator == nil {
		validator = params.NewValidator(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &ledgerRoutes{
		ledger:    cfg.Ledger,
		scanner:   cfg.Scanner,
		validator: validator,
		token:     cfg.NativeToken,
		timeout:   timeout,
		logger:    logger,
		obs:       cfg.Observability,
	}
}

func (lr *ledgerRoutes) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, lr.timeout)
}

func (lr *ledgerRoutes) epoch(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	epoch, err := lr.ledger.CurrentEpoch(ctx)
	if err != nil {
		return ledger.NewQueryError("current_epoch", err)
	}
	return writeJSON(w, projection.Epoch(epoch))
}

func (lr *ledgerRoutes) validators(w http.ResponseWriter, r *http.Request) error {
	epoch, err := lr.validator.Epoch("epoch", chi.URLParam(r, "epoch"))
	if err != nil {
		return err
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	addrs, err := lr.ledger.AllValidators(ctx, epoch)
	if err != nil {
		return ledger.NewQueryError("all_validators", err)
	}
	return writeJSON(w, projection.Validators(addrs))
}

func (lr *ledgerRoutes) epochAndValidator(r *http.Request) (ledger.Epoch, ledger.Address, error) {
	epoch, err := lr.validator.Epoch("epoch", chi.URLParam(r, "epoch"))
	if err != nil {
		return 0, ledger.Address{}, err
	}
	validator, err := lr.validator.Address("validator", chi.URLParam(r, "validator"))
	if err != nil {
		return 0, ledger.Address{}, err
	}
	return epoch, validator, nil
}

func (lr *ledgerRoutes) validatorState(w http.ResponseWriter, r *http.Request) error {
	epoch, validator, err := lr.epochAndValidator(r)
	if err != nil {
		return err
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	state, err := lr.ledger.ValidatorState(ctx, validator, epoch)
	if err != nil {
		return ledger.NewQueryError("validator_state", err)
	}
	if state == nil {
		return errNotFound(msgValidatorStateNotFound)
	}
	view, err := projection.ValidatorState(*state)
	if err != nil {
		return err
	}
	return writeJSON(w, view)
}

func (lr *ledgerRoutes) validatorStake(w http.ResponseWriter, r *http.Request) error {
	epoch, validator, err := lr.epochAndValidator(r)
	if err != nil {
		return err
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	stake, err := lr.ledger.ValidatorStake(ctx, epoch, validator)
	if err != nil {
		return ledger.NewQueryError("validator_stake", err)
	}
	writeText(w, projection.Amount(stake))
	return nil
}

func (lr *ledgerRoutes) validatorMetadata(w http.ResponseWriter, r *http.Request) error {
	epoch, validator, err := lr.epochAndValidator(r)
	if err != nil {
		return err
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	meta, commission, err := lr.ledger.ValidatorMetadata(ctx, validator, epoch)
	if err != nil {
		return ledger.NewQueryError("validator_metadata", err)
	}
	return writeJSON(w, projection.ValidatorMetadata(meta, commission))
}

func (lr *ledgerRoutes) balance(w http.ResponseWriter, r *http.Request) error {
	owner, err := lr.validator.Address("owner", chi.URLParam(r, "owner"))
	if err != nil {
		return err
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	amount, err := lr.ledger.TokenBalance(ctx, lr.token, owner)
	if err != nil {
		return ledger.NewQueryError("token_balance", err)
	}
	writeText(w, projection.Amount(amount))
	return nil
}

func (lr *ledgerRoutes) txHash(r *http.Request) (string, error) {
	return lr.validator.TxHash("tx_hash", chi.URLParam(r, "tx_hash"))
}

func (lr *ledgerRoutes) txResponse(w http.ResponseWriter, r *http.Request) error {
	hash, err := lr.txHash(r)
	if err != nil {
		return err
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	raw, err := lr.ledger.TxResponse(ctx, hash)
	if err != nil {
		return ledger.NewQueryError("tx_response", err)
	}
	payload, err := projection.TxResult(raw)
	if err != nil {
		return ledger.NewQueryError("tx_response", err)
	}
	writeRawJSON(w, payload)
	return nil
}

func (lr *ledgerRoutes) txStatus(w http.ResponseWriter, r *http.Request) error {
	hash, err := lr.txHash(r)
	if err != nil {
		return err
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	event, err := lr.ledger.TxStatus(ctx, hash)
	if err != nil {
		return ledger.NewQueryError("tx_status", err)
	}
	view, err := projection.Event(event)
	if err != nil {
		return err
	}
	return writeJSON(w, view)
}

func (lr *ledgerRoutes) txEvents(w http.ResponseWriter, r *http.Request) error {
	hash, err := lr.txHash(r)
	if err != nil {
		return err
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	event, err := lr.ledger.TxEvents(ctx, hash)
	if err != nil {
		return ledger.NewQueryError("tx_events", err)
	}
	if event == nil {
		return errNotFound(msgEventNotFound)
	}
	view, err := projection.Event(*event)
	if err != nil {
		return err
	}
	return writeJSON(w, view)
}

func (lr *ledgerRoutes) governanceParameters(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	p, err := lr.ledger.GovernanceParameters(ctx)
	if err != nil {
		return ledger.NewQueryError("governance_parameters", err)
	}
	return writeJSON(w, projection.GovernanceParameters(p))
}

func (lr *ledgerRoutes) proposal(w http.ResponseWriter, r *http.Request) error {
	id, err := lr.validator.ProposalID("proposal_id", chi.URLParam(r, "proposal_id"))
	if err != nil {
		return err
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	p, err := lr.ledger.ProposalByID(ctx, id)
	if err != nil {
		return ledger.NewQueryError("proposal_by_id", err)
	}
	if p == nil {
		return errNotFound(msgProposalNotFound)
	}
	view, err := projection.Proposal(*p)
	if err != nil {
		return err
	}
	return writeJSON(w, view)
}

func (lr *ledgerRoutes) proposalVotes(w http.ResponseWriter, r *http.Request) error {
	id, err := lr.validator.ProposalID("proposal_id", chi.URLParam(r, "proposal_id"))
	if err != nil {
		return err
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	votes, err := lr.ledger.ProposalVotes(ctx, id)
	if err != nil {
		return ledger.NewQueryError("proposal_votes", err)
	}
	views, err := projection.Votes(votes)
	if err != nil {
		return err
	}
	return writeJSON(w, views)
}

func (lr *ledgerRoutes) totalStaked(w http.ResponseWriter, r *http.Request) error {
	epoch, err := lr.validator.Epoch("epoch", chi.URLParam(r, "epoch"))
	if err != nil {
		return err
	}
	ctx, cancel := lr.context(r.Context())
	defer cancel()
	amount, err := lr.ledger.TotalStaked(ctx, epoch)
	if err != nil {
		return ledger.NewQueryError("total_staked", err)
	}
	writeText(w, projection.Amount(amount))
	return nil
}

func (lr *ledgerRoutes) latestProposalID(w http.ResponseWriter, r *http.Request) error {
	if lr.scanner == nil {
		return ledger.NewQueryError("latest_proposal_id", errors.New("proposal scanner not configured"))
	}
	id, err := lr.scanner.LatestProposalID(r.Context())
	if err != nil {
		return ledger.NewQueryError("latest_proposal_id", err)
	}
	writeText(w, projection.ProposalID(id))
	return nil
}

// writeJSON encodes v before touching w so an encoding failure can still be
// reported through the classifier.
func writeJSON(w http.ResponseWriter, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	writeRawJSON(w, payload)
	return nil
}

func writeRawJSON(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
