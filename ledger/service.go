// Package ledger defines the domain types served by the gateway and the
// contract of the query service that reads them from a consensus node.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service is the read-only query surface of a ledger node. Every method
// issues a single remote query. Optional results are reported as a nil
// pointer with a nil error; any failure is returned as a *QueryError.
type Service interface {
	CurrentEpoch(ctx context.Context) (Epoch, error)
	AllValidators(ctx context.Context, epoch Epoch) ([]Address, error)
	ValidatorStake(ctx context.Context, epoch Epoch, validator Address) (Amount, error)
	ValidatorState(ctx context.Context, validator Address, epoch Epoch) (*ValidatorState, error)
	ValidatorMetadata(ctx context.Context, validator Address, epoch Epoch) (*ValidatorMetadata, *CommissionPair, error)
	TotalStaked(ctx context.Context, epoch Epoch) (Amount, error)
	TokenBalance(ctx context.Context, token, owner Address) (Amount, error)
	TxResponse(ctx context.Context, hash string) (RawTxResult, error)
	// TxStatus fails when no transaction matches hash.
	TxStatus(ctx context.Context, hash string) (Event, error)
	TxEvents(ctx context.Context, hash string) (*Event, error)
	GovernanceParameters(ctx context.Context) (GovernanceParameters, error)
	ProposalByID(ctx context.Context, id uint64) (*Proposal, error)
	ProposalVotes(ctx context.Context, id uint64) ([]ProposalVote, error)
}

// ProposalScanner reports the highest proposal id known to the node.
type ProposalScanner interface {
	LatestProposalID(ctx context.Context) (uint64, error)
}

// QueryObserver is notified after every query a backend issues, successful
// or not.
type QueryObserver interface {
	ObserveQuery(method string, elapsed time.Duration, err error)
}

// ErrTxNotFound reports that no transaction matches the requested hash.
var ErrTxNotFound = errors.New("transaction not found")

// QueryError wraps any failure of a remote query: transport errors,
// timeouts, rejections by the node and undecodable responses alike.
type QueryError struct {
	Method string
	Err    error
}

func (e *QueryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Method == "" {
		return fmt.Sprintf("query failed: %v", e.Err)
	}
	return fmt.Sprintf("query %s: %v", e.Method, e.Err)
}

func (e *QueryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewQueryError wraps err as a QueryError for method. An error that is
// already a QueryError is returned unchanged.
func NewQueryError(method string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Method: method, Err: err}
}

// IsQueryError reports whether err is, or wraps, a QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
