package routes

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"ledgergate/gateway/params"
	"ledgergate/ledger"
)

func TestClassifyTable(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		class  string
		body   string
	}{
		{
			name:   "malformed",
			err:    &params.ValidationError{Kind: params.Malformed, Field: "epoch", Value: "x", Err: errors.New("invalid syntax")},
			status: http.StatusBadRequest,
			class:  classValidation,
			body:   `{"error":"malformed epoch \"x\": invalid syntax","field":"epoch","kind":"malformed"}`,
		},
		{
			name:   "invalid address",
			err:    &params.ValidationError{Kind: params.InvalidAddress, Field: "owner", Value: "x", Err: errors.New("bad")},
			status: http.StatusBadRequest,
			class:  classValidation,
		},
		{
			name:   "not found",
			err:    errNotFound(msgProposalNotFound),
			status: http.StatusNotFound,
			class:  classNotFound,
			body:   "Proposal not found",
		},
		{
			name:   "query failure",
			err:    ledger.NewQueryError("current_epoch", errors.New("timeout")),
			status: http.StatusInternalServerError,
			class:  classQuery,
			body:   `{"error":"query current_epoch: timeout"}`,
		},
		{
			name:   "wrapped query failure",
			err:    fmt.Errorf("pipeline: %w", ledger.NewQueryError("tx_status", ledger.ErrTxNotFound)),
			status: http.StatusInternalServerError,
			class:  classQuery,
		},
		{
			name:   "unclassified",
			err:    errors.New("encode response: boom"),
			status: http.StatusInternalServerError,
			class:  classQuery,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := classify(tc.err)
			require.Equal(t, tc.status, out.status)
			require.Equal(t, tc.class, out.class)
			if tc.body != "" {
				require.Equal(t, tc.body, string(out.body))
			}
		})
	}
}

func TestClassifyContentTypes(t *testing.T) {
	require.Equal(t, "text/plain; charset=utf-8", classify(errNotFound(msgEventNotFound)).contentType)
	require.Equal(t, "application/json", classify(errors.New("x")).contentType)
}
