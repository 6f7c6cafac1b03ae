package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ledgergate/gateway/middleware"
	"ledgergate/gateway/params"
	"ledgergate/ledger"
	"ledgergate/ledger/ledgertest"
)

const testToken = "tnam1token"

func newTestRouter(t *testing.T, svc *ledgertest.Service, scanner ledger.ProposalScanner) http.Handler {
	t.Helper()
	handler, err := New(Config{
		Ledger:      svc,
		Scanner:     scanner,
		Validator:   params.NewValidator(ledgertest.PrefixCodec{}),
		NativeToken: ledgertest.MustAddress(testToken),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			MetricsPrefix: "routes_test",
			Metrics:       true,
		}, nil),
	})
	require.NoError(t, err)
	return handler
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func statePtr(s ledger.ValidatorState) *ledger.ValidatorState { return &s }

var errUnavailable = errors.New("rpc unavailable")

func TestEpochScenario(t *testing.T) {
	svc := &ledgertest.Service{
		CurrentEpochFunc: func(ctx context.Context) (ledger.Epoch, error) { return 42, nil },
	}
	res := get(t, newTestRouter(t, svc, nil), "/epoch")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "application/json", res.Header().Get("Content-Type"))
	require.JSONEq(t, `{"epoch": "42"}`, res.Body.String())
	require.NotEmpty(t, res.Header().Get(middleware.HeaderRequestID))
}

func TestValidatorStateScenario(t *testing.T) {
	svc := &ledgertest.Service{
		ValidatorStateFunc: func(ctx context.Context, validator ledger.Address, epoch ledger.Epoch) (*ledger.ValidatorState, error) {
			require.Equal(t, "tnam1abc", validator.String())
			require.Equal(t, ledger.Epoch(10), epoch)
			return statePtr(ledger.ValidatorStateJailed), nil
		},
	}
	res := get(t, newTestRouter(t, svc, nil), "/validator/state/10/tnam1abc")
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"state": "Jailed"}`, res.Body.String())
}

func TestValidatorStateAbsentScenario(t *testing.T) {
	svc := &ledgertest.Service{
		ValidatorStateFunc: func(ctx context.Context, validator ledger.Address, epoch ledger.Epoch) (*ledger.ValidatorState, error) {
			return nil, nil
		},
	}
	res := get(t, newTestRouter(t, svc, nil), "/validator/state/10/tnam1abc")
	require.Equal(t, http.StatusNotFound, res.Code)
	require.Equal(t, "Validator state not found", res.Body.String())
}

func TestProposalVotesEmptyScenario(t *testing.T) {
	svc := &ledgertest.Service{
		ProposalVotesFunc: func(ctx context.Context, id uint64) ([]ledger.ProposalVote, error) {
			require.Equal(t, uint64(3), id)
			return nil, nil
		},
	}
	res := get(t, newTestRouter(t, svc, nil), "/proposal/votes/3")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "[]", res.Body.String())
}

func TestBalanceInvalidAddressScenario(t *testing.T) {
	svc := &ledgertest.Service{}
	res := get(t, newTestRouter(t, svc, nil), "/balance/not-an-address")
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), `"field":"owner"`)
	require.Contains(t, res.Body.String(), `"kind":"invalid_address"`)
	require.Zero(t, svc.CallCount())
}

func TestBalanceUsesNativeToken(t *testing.T) {
	svc := &ledgertest.Service{
		TokenBalanceFunc: func(ctx context.Context, token, owner ledger.Address) (ledger.Amount, error) {
			require.Equal(t, testToken, token.String())
			require.Equal(t, "tnam1owner", owner.String())
			return ledger.ParseAmount("1000000000000000000000000")
		},
	}
	res := get(t, newTestRouter(t, svc, nil), "/balance/tnam1owner")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "1000000000000000000000000", res.Body.String())
	require.Equal(t, "text/plain; charset=utf-8", res.Header().Get("Content-Type"))
}

func TestValidationFailuresIssueNoQueries(t *testing.T) {
	paths := []string{
		"/validators/-1",
		"/validators/abc",
		"/validator/state/x/tnam1abc",
		"/validator/state/10/bogus",
		"/validator/stake/10/bogus",
		"/validator/stake/1.5/tnam1abc",
		"/validator/metadata/10/bogus",
		"/total-staked/ten",
		"/proposal/-3",
		"/proposal/votes/abc",
		"/balance/bogus",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			svc := &ledgertest.Service{}
			res := get(t, newTestRouter(t, svc, nil), path)
			require.Equal(t, http.StatusBadRequest, res.Code)
			require.Equal(t, "application/json", res.Header().Get("Content-Type"))
			require.Zero(t, svc.CallCount())
		})
	}
}

func TestMalformedEpochReportsField(t *testing.T) {
	res := get(t, newTestRouter(t, &ledgertest.Service{}, nil), "/validator/state/nope/tnam1abc")
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), `"field":"epoch"`)
	require.Contains(t, res.Body.String(), `"kind":"malformed"`)
}

func TestTxEventsAbsenceDiffersFromFailure(t *testing.T) {
	absent := &ledgertest.Service{
		TxEventsFunc: func(ctx context.Context, hash string) (*ledger.Event, error) { return nil, nil },
	}
	res := get(t, newTestRouter(t, absent, nil), "/tx/events/ABC")
	require.Equal(t, http.StatusNotFound, res.Code)
	require.Equal(t, "Event not found", res.Body.String())

	failing := &ledgertest.Service{
		TxEventsFunc: func(ctx context.Context, hash string) (*ledger.Event, error) { return nil, errUnavailable },
	}
	res = get(t, newTestRouter(t, failing, nil), "/tx/events/ABC")
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Contains(t, res.Body.String(), "rpc unavailable")
}

func TestTxEventsFound(t *testing.T) {
	svc := &ledgertest.Service{
		TxEventsFunc: func(ctx context.Context, hash string) (*ledger.Event, error) {
			require.Equal(t, "ABC", hash)
			return &ledger.Event{EventType: "applied", Level: ledger.EventLevelTx, Attributes: map[string]string{"code": "0"}}, nil
		},
	}
	res := get(t, newTestRouter(t, svc, nil), "/tx/events/ABC")
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"event_type":"applied","level":"Tx","attributes":{"code":"0"}}`, res.Body.String())
}

func TestTxStatusNotFoundIsServerError(t *testing.T) {
	svc := &ledgertest.Service{
		TxStatusFunc: func(ctx context.Context, hash string) (ledger.Event, error) {
			return ledger.Event{}, ledger.NewQueryError("tx_status", ledger.ErrTxNotFound)
		},
	}
	res := get(t, newTestRouter(t, svc, nil), "/tx/status/ABC")
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Contains(t, res.Body.String(), "transaction not found")
}

func TestTxResponsePassesThroughRawJSON(t *testing.T) {
	svc := &ledgertest.Service{
		TxResponseFunc: func(ctx context.Context, hash string) (ledger.RawTxResult, error) {
			return ledger.RawTxResult(`{"height":"12","code":0}`), nil
		},
	}
	res := get(t, newTestRouter(t, svc, nil), "/tx/DEADBEEF")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, `{"height":"12","code":0}`, res.Body.String())
}

func TestProposalRoutes(t *testing.T) {
	svc := &ledgertest.Service{
		ProposalByIDFunc: func(ctx context.Context, id uint64) (*ledger.Proposal, error) {
			if id != 4 {
				return nil, nil
			}
			return &ledger.Proposal{
				ID:               4,
				Content:          map[string]string{"title": "Raise cap"},
				Author:           ledgertest.MustAddress("tnam1author"),
				Kind:             ledger.ProposalKindDefault,
				VotingStartEpoch: 12,
				VotingEndEpoch:   24,
				GraceEpoch:       30,
			}, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	res := get(t, router, "/proposal/4")
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{
		"id": "4",
		"content": {"title": "Raise cap"},
		"author": "tnam1author",
		"type": "Default",
		"voting_start_epoch": "12",
		"voting_end_epoch": "24",
		"grace_epoch": "30"
	}`, res.Body.String())

	res = get(t, router, "/proposal/5")
	require.Equal(t, http.StatusNotFound, res.Code)
	require.Equal(t, "Proposal not found", res.Body.String())
}

func TestCollectionsAndAmounts(t *testing.T) {
	svc := &ledgertest.Service{
		AllValidatorsFunc: func(ctx context.Context, epoch ledger.Epoch) ([]ledger.Address, error) {
			return []ledger.Address{ledgertest.MustAddress("tnam1b"), ledgertest.MustAddress("tnam1a")}, nil
		},
		ValidatorStakeFunc: func(ctx context.Context, epoch ledger.Epoch, validator ledger.Address) (ledger.Amount, error) {
			return ledger.AmountFromUint64(77), nil
		},
		TotalStakedFunc: func(ctx context.Context, epoch ledger.Epoch) (ledger.Amount, error) {
			return ledger.AmountFromUint64(9000), nil
		},
		GovernanceParametersFunc: func(ctx context.Context) (ledger.GovernanceParameters, error) {
			return ledger.GovernanceParameters{MinProposalFund: ledger.AmountFromUint64(500), MaxProposalPeriod: 27}, nil
		},
		ValidatorMetadataFunc: func(ctx context.Context, validator ledger.Address, epoch ledger.Epoch) (*ledger.ValidatorMetadata, *ledger.CommissionPair, error) {
			return &ledger.ValidatorMetadata{Email: "v@example.org"}, nil, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	res := get(t, router, "/validators/5")
	require.Equal(t, `["tnam1b","tnam1a"]`, res.Body.String())

	res = get(t, router, "/validator/stake/5/tnam1a")
	require.Equal(t, "77", res.Body.String())

	res = get(t, router, "/total-staked/5")
	require.Equal(t, "9000", res.Body.String())

	res = get(t, router, "/governance/parameters")
	require.JSONEq(t, `{"min_proposal_fund":"500","max_proposal_code_size":"0","min_proposal_voting_period":"0","max_proposal_period":"27","max_proposal_content_size":"0","min_proposal_grace_epochs":"0"}`, res.Body.String())

	res = get(t, router, "/validator/metadata/5/tnam1a")
	require.JSONEq(t, `{"metadata":{"email":"v@example.org","description":"","website":"","discord_handle":"","avatar":""},"commission_pair":{}}`, res.Body.String())

	require.Equal(t, 5, svc.CallCount())
}

func TestQueryFailuresAreServerErrors(t *testing.T) {
	svc := &ledgertest.Service{}
	router := newTestRouter(t, svc, nil)
	for _, path := range []string{"/epoch", "/validators/1", "/governance/parameters", "/proposal/1", "/tx/status/A"} {
		res := get(t, router, path)
		require.Equal(t, http.StatusInternalServerError, res.Code, path)
		require.Contains(t, res.Body.String(), "not configured", path)
	}
	require.Equal(t, 5, svc.CallCount())
}

func TestLatestProposalID(t *testing.T) {
	scanner := ledgertest.ScannerFunc(func(ctx context.Context) (uint64, error) { return 17, nil })
	res := get(t, newTestRouter(t, &ledgertest.Service{}, scanner), "/latest-proposal-id")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "17", res.Body.String())

	failing := ledgertest.ScannerFunc(func(ctx context.Context) (uint64, error) {
		return 0, fmt.Errorf("exit status 1")
	})
	res = get(t, newTestRouter(t, &ledgertest.Service{}, failing), "/latest-proposal-id")
	require.Equal(t, http.StatusInternalServerError, res.Code)

	res = get(t, newTestRouter(t, &ledgertest.Service{}, nil), "/latest-proposal-id")
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Contains(t, res.Body.String(), "proposal scanner not configured")
}

func TestPanicsAreRecovered(t *testing.T) {
	svc := &ledgertest.Service{
		CurrentEpochFunc: func(ctx context.Context) (ledger.Epoch, error) { panic("boom") },
	}
	router := newTestRouter(t, svc, nil)
	res := get(t, router, "/epoch")
	require.Equal(t, http.StatusInternalServerError, res.Code)

	res = get(t, router, "/healthz")
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "ok", res.Body.String())
}

func TestUnknownRoutesAndMethods(t *testing.T) {
	router := newTestRouter(t, &ledgertest.Service{}, nil)
	require.Equal(t, http.StatusNotFound, get(t, router, "/nope").Code)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/epoch", strings.NewReader("{}")))
	require.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	svc := &ledgertest.Service{
		CurrentEpochFunc: func(ctx context.Context) (ledger.Epoch, error) { return 1, nil },
	}
	router := newTestRouter(t, svc, nil)
	get(t, router, "/epoch")
	res := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `routes_test_requests_total{method="GET",route="epoch",status="200"} 1`)
}

func TestMetricsEndpointAbsentWhenMetricsDisabled(t *testing.T) {
	handler, err := New(Config{
		Ledger:      &ledgertest.Service{},
		Validator:   params.NewValidator(ledgertest.PrefixCodec{}),
		NativeToken: ledgertest.MustAddress(testToken),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			LogRequests: true,
		}, nil),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, get(t, handler, "/metrics").Code)
	require.Equal(t, http.StatusOK, get(t, handler, "/healthz").Code)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{NativeToken: ledgertest.MustAddress(testToken)})
	require.Error(t, err)
	_, err = New(Config{Ledger: &ledgertest.Service{}})
	require.Error(t, err)
}

func TestRouteTableIsComplete(t *testing.T) {
	patterns := map[string]bool{}
	for _, rt := range routeTable {
		require.False(t, patterns[rt.pattern], "duplicate pattern %s", rt.pattern)
		patterns[rt.pattern] = true
	}
	require.Len(t, patterns, 14)
}

func TestRateLimitAppliesToLedgerRoutesOnly(t *testing.T) {
	svc := &ledgertest.Service{
		CurrentEpochFunc: func(ctx context.Context) (ledger.Epoch, error) { return 9, nil },
	}
	handler, err := New(Config{
		Ledger:      svc,
		Validator:   params.NewValidator(ledgertest.PrefixCodec{}),
		NativeToken: ledgertest.MustAddress(testToken),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		RateLimiter: middleware.NewRateLimiter(map[string]middleware.RateLimit{
			RateLimitKey: {RatePerSecond: 0.001, Burst: 1},
		}, nil),
	})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, get(t, handler, "/epoch").Code)
	require.Equal(t, http.StatusTooManyRequests, get(t, handler, "/epoch").Code)
	require.Equal(t, 1, svc.CallCount())
	require.Equal(t, http.StatusOK, get(t, handler, "/healthz").Code)
}
