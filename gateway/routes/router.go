package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"ledgergate/gateway/middleware"
	"ledgergate/gateway/params"
	"ledgergate/ledger"
)

const (
	defaultQueryTimeout = 10 * time.Second
	RateLimitKey        = "ledger"
)

type Config struct {
	Ledger        ledger.Service
	Scanner       ledger.ProposalScanner
	Validator     *params.Validator
	NativeToken   ledger.Address
	QueryTimeout  time.Duration
	Logger        *slog.Logger
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

type handlerFunc func(lr *ledgerRoutes, w http.ResponseWriter, r *http.Request) error

type route struct {
	name    string
	pattern string
	handle  handlerFunc
}

// routeTable is bound once by New and never changes afterwards.
var routeTable = []route{
	{name: "epoch", pattern: "/epoch", handle: (*ledgerRoutes).epoch},
	{name: "validators", pattern: "/validators/{epoch}", handle: (*ledgerRoutes).validators},
	{name: "validator_state", pattern: "/validator/state/{epoch}/{validator}", handle: (*ledgerRoutes).validatorState},
	{name: "validator_stake", pattern: "/validator/stake/{epoch}/{validator}", handle: (*ledgerRoutes).validatorStake},
	{name: "validator_metadata", pattern: "/validator/metadata/{epoch}/{validator}", handle: (*ledgerRoutes).validatorMetadata},
	{name: "balance", pattern: "/balance/{owner}", handle: (*ledgerRoutes).balance},
	{name: "tx_response", pattern: "/tx/{tx_hash}", handle: (*ledgerRoutes).txResponse},
	{name: "tx_status", pattern: "/tx/status/{tx_hash}", handle: (*ledgerRoutes).txStatus},
	{name: "tx_events", pattern: "/tx/events/{tx_hash}", handle: (*ledgerRoutes).txEvents},
	{name: "governance_parameters", pattern: "/governance/parameters", handle: (*ledgerRoutes).governanceParameters},
	{name: "proposal", pattern: "/proposal/{proposal_id}", handle: (*ledgerRoutes).proposal},
	{name: "proposal_votes", pattern: "/proposal/votes/{proposal_id}", handle: (*ledgerRoutes).proposalVotes},
	{name: "total_staked", pattern: "/total-staked/{epoch}", handle: (*ledgerRoutes).totalStaked},
	{name: "latest_proposal_id", pattern: "/latest-proposal-id", handle: (*ledgerRoutes).latestProposalID},
}

// New binds the route table onto a chi router.
func New(cfg Config) (http.Handler, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("ledger service is required")
	}
	if cfg.NativeToken.IsZero() {
		return nil, errors.New("native token address is required")
	}
	lr := newLedgerRoutes(cfg)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if obs.MetricsEnabled() {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	r.Group(func(gr chi.Router) {
		if cfg.RateLimiter != nil {
			gr.Use(cfg.RateLimiter.Middleware(RateLimitKey))
		}
		for _, rt := range routeTable {
			handler := http.Handler(lr.serve(rt))
			if obs != nil {
				handler = obs.Middleware(rt.name)(handler)
			}
			gr.Method(http.MethodGet, rt.pattern, handler)
		}
	})

	return r, nil
}

func (lr *ledgerRoutes) serve(rt route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rt.handle(lr, w, r); err != nil {
			lr.writeError(w, r, rt.name, err)
		}
	}
}
