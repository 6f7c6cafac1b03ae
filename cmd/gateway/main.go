package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ledgergate/gateway/config"
	"ledgergate/gateway/middleware"
	"ledgergate/gateway/params"
	"ledgergate/gateway/routes"
	"ledgergate/ledger"
	"ledgergate/ledger/legacy"
	"ledgergate/ledger/rpc"
	"ledgergate/observability"
	"ledgergate/observability/logging"
	telemetry "ledgergate/observability/otel"
)

const shutdownGrace = 10 * time.Second

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		cfgPath  string
		listen   string
		logLevel string
	)
	root := &cobra.Command{
		Use:           "ledgergate",
		Short:         "Read-only HTTP gateway exposing ledger state as JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "load config: %v\n", err)
				return err
			}
			if strings.TrimSpace(listen) != "" {
				cfg.ListenAddress = strings.TrimSpace(listen)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logging.ParseLevel(logLevel))
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to gateway configuration (.yaml or .toml)")
	root.Flags().StringVar(&listen, "listen", "", "override the listen address")
	root.Flags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug|info|warn|error)")
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func run(ctx context.Context, cfg config.Config, level slog.Level) error {
	logger, closeLogs := logging.Setup(cfg.Observability.ServiceName, cfg.Environment, logging.Options{
		Level:      level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer func() { _ = closeLogs() }()

	otelCfg := telemetry.ConfigFromEnv(cfg.Observability.ServiceName, cfg.Environment)
	otelCfg.Version = version
	// OTLP export needs a collector; without one only propagation is installed.
	exporting := otelCfg.Endpoint != ""
	otelCfg.Traces = exporting && cfg.Observability.Tracing
	otelCfg.Metrics = exporting && cfg.Observability.Metrics
	shutdownTelemetry, err := telemetry.Init(ctx, otelCfg)
	if err != nil {
		logger.Error("failed to initialise telemetry", "error", err)
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	handler, err := buildHandler(cfg, logger)
	if err != nil {
		logger.Error("configure gateway", "error", err)
		return err
	}

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Error("listen", "address", cfg.ListenAddress, "error", err)
		return err
	}
	return serve(ctx, server, listener, logger)
}

// serve runs server on listener until ctx is cancelled, then drains in-flight
// requests for up to shutdownGrace.
func serve(ctx context.Context, server *http.Server, listener net.Listener, logger *slog.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "address", listener.Addr().String(), "version", version)
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen and serve", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
		return err
	}
	return nil
}

func buildHandler(cfg config.Config, logger *slog.Logger) (http.Handler, error) {
	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   cfg.Observability.ServiceName,
		MetricsPrefix: cfg.Observability.MetricsPrefix,
		LogRequests:   cfg.Observability.LogRequests,
		Metrics:       cfg.Observability.Metrics,
		Tracing:       cfg.Observability.Tracing,
	}, logger)
	var ledgerMetrics *observability.LedgerMetrics
	if cfg.Observability.Metrics {
		m, err := observability.NewLedgerMetrics(cfg.Observability.MetricsPrefix, obs.Registry())
		if err != nil {
			return nil, fmt.Errorf("register ledger metrics: %w", err)
		}
		ledgerMetrics = m
	}

	codec := ledger.NewBech32mCodec(cfg.Ledger.AddressPrefix)
	nativeToken, err := codec.DecodeAddress(cfg.Ledger.NativeToken)
	if err != nil {
		return nil, fmt.Errorf("decode ledger.nativeToken: %w", err)
	}

	rpcEndpoint, err := cfg.SecureRPCAddress()
	if err != nil {
		return nil, err
	}
	client, err := rpc.New(rpc.Config{
		Endpoint: rpcEndpoint,
		Timeout:  cfg.Ledger.Timeout,
		Codec:    codec,
		Observer: queryObserver(ledgerMetrics),
	})
	if err != nil {
		return nil, fmt.Errorf("configure ledger client: %w", err)
	}

	scanner, err := legacy.NewCLIScanner(legacy.Config{
		CLIPath:       cfg.Legacy.CLIPath,
		LedgerAddress: cfg.Ledger.HTTPAddress,
		Timeout:       cfg.Legacy.Timeout,
		Logger:        logger,
		Observer:      queryObserver(ledgerMetrics),
	})
	if err != nil {
		return nil, fmt.Errorf("configure proposal scanner: %w", err)
	}
	logger.Info("ledger backends configured",
		logging.Endpoint("rpc", client.Endpoint()),
		logging.Endpoint("ledger_address", cfg.Ledger.HTTPAddress),
		slog.String("cli", cfg.Legacy.CLIPath),
		slog.String("native_token", nativeToken.String()),
	)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled() {
		limiter = middleware.NewRateLimiter(map[string]middleware.RateLimit{
			routes.RateLimitKey: {RatePerSecond: cfg.RateLimit.RatePerSecond, Burst: cfg.RateLimit.Burst},
		}, logger)
		limiter.OnThrottle(ledgerMetrics.RecordThrottle)
	}

	router, err := routes.New(routes.Config{
		Ledger:        client,
		Scanner:       scanner,
		Validator:     params.NewValidator(codec),
		NativeToken:   nativeToken,
		QueryTimeout:  cfg.Ledger.Timeout,
		Logger:        logger,
		RateLimiter:   limiter,
		Observability: obs,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("configure routes: %w", err)
	}

	return router, nil
}

// queryObserver keeps a nil *LedgerMetrics from becoming a non-nil interface.
func queryObserver(m *observability.LedgerMetrics) ledger.QueryObserver {
	if m == nil {
		return nil
	}
	return m
}
