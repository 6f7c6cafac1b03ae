// Package legacy discovers the most recent governance proposal id by running
// the node's command line client and reading its listing.
package legacy

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"ledgergate/ledger"
)

const (
	queryMethod    = "query_proposal"
	proposalMarker = "Proposal Id:"
	defaultTimeout = 30 * time.Second
	stderrPreview  = 1024
)

// ErrNoProposals is returned when the listing contains no proposal lines.
var ErrNoProposals = errors.New("no proposals in client output")

type Config struct {
	// CLIPath is the client binary, resolved through PATH when not absolute.
	CLIPath string
	// LedgerAddress is passed to the client as --ledger-address.
	LedgerAddress string
	Timeout       time.Duration
	Logger        *slog.Logger
	Observer      ledger.QueryObserver
}

// CLIScanner implements ledger.ProposalScanner. Each call starts a fresh
// process so concurrent requests never share state.
type CLIScanner struct {
	path     string
	address  string
	timeout  time.Duration
	logger   *slog.Logger
	observer ledger.QueryObserver

	// command builds the process; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

var _ ledger.ProposalScanner = (*CLIScanner)(nil)

func NewCLIScanner(cfg Config) (*CLIScanner, error) {
	path := strings.TrimSpace(cfg.CLIPath)
	if path == "" {
		return nil, errors.New("legacy: cli path is required")
	}
	address := strings.TrimSpace(cfg.LedgerAddress)
	if address == "" {
		return nil, errors.New("legacy: ledger address is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIScanner{
		path:     path,
		address:  address,
		timeout:  timeout,
		logger:   logger,
		observer: cfg.Observer,
		command:  exec.CommandContext,
	}, nil
}

// Args returns the argument vector passed to the client binary.
func (s *CLIScanner) Args() []string {
	return []string{"query-proposal", "--ledger-address", s.address}
}

func (s *CLIScanner) LatestProposalID(ctx context.Context) (id uint64, err error) {
	started := time.Now()
	if s.observer != nil {
		defer func() { s.observer.ObserveQuery(queryMethod, time.Since(started), err) }()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := s.command(ctx, s.path, s.Args()...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	s.logger.Debug("legacy proposal scan finished",
		slog.String("cli", s.path),
		slog.Duration("elapsed", time.Since(started)),
		slog.Int("stdout_bytes", stdout.Len()),
	)
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ledger.NewQueryError(queryMethod, fmt.Errorf("run %s: %w", s.path, ctxErr))
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return 0, ledger.NewQueryError(queryMethod, fmt.Errorf("command execution failed (exit %d): %s", exitErr.ExitCode(), trimPreview(stderr.String())))
		}
		return 0, ledger.NewQueryError(queryMethod, fmt.Errorf("failed to execute process: %w", runErr))
	}

	id, err = ParseLatestProposalID(&stdout)
	if err != nil {
		return 0, ledger.NewQueryError(queryMethod, err)
	}
	return id, nil
}

// ParseLatestProposalID scans a proposal listing and returns the largest id
// found on lines beginning with "Proposal Id:". Lines whose trailing token is
// not an unsigned integer are skipped.
func ParseLatestProposalID(r io.Reader) (uint64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var (
		latest uint64
		found  bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, proposalMarker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		id, err := strconv.ParseUint(fields[len(fields)-1], 10, 64)
		if err != nil {
			continue
		}
		if !found || id > latest {
			latest = id
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read client output: %w", err)
	}
	if !found {
		return 0, ErrNoProposals
	}
	return latest, nil
}

func trimPreview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > stderrPreview {
		return text[:stderrPreview] + "..."
	}
	return text
}
