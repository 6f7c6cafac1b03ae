package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load. They take precedence over the
// configuration file.
const (
	EnvRPCAddress  = "TENDERMINT_ADDR"
	EnvHTTPAddress = "TENDERMINT_ADDR_HTTP"
	EnvEnvironment = "LEDGERGATE_ENV"
	EnvListen      = "LEDGERGATE_LISTEN"
	EnvNativeToken = "LEDGERGATE_NATIVE_TOKEN"
	EnvCLIPath     = "LEDGERGATE_CLI_PATH"
)

// DefaultNativeToken is the token reported by /balance/{owner} unless
// ledger.nativeToken overrides it.
const DefaultNativeToken = "tnam1qxvg64psvhwumv3mwrrjfcz0h3t3274hwggyzcee"

type LedgerConfig struct {
	RPCAddress    string        `yaml:"rpcAddress" toml:"rpcAddress"`
	HTTPAddress   string        `yaml:"httpAddress" toml:"httpAddress"`
	Timeout       time.Duration `yaml:"timeout" toml:"timeout"`
	NativeToken   string        `yaml:"nativeToken" toml:"nativeToken"`
	AddressPrefix string        `yaml:"addressPrefix" toml:"addressPrefix"`
}

type LegacyConfig struct {
	CLIPath string        `yaml:"cliPath" toml:"cliPath"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

type RateLimitConfig struct {
	RatePerSecond float64 `yaml:"ratePerSecond" toml:"ratePerSecond"`
	Burst         int     `yaml:"burst" toml:"burst"`
}

// Enabled reports whether requests should be throttled at all.
func (r RateLimitConfig) Enabled() bool {
	return r.RatePerSecond > 0
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins" toml:"allowedOrigins"`
}

type ObservabilityConfig struct {
	ServiceName   string `yaml:"serviceName" toml:"serviceName"`
	Metrics       bool   `yaml:"metrics" toml:"metrics"`
	Tracing       bool   `yaml:"tracing" toml:"tracing"`
	LogRequests   bool   `yaml:"logRequests" toml:"logRequests"`
	MetricsPrefix string `yaml:"metricsPrefix" toml:"metricsPrefix"`
}

type LoggingConfig struct {
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB" toml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups" toml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays" toml:"maxAgeDays"`
}

type SecurityConfig struct {
	AutoUpgradeHTTP bool `yaml:"autoUpgradeHTTP" toml:"autoUpgradeHTTP"`
}

type Config struct {
	ListenAddress string              `yaml:"listen" toml:"listen"`
	ReadTimeout   time.Duration       `yaml:"readTimeout" toml:"readTimeout"`
	WriteTimeout  time.Duration       `yaml:"writeTimeout" toml:"writeTimeout"`
	IdleTimeout   time.Duration       `yaml:"idleTimeout" toml:"idleTimeout"`
	Ledger        LedgerConfig        `yaml:"ledger" toml:"ledger"`
	Legacy        LegacyConfig        `yaml:"legacy" toml:"legacy"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit" toml:"rateLimit"`
	CORS          CORSConfig          `yaml:"cors" toml:"cors"`
	Observability ObservabilityConfig `yaml:"observability" toml:"observability"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
	Security      SecurityConfig      `yaml:"security" toml:"security"`

	// Environment is read from LEDGERGATE_ENV, never from the file. Any
	// value other than "dev" requires HTTPS RPC endpoints.
	Environment string `yaml:"-" toml:"-"`
}

var (
	ErrRPCAddressMissing  = errors.New("ledger.rpcAddress is required (set " + EnvRPCAddress + ")")
	ErrHTTPAddressMissing = errors.New("ledger.httpAddress is required (set " + EnvHTTPAddress + ")")
)

// Default returns the configuration used before any file or environment
// override is applied.
func Default() Config {
	return Config{
		Environment:   "dev",
		ListenAddress: "0.0.0.0:8080",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		Ledger: LedgerConfig{
			Timeout:       10 * time.Second,
			AddressPrefix: "tnam",
			NativeToken:   DefaultNativeToken,
		},
		Legacy: LegacyConfig{
			CLIPath: "namadac",
			Timeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			ServiceName:   "ledgergate",
			Metrics:       true,
			Tracing:       true,
			LogRequests:   true,
			MetricsPrefix: "ledgergate",
		},
		Logging: LoggingConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Load layers defaults, the optional file at path, and environment overrides,
// then validates the result. The file format follows its extension: .toml is
// decoded as TOML, anything else as YAML.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("decode config: unknown key %q", undecoded[0].String())
		}
		return nil
	default:
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		return nil
	}
}

func (cfg *Config) applyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	set := func(key string, dst *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}
	set(EnvRPCAddress, &cfg.Ledger.RPCAddress)
	set(EnvHTTPAddress, &cfg.Ledger.HTTPAddress)
	set(EnvListen, &cfg.ListenAddress)
	set(EnvNativeToken, &cfg.Ledger.NativeToken)
	set(EnvCLIPath, &cfg.Legacy.CLIPath)
	set(EnvEnvironment, &cfg.Environment)
	if value, ok := lookup("LEDGERGATE_RATE_LIMIT"); ok && strings.TrimSpace(value) != "" {
		rps, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("parse LEDGERGATE_RATE_LIMIT: %w", err)
		}
		cfg.RateLimit.RatePerSecond = rps
	}
	return nil
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	cfg.Ledger.RPCAddress = strings.TrimSpace(cfg.Ledger.RPCAddress)
	cfg.Ledger.HTTPAddress = strings.TrimSpace(cfg.Ledger.HTTPAddress)
	cfg.Ledger.NativeToken = strings.TrimSpace(cfg.Ledger.NativeToken)
	cfg.Ledger.AddressPrefix = strings.TrimSpace(cfg.Ledger.AddressPrefix)
	if cfg.RateLimit.Enabled() && cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = int(cfg.RateLimit.RatePerSecond)
		if cfg.RateLimit.Burst < 1 {
			cfg.RateLimit.Burst = 1
		}
	}
	trimmed := cfg.CORS.AllowedOrigins[:0]
	for _, origin := range cfg.CORS.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			trimmed = append(trimmed, origin)
		}
	}
	cfg.CORS.AllowedOrigins = trimmed
}

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.ListenAddress == "" {
		return fmt.Errorf("listen address is required")
	}
	if cfg.Ledger.RPCAddress == "" {
		return ErrRPCAddressMissing
	}
	if cfg.Ledger.HTTPAddress == "" {
		return ErrHTTPAddressMissing
	}
	if cfg.Ledger.NativeToken == "" {
		return fmt.Errorf("ledger.nativeToken cannot be empty")
	}
	if cfg.Ledger.AddressPrefix == "" {
		return fmt.Errorf("ledger.addressPrefix cannot be empty")
	}
	if cfg.Ledger.Timeout <= 0 {
		return fmt.Errorf("ledger.timeout must be positive")
	}
	if strings.TrimSpace(cfg.Legacy.CLIPath) == "" {
		return fmt.Errorf("legacy.cliPath cannot be empty")
	}
	if cfg.Legacy.Timeout <= 0 {
		return fmt.Errorf("legacy.timeout must be positive")
	}
	if cfg.RateLimit.RatePerSecond < 0 {
		return fmt.Errorf("rateLimit.ratePerSecond cannot be negative")
	}
	if cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rateLimit.burst cannot be negative")
	}
	if cfg.Logging.File != "" && cfg.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("logging.maxSizeMB must be positive when logging.file is set")
	}
	return nil
}

// SecureRPCAddress parses ledger.rpcAddress and applies EnforceSecureScheme
// for the configured environment. Bare host:port values are treated as http.
func (cfg Config) SecureRPCAddress() (string, error) {
	raw := cfg.Ledger.RPCAddress
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse ledger.rpcAddress: %w", err)
	}
	if strings.EqualFold(parsed.Scheme, "tcp") {
		parsed.Scheme = "http"
	}
	secured, _, err := EnforceSecureScheme(cfg.Environment, parsed, cfg.Security.AutoUpgradeHTTP)
	if err != nil {
		return "", fmt.Errorf("ledger.rpcAddress: %w", err)
	}
	return secured.String(), nil
}

// EnforceSecureScheme ensures the supplied URL uses HTTPS outside of the dev environment.
// If autoUpgrade is enabled, insecure HTTP URLs are transparently upgraded to HTTPS.
// The returned boolean indicates whether an upgrade occurred.
func EnforceSecureScheme(env string, target *url.URL, autoUpgrade bool) (*url.URL, bool, error) {
	if target == nil {
		return nil, false, fmt.Errorf("target URL is nil")
	}
	scheme := strings.ToLower(strings.TrimSpace(target.Scheme))
	switch scheme {
	case "https":
		return target, false, nil
	case "http":
		if IsDevEnv(env) {
			return target, false, nil
		}
		if autoUpgrade {
			upgraded := *target
			upgraded.Scheme = "https"
			return &upgraded, true, nil
		}
		if strings.TrimSpace(env) == "" {
			env = "(unset)"
		}
		return nil, false, fmt.Errorf("plaintext HTTP endpoints are not permitted for environment %s", env)
	case "":
		return nil, false, fmt.Errorf("URL scheme is required")
	default:
		return nil, false, fmt.Errorf("unsupported URL scheme %q", target.Scheme)
	}
}

func IsDevEnv(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "dev")
}
