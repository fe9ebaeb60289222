// Package config defines all configuration for the keeper service.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via EDGE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/1edge/keeper/pkg/types"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun   bool                    `mapstructure:"dry_run"`
	Wallet   WalletConfig            `mapstructure:"wallet"`
	Protocol ProtocolConfig          `mapstructure:"protocol"`
	Tickers  map[string]TickerConfig `mapstructure:"tickers"`
	Venues   map[string]VenueConfig  `mapstructure:"venues"`
	Chains   map[string]ChainConfig  `mapstructure:"chains"`
	Index    IndexConfig             `mapstructure:"index"`
	PriceBus PriceBusConfig          `mapstructure:"pricebus"`
	Monitor  MonitorConfig           `mapstructure:"monitor"`
	Store    StoreConfig             `mapstructure:"store"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	API      APISurfaceConfig        `mapstructure:"api"`
}

// WalletConfig holds the Ethereum wallet used for signing slice orders.
// PrivateKey signs each slice order's EIP-712 record (and, for proxy
// makers, the proxy registration transaction).
// FunderAddress is the delegate-proxy address that funds orders (may
// differ from the signer when using a proxy or Gnosis Safe).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
}

// ProtocolConfig holds the limit-order protocol's API endpoint and the
// static bearer credential sent on every request (§6) — unlike the
// teacher's Polymarket CLOB, this API has no L1-derived L2 credential
// step; ApiKey is used as configured.
type ProtocolConfig struct {
	BaseURL string `mapstructure:"base_url"`
	ApiKey  string `mapstructure:"api_key"`
}

// TickerConfig describes one IndexSymbol: its OHLC timeframe, history
// lookback, and the weighted set of venue sources feeding it (§6).
type TickerConfig struct {
	Timeframe time.Duration           `mapstructure:"tf"`
	Lookback  int                     `mapstructure:"lookback"`
	Sources   map[string]SourceConfig `mapstructure:"sources"`
}

// SourceConfig is a single venue symbol's contribution weight to an
// IndexSymbol's weighted average.
type SourceConfig struct {
	Weight float64 `mapstructure:"weight"`
}

// VenueConfig holds one venue's streaming/REST endpoints and poll cadence,
// used to build its Exchange Adapter (§4.1). A venue only needs an entry
// here if some tickers.*.sources key names it.
type VenueConfig struct {
	WSURL          string `mapstructure:"ws_url"`
	RESTURL        string `mapstructure:"rest_url"`
	PollIntervalMs int64  `mapstructure:"poll_interval_ms"`
}

// ChainConfig holds the per-chain addresses the Slice Submitter needs to
// build and register protocol orders.
type ChainConfig struct {
	RPCURL            string `mapstructure:"rpc_url"`
	AggregatorAddress string `mapstructure:"aggregator_address"`
	ProxyAddress      string `mapstructure:"proxy_address"`
}

// IndexConfig tunes the Index Engine's publish cadence and backpressure.
type IndexConfig struct {
	PublishIntervalMs  int64 `mapstructure:"publish_interval_ms"`
	BatchSize          int   `mapstructure:"batch_size"`
	MaxPendingPerSymbol int  `mapstructure:"max_pending_per_symbol"`
	FreshnessWindowMs  int64 `mapstructure:"freshness_window_ms"`
}

// PriceBusConfig holds the Price Bus's listen port and subscriber
// liveness/leak safety valves. These values are loaded and defaulted here
// only: the pricebus package does not read them and uses its own built-in
// constants, and the keeper opens no Price Bus listener on Port.
type PriceBusConfig struct {
	Port                int           `mapstructure:"port"`
	ClientLivenessTimeout time.Duration `mapstructure:"client_liveness_timeout"`
	ServerLivenessTimeout time.Duration `mapstructure:"server_liveness_timeout"`
	MaxConnectionAge    time.Duration `mapstructure:"max_connection_age"`
	SubscriberQueueSize int           `mapstructure:"subscriber_queue_size"`
}

// MonitorConfig tunes the Slice Monitor's polling cadence and retry policy.
type MonitorConfig struct {
	PollIntervalMs int64 `mapstructure:"poll_interval_ms"`
	MaxRetries     int   `mapstructure:"max_retries"`
}

// StoreConfig sets where the Order Store persists advanced orders.
type StoreConfig struct {
	MongoURI       string `mapstructure:"mongo_uri"`
	Database       string `mapstructure:"database"`
	SnapshotPath   string `mapstructure:"snapshot_path"`
	SnapshotEnabled bool  `mapstructure:"snapshot_enabled"`
}

// LoggingConfig selects the slog handler and verbosity.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APISurfaceConfig controls the external HTTP surface port (§6 api_port):
// the port internal/api binds for its health, order status and order
// cancellation endpoints.
type APISurfaceConfig struct {
	Port int `mapstructure:"port"`
}

// PrimaryChain returns the sole configured chain's numeric id and config.
// The keeper targets exactly one protocol deployment per process; Chains
// is a map (rather than a single struct) so a future multi-chain keeper
// can add entries without a config format break, but today's Watcher
// Registry and Slice Submitter only ever resolve this one entry.
func (c *Config) PrimaryChain() (int64, ChainConfig, error) {
	if len(c.Chains) != 1 {
		return 0, ChainConfig{}, fmt.Errorf("exactly one chains entry is supported, got %d", len(c.Chains))
	}
	for idStr, chain := range c.Chains {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return 0, ChainConfig{}, fmt.Errorf("chains key %q must be a numeric chain id: %w", idStr, err)
		}
		return id, chain, nil
	}
	panic("unreachable")
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: EDGE_PRIVATE_KEY, EDGE_PROTOCOL_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("EDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env; these always win over file values.
	if key := os.Getenv("EDGE_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("EDGE_PROTOCOL_API_KEY"); key != "" {
		cfg.Protocol.ApiKey = key
	}
	if uri := os.Getenv("EDGE_MONGO_URI"); uri != "" {
		cfg.Store.MongoURI = uri
	}
	if os.Getenv("EDGE_DRY_RUN") == "true" || os.Getenv("EDGE_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults fills zero-valued tunables with the defaults named in §6.
func applyDefaults(cfg *Config) {
	if cfg.Index.PublishIntervalMs == 0 {
		cfg.Index.PublishIntervalMs = 1000
	}
	if cfg.Index.BatchSize == 0 {
		cfg.Index.BatchSize = 10
	}
	if cfg.Index.MaxPendingPerSymbol == 0 {
		cfg.Index.MaxPendingPerSymbol = 3
	}
	if cfg.Index.FreshnessWindowMs == 0 {
		cfg.Index.FreshnessWindowMs = 5000
	}
	if cfg.PriceBus.ClientLivenessTimeout == 0 {
		cfg.PriceBus.ClientLivenessTimeout = 25 * time.Second
	}
	if cfg.PriceBus.ServerLivenessTimeout == 0 {
		cfg.PriceBus.ServerLivenessTimeout = 30 * time.Second
	}
	if cfg.PriceBus.MaxConnectionAge == 0 {
		cfg.PriceBus.MaxConnectionAge = 15 * time.Minute
	}
	if cfg.PriceBus.SubscriberQueueSize == 0 {
		cfg.PriceBus.SubscriberQueueSize = 64
	}
	if cfg.Monitor.PollIntervalMs == 0 {
		cfg.Monitor.PollIntervalMs = 10_000
	}
	if cfg.Monitor.MaxRetries == 0 {
		cfg.Monitor.MaxRetries = 5
	}
	for name, v := range cfg.Venues {
		if v.PollIntervalMs == 0 {
			v.PollIntervalMs = 1000
			cfg.Venues[name] = v
		}
	}
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set EDGE_PRIVATE_KEY)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.Protocol.BaseURL == "" {
		return fmt.Errorf("protocol.base_url is required")
	}
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one entry in chains is required")
	}
	for id, chain := range c.Chains {
		if chain.RPCURL == "" {
			return fmt.Errorf("chains.%s.rpc_url is required", id)
		}
	}
	if len(c.Tickers) == 0 {
		return fmt.Errorf("at least one entry in tickers is required")
	}
	for symbol, t := range c.Tickers {
		if t.Timeframe <= 0 {
			return fmt.Errorf("tickers.%s.tf must be > 0", symbol)
		}
		if len(t.Sources) == 0 {
			return fmt.Errorf("tickers.%s.sources must have at least one entry", symbol)
		}
		for sourceSym := range t.Sources {
			venue, _, _, ok := types.Symbol(sourceSym).Parts()
			if !ok {
				return fmt.Errorf("tickers.%s.sources key %q must have the form venue:market:pair", symbol, sourceSym)
			}
			if _, known := c.Venues[venue]; !known {
				return fmt.Errorf("tickers.%s.sources key %q names unconfigured venue %q", symbol, sourceSym, venue)
			}
		}
	}
	if c.Store.MongoURI == "" {
		return fmt.Errorf("store.mongo_uri is required")
	}
	if c.Index.MaxPendingPerSymbol <= 0 {
		return fmt.Errorf("index.max_pending_per_symbol must be > 0")
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index.batch_size must be > 0")
	}
	if c.Monitor.MaxRetries <= 0 {
		return fmt.Errorf("monitor.max_retries must be > 0")
	}
	return nil
}
