// Edge Keeper — a keeper/orderbook service for the 1edge limit-order
// protocol: it decomposes advanced order types (DCA, TWAP, Iceberg, Range,
// Grid, StopLimit, ChaseLimit, RangeBreakout, MomentumReversal) into
// protocol-level limit-order slices and submits them on-chain as each
// order's schedule or price condition fires.
//
// Architecture:
//
//	main.go                 — entry point: loads config, wires every component, waits for SIGINT/SIGTERM
//	internal/venue          — Exchange Adapter: one per venue, streams/polls raw ticks
//	internal/index          — Index Engine: aggregates venue ticks into per-symbol IndexSnapshots
//	internal/analytics      — technical-indicator provider (ADX, EMA, RSI) feeding IndexSnapshot.Analytics
//	internal/pricebus       — Price Bus: fans IndexSnapshots out to websocket and in-process subscribers
//	internal/handler        — the nine order-type handlers: pure (should_trigger, slice_amount, advance_schedule)
//	internal/watcher        — Watcher Registry/Supervisor: one schedule goroutine per standing order
//	internal/monitor        — Slice Monitor: reconciles standing-order fills back onto stored slices
//	internal/protocol       — Auth, Client, Submitter: signs and publishes slice orders to the protocol API
//	internal/store          — Order Store: durable AdvancedOrder/SliceRecord/OrderEvent persistence
//	internal/api            — external HTTP surface: health check, order/slice status, cancellation
//	internal/config         — YAML + EDGE_* env configuration
package main

import (
	"context"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/1edge/keeper/internal/analytics"
	"github.com/1edge/keeper/internal/api"
	"github.com/1edge/keeper/internal/config"
	"github.com/1edge/keeper/internal/index"
	"github.com/1edge/keeper/internal/monitor"
	"github.com/1edge/keeper/internal/pricebus"
	"github.com/1edge/keeper/internal/protocol"
	"github.com/1edge/keeper/internal/store"
	"github.com/1edge/keeper/internal/venue"
	"github.com/1edge/keeper/internal/watcher"
	"github.com/1edge/keeper/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("EDGE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store.MongoURI)
	if err != nil {
		logger.Error("failed to connect to order store", "error", err)
		os.Exit(2)
	}
	defer st.Close(context.Background())
	if err := st.EnsureIndexes(ctx); err != nil {
		logger.Error("failed to ensure store indexes", "error", err)
		os.Exit(2)
	}

	chainNumericID, chainCfg, err := cfg.PrimaryChain()
	if err != nil {
		logger.Error("failed to resolve chain config", "error", err)
		os.Exit(1)
	}

	auth, err := protocol.NewAuth(cfg.Wallet)
	if err != nil {
		logger.Error("failed to build wallet auth", "error", err)
		os.Exit(1)
	}
	client := protocol.NewClient(*cfg, logger)
	submitter, err := protocol.NewSubmitter(chainCfg, auth, client, big.NewInt(chainNumericID))
	if err != nil {
		logger.Error("failed to build slice submitter", "error", err)
		os.Exit(1)
	}
	defer submitter.Close()

	indexEngine := index.New(index.Config{
		PublishInterval: time.Duration(cfg.Index.PublishIntervalMs) * time.Millisecond,
		BatchSize:       cfg.Index.BatchSize,
		FreshnessWindow: time.Duration(cfg.Index.FreshnessWindowMs) * time.Millisecond,
		MaxPending:      cfg.Index.MaxPendingPerSymbol,
	}, analytics.New(analytics.DefaultConfig()), logger)

	for name, t := range cfg.Tickers {
		sources := make(map[types.Symbol]decimal.Decimal, len(t.Sources))
		for symStr, src := range t.Sources {
			sources[types.Symbol(symStr)] = decimal.NewFromFloat(src.Weight)
		}
		indexEngine.Track(types.NewIndexSymbol(name), sources, t.Timeframe, t.Lookback)
	}

	bus := pricebus.NewHub(logger)
	busStop := make(chan struct{})
	go bus.Run(busStop)

	registry := watcher.NewRegistry(st, indexEngine, bus, submitter, chainNumericID, logger)
	if err := registry.Start(ctx); err != nil {
		logger.Error("failed to start watcher registry", "error", err)
		os.Exit(1)
	}

	sliceMonitor := monitor.NewMonitor(client, st, chainNumericID, submitter.MakerAddress(), cfg.Monitor, logger)
	apiServer := api.NewServer(cfg.API.Port, st, registry, logger)

	// g's derived context is cancelled both by the shutdown signal and by
	// the first background component to return an error. Venue adapters are
	// restarted with backoff by runAdapter and the Slice Monitor always
	// returns nil, so only an Index Engine or API server error ends the
	// group and brings the whole process down.
	g, gctx := errgroup.WithContext(ctx)

	adapters := buildVenueAdapters(cfg, logger)
	for _, a := range adapters {
		a := a
		g.Go(func() error {
			runAdapter(gctx, a, indexEngine, logger)
			return nil
		})
	}
	g.Go(func() error { return indexEngine.Run(gctx, bus) })
	g.Go(func() error { sliceMonitor.Run(gctx); return nil })
	g.Go(func() error { return apiServer.Start() })

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be submitted on-chain")
	}
	logger.Info("edge keeper started",
		"tickers", len(cfg.Tickers),
		"venues", len(adapters),
		"chain_id", chainNumericID,
		"maker", submitter.MakerAddress(),
		"dry_run", cfg.DryRun,
	)

	<-gctx.Done()
	logger.Info("shutdown initiated")

	if err := apiServer.Stop(); err != nil {
		logger.Error("failed to stop api server", "error", err)
	}
	registry.Stop()
	close(busStop)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("a background component failed", "error", err)
	}
	logger.Info("edge keeper stopped")
}

// buildVenueAdapters groups every ticker's source Symbols by venue and
// constructs one Adapter per distinct venue, generalizing the teacher's
// single Polymarket exchange client to an arbitrary venue set driven
// entirely by configuration.
func buildVenueAdapters(cfg *config.Config, logger *slog.Logger) []*venue.Adapter {
	pairsByVenue := make(map[string]map[string]types.Symbol)
	for _, t := range cfg.Tickers {
		for symStr := range t.Sources {
			sym := types.Symbol(symStr)
			venueName, _, pair, ok := sym.Parts()
			if !ok {
				continue
			}
			if pairsByVenue[venueName] == nil {
				pairsByVenue[venueName] = make(map[string]types.Symbol)
			}
			pairsByVenue[venueName][pair] = sym
		}
	}

	adapters := make([]*venue.Adapter, 0, len(pairsByVenue))
	for venueName, pairs := range pairsByVenue {
		vcfg, ok := cfg.Venues[venueName]
		if !ok {
			logger.Error("no venue config for referenced venue, skipping", "venue", venueName)
			continue
		}
		proto := venue.JSONFeed{
			VenueName: venueName,
			WSURL:     vcfg.WSURL,
			RESTURL:   vcfg.RESTURL,
			PollEvery: time.Duration(vcfg.PollIntervalMs) * time.Millisecond,
		}
		adapters = append(adapters, venue.New(proto, pairs, logger))
	}
	return adapters
}

// runAdapter drives one venue Adapter, fanning its tick updates into the
// Index Engine, and restarts it with backoff if Run returns early for any
// reason other than context cancellation.
func runAdapter(ctx context.Context, a *venue.Adapter, idx *index.Engine, logger *slog.Logger) {
	go func() {
		for update := range a.Updates() {
			idx.Ingest(update)
		}
	}()

	backoff := time.Second
	for {
		err := a.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.Error("venue adapter stopped, restarting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

