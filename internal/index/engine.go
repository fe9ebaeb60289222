// Package index implements the Index Engine: it consumes per-venue tick
// updates and produces a weighted IndexSnapshot per IndexSymbol at a fixed
// publish cadence, with rolling OHLC history, velocity/dispersion, and
// source-staleness downgrade.
package index

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/internal/analytics"
	"github.com/1edge/keeper/pkg/types"
)

// Publisher receives a finished IndexSnapshot. The Price Bus implements
// this to fan snapshots out to subscribers.
type Publisher interface {
	Publish(snapshot types.IndexSnapshot)
}

// Engine merges SourceFeedUpdate events into per-IndexSymbol aggregates and
// publishes IndexSnapshots on a fixed cadence. One Engine instance serves
// every tracked IndexSymbol; the per-tick hot path is O(1) and guarded by a
// per-symbol mutex so batched publish never blocks ingestion for long.
type Engine struct {
	publishInterval time.Duration
	batchSize       int
	freshnessWindow time.Duration
	maxPending      int

	analytics analytics.Provider

	logger *slog.Logger

	mu      sync.RWMutex
	symbols map[types.IndexSymbol]*symbolState
	order   []types.IndexSymbol // stable walk order for batching
}

// symbolState is the mutable per-IndexSymbol aggregate. Guarded by its own
// mutex so the publish walk for one symbol never blocks ingestion for
// another (teacher's market.Book pattern, one mutex per tracked entity).
type symbolState struct {
	mu sync.Mutex

	sources  map[types.Symbol]*types.SourceFeed
	lookback int

	tickCount      int64
	droppedUpdates int64
	pendingCount   int

	history   []types.OHLCBucket
	timeframe time.Duration

	last          types.IndexSnapshot
	havePublished bool
}

// Config bundles the Engine's tunables (§4.2 defaults in parens).
type Config struct {
	PublishInterval time.Duration // default 1000ms
	BatchSize       int           // default 10
	FreshnessWindow time.Duration // default 5s
	MaxPending      int           // default 3
}

// New creates an Engine with no tracked IndexSymbols; each symbol's
// constituent venue Symbols, aggregation weights, OHLC bucket width and
// lookback depth are registered afterwards with Track. provider computes the Analytics block attached to every published snapshot, from
// the same rolling OHLC history the Engine already maintains.
func New(cfg Config, provider analytics.Provider, logger *slog.Logger) *Engine {
	return &Engine{
		publishInterval: cfg.PublishInterval,
		batchSize:       cfg.BatchSize,
		freshnessWindow: cfg.FreshnessWindow,
		maxPending:      cfg.MaxPending,
		analytics:       provider,
		logger:          logger.With("component", "index"),
		symbols:         make(map[types.IndexSymbol]*symbolState),
	}
}

// Track registers an IndexSymbol with its constituent sources and OHLC
// bucket width/lookback, prior to Run. Calling Track after Run has started
// is safe but the new symbol only appears from the next publish batch on.
func (e *Engine) Track(symbol types.IndexSymbol, sources map[types.Symbol]decimal.Decimal, timeframe time.Duration, lookback int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &symbolState{
		sources:   make(map[types.Symbol]*types.SourceFeed, len(sources)),
		lookback:  lookback,
		timeframe: timeframe,
	}
	for sym, weight := range sources {
		st.sources[sym] = &types.SourceFeed{Symbol: sym, Weight: weight, Status: types.SourceInactive}
	}

	if _, exists := e.symbols[symbol]; !exists {
		e.order = append(e.order, symbol)
	}
	e.symbols[symbol] = st
}

// Ingest applies a SourceFeedUpdate to every IndexSymbol that names update's
// Symbol as a constituent source. This is the O(1) per-tick path of §4.2:
// freshness check, SourceFeed.last update, OHLC head-bucket merge,
// tick_count increment, and pending-update backpressure.
func (e *Engine) Ingest(update types.SourceFeedUpdate) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	nowMs := update.Tick.TsMs
	for _, st := range e.symbols {
		st.mu.Lock()
		feed, tracked := st.sources[update.Symbol]
		if !tracked {
			st.mu.Unlock()
			continue
		}
		if update.Tick.TsMs <= feed.Last.TsMs && feed.UpdatedMs != 0 {
			st.mu.Unlock() // out-of-order tick, drop
			continue
		}
		if st.pendingCount >= e.maxPending {
			// Backpressure boundary (§4.2/§5): once a symbol's pending
			// (unpublished) update count reaches the cap, the update is
			// dropped outright — no Last/OHLC/tickCount write — rather
			// than merged and only counted. publishOne drains pendingCount
			// to 0 every publish cycle, reopening the gate.
			st.droppedUpdates++
			st.mu.Unlock()
			continue
		}

		feed.Last = update.Tick
		feed.UpdatedMs = nowMs
		if feed.Status != types.SourceActive {
			feed.Status = types.SourceActive
		}
		feed.MarkFresh()

		mergeOHLCBucket(st, update.Tick)
		st.tickCount++
		st.pendingCount++
		st.mu.Unlock()
	}
}

// mergeOHLCBucket implements the §3 bucket rule: bucket start equals
// floor(tsMs/tf)*tf; while the tick's bucket equals the head bucket, update
// h/l/c/v in place; otherwise prepend a new bucket and trim to lookback.
// Caller holds st.mu.
func mergeOHLCBucket(st *symbolState, tick types.Tick) {
	tfMs := st.timeframe.Milliseconds()
	if tfMs <= 0 {
		tfMs = int64(time.Minute / time.Millisecond)
	}
	startMs := (tick.TsMs / tfMs) * tfMs

	if len(st.history) > 0 && st.history[0].StartMs == startMs {
		head := &st.history[0]
		if tick.Mid.GreaterThan(head.High) {
			head.High = tick.Mid
		}
		if tick.Mid.LessThan(head.Low) {
			head.Low = tick.Mid
		}
		head.Close = tick.Mid
		head.Volume = head.Volume.Add(tick.Volume)
		return
	}

	bucket := types.OHLCBucket{
		StartMs: startMs,
		Open:    tick.Mid,
		High:    tick.Mid,
		Low:     tick.Mid,
		Close:   tick.Mid,
		Volume:  tick.Volume,
	}
	st.history = append([]types.OHLCBucket{bucket}, st.history...)
	if st.lookback > 0 && len(st.history) > st.lookback {
		st.history = st.history[:st.lookback]
	}
}

// Run drives the publish loop until ctx is cancelled, walking every tracked
// IndexSymbol in batches of BatchSize and yielding between batches so the
// engine never monopolises the scheduler.
func (e *Engine) Run(ctx context.Context, pub Publisher) error {
	ticker := time.NewTicker(e.publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.publishAll(ctx, pub); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) publishAll(ctx context.Context, pub Publisher) error {
	e.mu.RLock()
	symbols := make([]types.IndexSymbol, len(e.order))
	copy(symbols, e.order)
	e.mu.RUnlock()

	nowMs := time.Now().UnixMilli()

	for start := 0; start < len(symbols); start += e.batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := start + e.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		for _, symbol := range symbols[start:end] {
			e.publishOne(symbol, nowMs, pub)
		}
	}
	return nil
}

// Snapshot returns the most recently published IndexSnapshot for symbol, or
// ok=false if nothing has been published yet. Useful for a Watcher
// Supervisor bootstrapping state without waiting on the Price Bus.
func (e *Engine) Snapshot(symbol types.IndexSymbol) (types.IndexSnapshot, bool) {
	e.mu.RLock()
	st, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if !ok {
		return types.IndexSnapshot{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.last, st.havePublished
}

func (e *Engine) publishOne(symbol types.IndexSymbol, nowMs int64, pub Publisher) {
	e.mu.RLock()
	st, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if !ok {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	snapshot, published := computeSnapshot(symbol, st, nowMs, e.freshnessWindow, e.logger)
	if published && e.analytics != nil {
		snapshot.Analytics = e.analytics.Compute(st.history)
	}
	st.tickCount = 0
	st.pendingCount = 0

	if !published {
		return // previous value remains authoritative for readers, per §4.2
	}
	st.last = snapshot
	st.havePublished = true
	pub.Publish(snapshot)
}

// computeSnapshot recomputes the weighted bid/ask/mid, velocity, and
// dispersion over sources fresh within freshnessWindow, demoting sources
// stale for a second consecutive window to Inactive. Returns published=false
// if no source is currently fresh — the caller must keep the prior snapshot.
func computeSnapshot(symbol types.IndexSymbol, st *symbolState, nowMs int64, freshnessWindow time.Duration, logger *slog.Logger) (types.IndexSnapshot, bool) {
	type active struct {
		feed *types.SourceFeed
	}
	var fresh []active

	freshMs := freshnessWindow.Milliseconds()
	for _, feed := range st.sources {
		if feed.UpdatedMs == 0 || nowMs-feed.UpdatedMs > freshMs {
			feed.MarkExcluded()
			continue
		}
		feed.MarkFresh()
		if feed.Status != types.SourceActive {
			feed.Status = types.SourceActive
		}
		fresh = append(fresh, active{feed: feed})
	}

	if len(fresh) == 0 {
		return types.IndexSnapshot{}, false
	}

	var weightSum, bidSum, askSum, vbidSum, vaskSum, volSum decimal.Decimal
	for _, a := range fresh {
		w := a.feed.Weight
		weightSum = weightSum.Add(w)
		bidSum = bidSum.Add(w.Mul(a.feed.Last.Bid))
		askSum = askSum.Add(w.Mul(a.feed.Last.Ask))

		v := a.feed.Last.Volume
		volSum = volSum.Add(v)
		vbidSum = vbidSum.Add(v.Mul(a.feed.Last.Bid))
		vaskSum = vaskSum.Add(v.Mul(a.feed.Last.Ask))
	}
	if weightSum.IsZero() {
		return types.IndexSnapshot{}, false
	}

	bid := bidSum.DivRound(weightSum, 18)
	ask := askSum.DivRound(weightSum, 18)
	mid := bid.Add(ask).DivRound(decimal.NewFromInt(2), 18)

	// VBid/VAsk are the volume-weighted counterparts to Bid/Ask: when no
	// source reports volume, they fall back to the weight-weighted value.
	vbid, vask := bid, ask
	if !volSum.IsZero() {
		vbid = vbidSum.DivRound(volSum, 18)
		vask = vaskSum.DivRound(volSum, 18)
	}

	dispersion := 0.0
	if len(fresh) > 1 && !mid.IsZero() {
		midF, _ := mid.Float64()
		var sumSq float64
		for _, a := range fresh {
			m, _ := a.feed.Last.Mid.Float64()
			d := m - midF
			sumSq += d * d
		}
		variance := sumSq / float64(len(fresh))
		dispersion = math.Sqrt(variance) / midF * 100
	}

	velocity := math.Sqrt(float64(st.tickCount))

	return types.IndexSnapshot{
		Symbol:     symbol,
		Bid:        bid,
		Ask:        ask,
		Mid:        mid,
		VBid:       vbid,
		VAsk:       vask,
		Velocity:   velocity,
		Dispersion: dispersion,
		TsMs:       nowMs,
		History:    append([]types.OHLCBucket(nil), st.history...),
	}, true
}
