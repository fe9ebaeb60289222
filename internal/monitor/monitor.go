// Package monitor implements the Slice Monitor (§4.7): a single polling
// task that reads the protocol API's standing-order listing for the
// keeper's maker address and reconciles fills back onto each
// AdvancedOrder's SliceRecords, independent of any one order's supervisor.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/internal/config"
	"github.com/1edge/keeper/internal/protocol"
	"github.com/1edge/keeper/internal/store"
	"github.com/1edge/keeper/pkg/types"
)

// missingPollsLimit is the number of consecutive polls a slice hash may be
// absent from the protocol API response before it is marked removed.
const missingPollsLimit = 2

// Monitor periodically polls the protocol API for the maker's outstanding
// orders and reconciles remaining amounts onto stored SliceRecords,
// generalizing the teacher's Scanner (poll Gamma API, rank markets) to
// "poll orderbook API, reconcile fills".
type Monitor struct {
	client *protocol.Client
	store  *store.Store

	chainID int64
	maker   string

	pollInterval time.Duration
	maxRetries   int

	logger *slog.Logger
}

// NewMonitor builds a Slice Monitor bound to one chain and maker address.
// maker is whichever address the Slice Submitter actually places as the
// nominal maker (the delegate-proxy address, or the signer's own EOA),
// since that is the address the protocol API indexes listings under.
func NewMonitor(client *protocol.Client, st *store.Store, chainID int64, maker string, cfg config.MonitorConfig, logger *slog.Logger) *Monitor {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	pollInterval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &Monitor{
		client:       client,
		store:        st,
		chainID:      chainID,
		maker:        maker,
		pollInterval: pollInterval,
		maxRetries:   maxRetries,
		logger:       logger.With("component", "monitor"),
	}
}

// Run polls immediately, then on pollInterval, until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.poll(ctx)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// poll runs one reconciliation pass over every non-terminal AdvancedOrder.
// A failed API fetch or store read is logged and deferred to the next
// tick — matching the teacher's scan(), which never treats a failed pass
// as fatal to the polling loop.
func (m *Monitor) poll(ctx context.Context) {
	listings, err := m.fetchListings(ctx)
	if err != nil {
		m.logger.Error("poll protocol api", "error", err)
		return
	}

	orders, err := m.store.ListPending(ctx)
	if err != nil {
		m.logger.Error("list pending orders", "error", err)
		return
	}

	nowMs := time.Now().UnixMilli()
	for _, order := range orders {
		m.reconcileOrder(ctx, order, listings, nowMs)
	}
}

// fetchListings calls ListOrders with exponential backoff (doubling,
// capped at 30s) across maxRetries attempts, per §4.7's "Backoff: On API
// failure, exponential backoff (doubling, cap 30s)".
func (m *Monitor) fetchListings(ctx context.Context) (map[string]types.ProtocolOrderListing, error) {
	wait := time.Second
	const maxWait = 30 * time.Second

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		listings, err := m.client.ListOrders(ctx, m.chainID, m.maker)
		if err == nil {
			return listingsByHash(listings), nil
		}
		lastErr = err

		if attempt == m.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > maxWait {
			wait = maxWait
		}
	}
	return nil, lastErr
}

func listingsByHash(listings []types.ProtocolOrderListing) map[string]types.ProtocolOrderListing {
	out := make(map[string]types.ProtocolOrderListing, len(listings))
	for _, l := range listings {
		out[l.OrderHash] = l
	}
	return out
}

// reconcileOrder applies one poll's listings to order's known slices and,
// if anything changed, re-aggregates total_filled/remaining_maker onto the
// parent and transitions its status per §4.7's algorithm.
func (m *Monitor) reconcileOrder(ctx context.Context, order types.AdvancedOrder, listings map[string]types.ProtocolOrderListing, nowMs int64) {
	slices, err := m.store.ListSlicesForOrder(ctx, order.ID)
	if err != nil {
		m.logger.Error("list slices", "order_id", order.ID, "error", err)
		return
	}
	if len(slices) == 0 {
		return
	}

	updated, changed, anyFillDelta, err := applySlicePoll(slices, listings)
	if err != nil {
		m.logger.Error("apply slice poll", "order_id", order.ID, "error", err)
		return
	}
	if !changed {
		return
	}

	totalFilled := decimal.Zero
	for _, sl := range updated {
		if err := m.store.UpsertSlice(ctx, sl); err != nil {
			m.logger.Error("upsert slice", "hash", sl.Hash, "error", err)
		}
		totalFilled = totalFilled.Add(sl.FillDelta())
	}

	var emitKind types.EventKind
	emitted := false
	_, err = m.store.UpdateOrder(ctx, order.ID, func(o *types.AdvancedOrder) error {
		if o.Status.IsTerminal() {
			return fmt.Errorf("order %s already terminal (%s)", o.ID, o.Status)
		}
		o.TotalFilled = totalFilled
		o.RemainingMaker = o.OriginalMaking.Sub(totalFilled)
		if o.RemainingMaker.Sign() <= 0 {
			o.RemainingMaker = decimal.Zero
			if o.Status != types.StatusFilled {
				o.Status = types.StatusFilled
				emitKind, emitted = types.EventOrderFilled, true
			}
		} else if anyFillDelta && o.Status != types.StatusPartiallyFilled {
			o.Status = types.StatusPartiallyFilled
			emitKind, emitted = types.EventOrderPartiallyFilled, true
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, store.ErrVersionConflict) {
			m.logger.Error("reconcile order", "order_id", order.ID, "error", err)
		}
		return
	}

	if emitted {
		if err := m.store.AppendEvent(ctx, types.OrderEvent{ParentID: order.ID, Kind: emitKind, TsMs: nowMs}); err != nil {
			m.logger.Error("append event", "kind", emitKind, "error", err)
		}
	}
}

// applySlicePoll computes each slice's updated state against one poll's
// listings response. Pure function, independent of the store or the HTTP
// client, so it is directly unit-testable — mirroring the teacher's
// preference (maker_test.go's computeQuotes) for testing the arithmetic
// core of a poll/trigger loop without driving the loop itself.
//
// changed reports whether any slice's persisted fields need rewriting.
// anyFillDelta reports whether at least one slice's remaining amount
// decreased this poll, which the caller uses to decide whether to move the
// parent order to PartiallyFilled.
func applySlicePoll(slices []types.SliceRecord, listings map[string]types.ProtocolOrderListing) (updated []types.SliceRecord, changed bool, anyFillDelta bool, err error) {
	updated = make([]types.SliceRecord, len(slices))

	for i, sl := range slices {
		if sl.InvalidReason != "" {
			updated[i] = sl
			continue
		}

		listing, ok := listings[sl.Hash]
		if !ok {
			sl.MissingPolls++
			if sl.MissingPolls >= missingPollsLimit {
				sl.InvalidReason = "removed"
			}
			updated[i] = sl
			changed = true
			continue
		}

		if sl.MissingPolls != 0 {
			sl.MissingPolls = 0
			changed = true
		}
		remaining, perr := decimal.NewFromString(listing.RemainingMakerAmount)
		if perr != nil {
			return nil, false, false, fmt.Errorf("parse remaining_maker_amount for %s: %w", sl.Hash, perr)
		}

		if !sl.Remaining.Equal(remaining) || sl.InvalidReason != listing.OrderInvalidReason {
			if remaining.LessThan(sl.Remaining) {
				anyFillDelta = true
			}
			sl.Remaining = remaining
			sl.InvalidReason = listing.OrderInvalidReason
			changed = true
		}
		updated[i] = sl
	}

	return updated, changed, anyFillDelta, nil
}
