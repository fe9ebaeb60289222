// Package watcher implements the Watcher Registry: one supervisor task per
// non-terminal AdvancedOrder (§4.5), generalizing the teacher's
// engine.Engine slots-map pattern from "one Avellaneda-Stoikov Maker per
// traded market" to "one handler-driven schedule per advanced order".
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/internal/handler"
	"github.com/1edge/keeper/internal/index"
	"github.com/1edge/keeper/internal/pricebus"
	"github.com/1edge/keeper/internal/protocol"
	"github.com/1edge/keeper/internal/store"
	"github.com/1edge/keeper/pkg/types"
)

// pollInterval is the scheduled-timer half of §4.5's "triggered either by a
// scheduled timer or by Price Bus deliveries" — it catches time-driven
// handlers (DCA, TWAP) between Price Bus deliveries, and re-evaluates
// expiry even for a symbol that has gone quiet.
const pollInterval = 2 * time.Second

// maxSubmitRetries bounds the consecutive submit failures a supervisor
// tolerates before giving up and transitioning the order to Failed (§4.6).
const maxSubmitRetries = 5

var (
	initialSubmitBackoff = time.Second
	maxSubmitBackoff     = 60 * time.Second
)

// supervisor runs the per-order loop described in §4.5: load latest state,
// check expiry, ask the order's handler whether to trigger, and on a
// trigger submit a slice and atomically advance the order's schedule.
// Holds no order state itself — every tick re-reads the Order Store, so a
// concurrent mutation from the Slice Monitor (a fill, a cancellation) is
// always picked up on the next evaluation.
type supervisor struct {
	orderID string
	chainID int64

	store     *store.Store
	index     *index.Engine
	bus       *pricebus.Hub
	submitter *protocol.Submitter

	// consecutiveFailures counts consecutive submit errors; reset on any
	// successful slice. Process-local, not persisted — see
	// handleSubmitFailure.
	consecutiveFailures int

	logger *slog.Logger
}

func newSupervisor(orderID string, chainID int64, st *store.Store, idx *index.Engine, bus *pricebus.Hub, submitter *protocol.Submitter, logger *slog.Logger) *supervisor {
	return &supervisor{
		orderID:   orderID,
		chainID:   chainID,
		store:     st,
		index:     idx,
		bus:       bus,
		submitter: submitter,
		logger:    logger.With("component", "watcher", "order_id", orderID),
	}
}

// run blocks until ctx is cancelled or the order reaches a terminal state.
func (s *supervisor) run(ctx context.Context) {
	order, err := s.store.GetOrder(ctx, s.orderID)
	if err != nil {
		s.logger.Error("load order at supervisor start", "error", err)
		return
	}

	h, err := handler.For(order.Kind)
	if err != nil {
		s.logger.Error("resolve handler", "error", err)
		return
	}

	listener, unsubscribe := s.bus.SubscribeInternal(order.Symbol)
	defer unsubscribe()

	snapshot, haveSnapshot := s.index.Snapshot(order.Symbol)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	if haveSnapshot {
		if !s.evaluate(ctx, h, snapshot) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case snap, ok := <-listener.Chan():
			if !ok {
				return
			}
			snapshot = snap
			if !s.evaluate(ctx, h, snapshot) {
				return
			}

		case <-ticker.C:
			if cur, ok := s.index.Snapshot(order.Symbol); ok {
				snapshot = cur
			}
			if !s.evaluate(ctx, h, snapshot) {
				return
			}
		}
	}
}

// evaluate runs one iteration of the §4.5 supervisor loop against the
// latest persisted order state. It returns false once the order has
// reached a terminal state and the supervisor should stop.
func (s *supervisor) evaluate(ctx context.Context, h handler.Handler, snapshot types.IndexSnapshot) bool {
	nowMs := time.Now().UnixMilli()

	order, err := s.store.GetOrder(ctx, s.orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false
		}
		s.logger.Error("load order", "error", err)
		return true
	}
	if order.Status.IsTerminal() {
		return false
	}

	if order.IsExpired(nowMs) {
		s.transitionTerminal(ctx, types.StatusExpired, types.EventOrderExpired, "", nowMs)
		return false
	}

	// Every handler's ShouldTrigger treats an unarmed NextTrigger cursor as
	// nil-safe (TWAP and DCA check AtMs != nil, Grid/ChaseLimit/Range check
	// their pointer fields, Iceberg/StopLimit/RangeBreakout never consult
	// NextTrigger at all), so the very first evaluation can call it
	// directly — this is what lets TWAP's immediate first trigger at
	// now == start_ms fire on this same tick instead of being deferred
	// behind a seed-only evaluation.
	if !h.ShouldTrigger(order, snapshot, nowMs) {
		// No trigger this tick. If the schedule has never been armed, seed
		// it now so later evaluations have a baseline to compare against;
		// handlers that need no such baseline treat this as a harmless
		// no-op via their own AdvanceSchedule.
		if order.NextTrigger.IsZero() {
			if _, err := s.store.UpdateOrder(ctx, s.orderID, func(o *types.AdvancedOrder) error {
				h.AdvanceSchedule(o, snapshot, nowMs)
				return nil
			}); err != nil && !errors.Is(err, store.ErrVersionConflict) {
				s.logger.Error("seed schedule", "error", err)
			}
		}
		return true
	}

	amount := h.SliceAmount(order)
	if amount.GreaterThan(order.RemainingMaker) {
		amount = order.RemainingMaker
	}
	if amount.Sign() <= 0 {
		return true
	}

	limitPrice := limitPriceFor(order, snapshot)
	takingAmount := takingAmountFor(order.Side, amount, limitPrice)

	hash, err := s.submitter.SubmitSlice(ctx, s.chainID, protocol.SliceOrder{
		Receiver:     order.Owner,
		MakerAsset:   order.MakerAsset,
		TakerAsset:   order.TakerAsset,
		MakingAmount: amount,
		TakingAmount: takingAmount,
	})
	if err != nil {
		return s.handleSubmitFailure(ctx, order.ID, hash, err, nowMs)
	}

	s.recordSlice(ctx, h, order.ID, hash, amount, takingAmount, limitPrice, snapshot, nowMs)
	return true
}

// limitPriceFor returns the limit price a slice should submit at. StopLimit
// carries its own user-declared limit_price (§4.8) — a real stop-limit
// order fills at the price the user named, not at a mid-derived one — so
// that value is used directly rather than routed through
// DeriveLimitPrice. Every other order kind still derives its limit from
// the current index snapshot.
func limitPriceFor(order types.AdvancedOrder, snapshot types.IndexSnapshot) decimal.Decimal {
	if p, ok := order.Params.(types.StopLimitParams); ok {
		return p.LimitPrice
	}
	return protocol.DeriveLimitPrice(snapshot, order.Side)
}

// takingAmountFor converts a maker-asset slice amount into its counterpart
// taking amount at limitPrice: a sell slice hands over the index's base
// asset and receives making*limit in quote terms; a buy slice hands over
// quote and receives making/limit in base terms.
func takingAmountFor(side types.Side, making, limitPrice decimal.Decimal) decimal.Decimal {
	if side == types.SideBuy {
		if limitPrice.Sign() <= 0 {
			return decimal.Zero
		}
		return making.DivRound(limitPrice, 18)
	}
	return making.Mul(limitPrice)
}

// recordSlice persists a successful submission: advances trigger_count and
// the handler's schedule, appends the hash, activates a still-Pending
// order, upserts the SliceRecord, and appends a SliceEmitted event — the
// sequence the Order Store's Mutator exists to make atomic.
func (s *supervisor) recordSlice(ctx context.Context, h handler.Handler, orderID, hash string, making, taking, limitPrice decimal.Decimal, snapshot types.IndexSnapshot, nowMs int64) {
	s.consecutiveFailures = 0

	_, err := s.store.UpdateOrder(ctx, orderID, func(o *types.AdvancedOrder) error {
		o.TriggerCount++
		o.SliceHashes = append(o.SliceHashes, hash)
		o.RemainingMaker = o.RemainingMaker.Sub(making)
		if o.RemainingMaker.Sign() < 0 {
			o.RemainingMaker = decimal.Zero
		}
		if o.Status == types.StatusPending {
			o.Status = types.StatusActive
		}
		h.AdvanceSchedule(o, snapshot, nowMs)
		return nil
	})
	if err != nil {
		s.logger.Error("persist slice trigger", "hash", hash, "error", err)
	}

	if err := s.store.UpsertSlice(ctx, types.SliceRecord{
		Hash:        hash,
		ParentID:    orderID,
		Making:      making,
		Taking:      taking,
		LimitPrice:  limitPrice,
		SubmittedMs: nowMs,
		Remaining:   making,
	}); err != nil {
		s.logger.Error("upsert slice record", "hash", hash, "error", err)
	}

	if err := s.store.AppendEvent(ctx, types.OrderEvent{
		ParentID: orderID,
		Kind:     types.EventSliceEmitted,
		Detail:   hash,
		TsMs:     nowMs,
	}); err != nil {
		s.logger.Error("append slice emitted event", "error", err)
	}
}

// handleSubmitFailure records the failure and, once maxSubmitRetries
// consecutive failures have been observed on this order, transitions it to
// Failed and stops the supervisor (§4.6/§7). The in-process retry counter
// lives on the goroutine, not the order, since it's a process-local backoff
// decision rather than durable state.
func (s *supervisor) handleSubmitFailure(ctx context.Context, orderID, hash string, submitErr error, nowMs int64) bool {
	s.consecutiveFailures++
	detail := submitErr.Error()

	if _, err := s.store.UpdateOrder(ctx, orderID, func(o *types.AdvancedOrder) error {
		o.LastError = detail
		return nil
	}); err != nil && !errors.Is(err, store.ErrVersionConflict) {
		s.logger.Error("persist last_error", "error", err)
	}

	if err := s.store.AppendEvent(ctx, types.OrderEvent{
		ParentID: orderID,
		Kind:     types.EventSliceFailed,
		Detail:   detail,
		TsMs:     nowMs,
	}); err != nil {
		s.logger.Error("append slice failed event", "error", err)
	}

	s.logger.Warn("slice submission failed", "hash", hash, "attempt", s.consecutiveFailures, "error", submitErr)

	if s.consecutiveFailures < maxSubmitRetries {
		s.sleepBackoff(ctx, s.consecutiveFailures)
		return true
	}

	s.transitionTerminal(ctx, types.StatusFailed, types.EventOrderFailed, detail, nowMs)
	return false
}

// sleepBackoff blocks this order's supervisor goroutine for an exponential
// backoff (1s doubling, capped at 60s) keyed on the consecutive-failure
// count, or until ctx is cancelled.
func (s *supervisor) sleepBackoff(ctx context.Context, attempt int) {
	t := time.NewTimer(backoffDuration(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// backoffDuration doubles initialSubmitBackoff per attempt (1-indexed),
// capped at maxSubmitBackoff.
func backoffDuration(attempt int) time.Duration {
	wait := initialSubmitBackoff << uint(attempt-1)
	if wait > maxSubmitBackoff || wait <= 0 {
		return maxSubmitBackoff
	}
	return wait
}

// transitionTerminal moves the order to a terminal status and appends the
// matching audit event. Best-effort: a version conflict here just means a
// concurrent writer (e.g. the Slice Monitor) already moved the order on,
// which is itself a terminal outcome the next evaluate call will observe.
func (s *supervisor) transitionTerminal(ctx context.Context, status types.OrderStatus, kind types.EventKind, detail string, nowMs int64) {
	_, err := s.store.UpdateOrder(ctx, s.orderID, func(o *types.AdvancedOrder) error {
		if o.Status.IsTerminal() {
			return fmt.Errorf("order %s already terminal (%s)", o.ID, o.Status)
		}
		o.Status = status
		if detail != "" {
			o.LastError = detail
		}
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrVersionConflict) {
		s.logger.Error("transition terminal", "status", status, "error", err)
	}

	if err := s.store.AppendEvent(ctx, types.OrderEvent{
		ParentID: s.orderID,
		Kind:     kind,
		Detail:   detail,
		TsMs:     nowMs,
	}); err != nil {
		s.logger.Error("append terminal event", "kind", kind, "error", err)
	}
}
