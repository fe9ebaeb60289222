// Package handler implements the nine Order-Type Handlers: pure
// (should_trigger, slice_amount, advance_schedule) function triples, one
// per AdvancedOrder kind. Handlers hold no state of their own — all
// scheduling state lives on the order's NextTrigger cursor, so the same
// (order, snapshot, now) input always produces the same decision. This
// mirrors the teacher's strategy.Maker.computeQuotes / FlowTracker style:
// small pure math over a struct, no I/O, exercised by table tests rather
// than integration tests.
package handler

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// Handler is the capability interface each OrderKind's handler implements.
// Supervisors never inspect the concrete OrderParams type directly — they
// dispatch through For(order.Kind) and call these three methods.
type Handler interface {
	// ShouldTrigger reports whether order should emit a slice right now,
	// given the latest index snapshot and wall-clock time.
	ShouldTrigger(order types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) bool

	// SliceAmount returns the maker-asset amount the next slice should
	// carry, ignoring remaining_maker — the caller clamps to what's left.
	SliceAmount(order types.AdvancedOrder) decimal.Decimal

	// AdvanceSchedule mutates order.NextTrigger to reflect the schedule's
	// next state after a successful trigger. A zeroed NextTrigger
	// (IsZero()) means the handler's schedule has run to completion and
	// the supervisor should stop expecting further triggers from it.
	AdvanceSchedule(order *types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64)
}

// For returns the Handler implementing kind's contract.
func For(kind types.OrderKind) (Handler, error) {
	h, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("handler: unknown order kind %q", kind)
	}
	return h, nil
}

var registry = map[types.OrderKind]Handler{
	types.KindDCA:              dcaHandler{},
	types.KindTWAP:             twapHandler{},
	types.KindIceberg:          icebergHandler{},
	types.KindRange:            rangeHandler{},
	types.KindGrid:             gridHandler{},
	types.KindStopLimit:        stopLimitHandler{},
	types.KindChaseLimit:       chaseLimitHandler{},
	types.KindRangeBreakout:    rangeBreakoutHandler{},
	types.KindMomentumReversal: momentumReversalHandler{},
}

// priceOK reports whether mid respects an optional maker-side price cap.
// A nil cap always passes.
func priceOK(maxPrice *decimal.Decimal, mid decimal.Decimal) bool {
	if maxPrice == nil {
		return true
	}
	return mid.LessThanOrEqual(*maxPrice)
}

// clearTrigger zeroes order.NextTrigger, signalling schedule completion.
func clearTrigger(order *types.AdvancedOrder) {
	order.NextTrigger = types.NextTrigger{}
}

func atMs(ms int64) types.NextTrigger {
	v := ms
	return types.NextTrigger{AtMs: &v}
}

func atPrice(p decimal.Decimal) types.NextTrigger {
	return types.NextTrigger{Price: &p}
}
