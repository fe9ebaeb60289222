package handler

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func twapParams() types.TWAPParams {
	maxPrice := decimal.RequireFromString("2100")
	return types.TWAPParams{
		StartMs: 0, EndMs: 600000, IntervalMs: 60000,
		Amount: decimal.RequireFromString("60"), MaxPrice: &maxPrice,
	}
}

func TestTWAPTotalIntervalsAndSliceAmount(t *testing.T) {
	t.Parallel()
	h := twapHandler{}
	p := twapParams()
	order := types.AdvancedOrder{Kind: types.KindTWAP, Params: p}
	if got := p.TotalIntervals(); got != 10 {
		t.Fatalf("TotalIntervals = %d, want 10", got)
	}
	amt := h.SliceAmount(order)
	if !amt.Equal(decimal.RequireFromString("6")) {
		t.Errorf("SliceAmount = %v, want 6", amt)
	}
}

// TestTWAPSkipsPriceSpikeWithoutCatchup exercises the S2 worked example:
// the t=120000 slice is skipped because mid exceeds max_price, and the
// schedule does not make it up.
func TestTWAPSkipsPriceSpikeWithoutCatchup(t *testing.T) {
	t.Parallel()
	h := twapHandler{}
	p := twapParams()
	at := int64(120000)
	order := types.AdvancedOrder{
		Kind: types.KindTWAP, Params: p, TriggerCount: 2,
		NextTrigger: types.NextTrigger{AtMs: &at},
	}

	if h.ShouldTrigger(order, snapshotAt("2150"), 120000) {
		t.Error("expected no trigger while mid exceeds max_price")
	}

	// The supervisor does not call AdvanceSchedule on a skipped tick, so
	// next_trigger stays at 120000 until price recovers on a later tick.
	if !h.ShouldTrigger(order, snapshotAt("2000"), 180000) {
		t.Error("expected trigger once price recovers and time has passed")
	}
}

// TestTWAPTriggersImmediatelyAtStart exercises the S2 worked example's
// boundary: an unseeded order (NextTrigger zero) evaluated at now==start_ms
// must fire right away rather than waiting a full interval.
func TestTWAPTriggersImmediatelyAtStart(t *testing.T) {
	t.Parallel()
	h := twapHandler{}
	p := twapParams()
	order := types.AdvancedOrder{Kind: types.KindTWAP, Params: p}
	if !h.ShouldTrigger(order, snapshotAt("2000"), 0) {
		t.Error("expected immediate trigger at now == start_ms on an unseeded order")
	}
}

func TestTWAPAdvanceScheduleClearsPastEnd(t *testing.T) {
	t.Parallel()
	h := twapHandler{}
	p := twapParams()
	order := types.AdvancedOrder{Kind: types.KindTWAP, Params: p, TriggerCount: 10}
	h.AdvanceSchedule(&order, snapshotAt("2000"), 540000)
	if !order.NextTrigger.IsZero() {
		t.Errorf("expected cleared schedule, got %+v", order.NextTrigger)
	}
}

func TestTWAPAdvanceScheduleSetsNextInterval(t *testing.T) {
	t.Parallel()
	h := twapHandler{}
	p := twapParams()
	order := types.AdvancedOrder{Kind: types.KindTWAP, Params: p, TriggerCount: 3}
	h.AdvanceSchedule(&order, snapshotAt("2000"), 180000)
	if order.NextTrigger.AtMs == nil || *order.NextTrigger.AtMs != 240000 {
		t.Errorf("NextTrigger.AtMs = %v, want 240000", order.NextTrigger.AtMs)
	}
}
