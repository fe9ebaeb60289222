package handler

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func momentumOrder() types.AdvancedOrder {
	p := types.MomentumReversalParams{RSIPeriod: 14, RSIMAPeriod: 9, Amount: decimal.RequireFromString("3")}
	return types.AdvancedOrder{Kind: types.KindMomentumReversal, Params: p}
}

func TestMomentumReversalUnseededNeverTriggers(t *testing.T) {
	t.Parallel()
	h := momentumReversalHandler{}
	order := momentumOrder()
	snap := types.IndexSnapshot{Analytics: types.Analytics{RSI: 60, RSIAvailable: true, RSIMA: 50, RSIMAAvailable: true}}
	if h.ShouldTrigger(order, snap, 0) {
		t.Error("expected no trigger before initial side is seeded")
	}
}

func TestMomentumReversalTriggersOnCrossing(t *testing.T) {
	t.Parallel()
	h := momentumReversalHandler{}
	order := momentumOrder()

	above := types.IndexSnapshot{Analytics: types.Analytics{RSI: 60, RSIAvailable: true, RSIMA: 50, RSIMAAvailable: true}}
	h.AdvanceSchedule(&order, above, 0) // seed: RSI above MA

	if h.ShouldTrigger(order, above, 0) {
		t.Error("expected no trigger while RSI stays on the same side")
	}

	below := types.IndexSnapshot{Analytics: types.Analytics{RSI: 40, RSIAvailable: true, RSIMA: 50, RSIMAAvailable: true}}
	if !h.ShouldTrigger(order, below, 0) {
		t.Error("expected trigger when RSI crosses to the other side")
	}
	if got := h.SliceAmount(order); !got.Equal(decimal.RequireFromString("3")) {
		t.Errorf("SliceAmount = %v, want 3", got)
	}

	h.AdvanceSchedule(&order, below, 0)
	if h.ShouldTrigger(order, below, 0) {
		t.Error("expected no immediate re-trigger after crossing is recorded")
	}
}

func TestMomentumReversalUnavailableIndicatorNeverTriggers(t *testing.T) {
	t.Parallel()
	h := momentumReversalHandler{}
	order := momentumOrder()
	order.NextTrigger = types.NextTrigger{Grid: &types.GridState{LastLevel: 1}}
	snap := types.IndexSnapshot{Analytics: types.Analytics{RSIAvailable: false}}
	if h.ShouldTrigger(order, snap, 0) {
		t.Error("expected no trigger when RSI is unavailable")
	}
}
