package handler

import (
	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// momentumReversalHandler implements MomentumReversal: fires a fixed
// amount on every RSI/RSI-moving-average crossing, recurring indefinitely.
// RSI and its moving average are read from the IndexSnapshot's Analytics
// block; either being unavailable means should_trigger is false.
//
// Detecting a crossing (rather than a level) requires remembering which
// side of the moving average RSI was on at the last observation. That one
// bit of state is carried in NextTrigger.Grid.LastLevel (1 = RSI above its
// MA, -1 = below, 0 = not yet observed) — a reuse of the Grid cursor shape
// rather than a new NextTrigger variant, since no additional fields are
// needed.
type momentumReversalHandler struct{}

func momentumSide(a types.Analytics) int64 {
	if a.RSI >= a.RSIMA {
		return 1
	}
	return -1
}

func (momentumReversalHandler) ShouldTrigger(order types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) bool {
	a := snapshot.Analytics
	if !a.RSIAvailable || !a.RSIMAAvailable {
		return false
	}
	st := order.NextTrigger.Grid
	if st == nil || st.LastLevel == 0 {
		return false
	}
	return momentumSide(a) != st.LastLevel
}

func (momentumReversalHandler) SliceAmount(order types.AdvancedOrder) decimal.Decimal {
	return order.Params.(types.MomentumReversalParams).Amount
}

func (momentumReversalHandler) AdvanceSchedule(order *types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) {
	a := snapshot.Analytics
	if !a.RSIAvailable || !a.RSIMAAvailable {
		return
	}
	order.NextTrigger = types.NextTrigger{Grid: &types.GridState{LastLevel: momentumSide(a)}}
}
