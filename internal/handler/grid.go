package handler

import (
	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// gridHandler implements Grid: amount split evenly across price levels
// spanning start_price..end_price at step_pct spacing, firing a slice on
// every level crossing in either direction. Runs indefinitely while mid
// stays in range; it never clears its own schedule, matching the Grid
// direction Open Question (direction is a telemetry marker, slice size is
// direction-independent).
//
// An order with no grid state yet (NextTrigger.Grid == nil) has not
// observed its first price; that first observation only establishes the
// starting level and is never itself a crossing: ShouldTrigger returns
// false for it, and the supervisor, seeing a non-triggering tick with a
// zero NextTrigger, calls AdvanceSchedule once to seed the grid state.
type gridHandler struct{}

// gridLevel returns floor((mid-start)/step_size), the discrete level index
// the given mid falls on.
func gridLevel(p types.GridParams, mid decimal.Decimal) int64 {
	step := p.StepSize()
	if step.Sign() <= 0 {
		return 0
	}
	return mid.Sub(p.StartPrice).Div(step).Floor().IntPart()
}

func (gridHandler) ShouldTrigger(order types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) bool {
	p := order.Params.(types.GridParams)
	if snapshot.Mid.LessThan(p.StartPrice) || snapshot.Mid.GreaterThan(p.EndPrice) {
		return false
	}
	current := gridLevel(p, snapshot.Mid)
	st := order.NextTrigger.Grid
	if st == nil {
		return false
	}
	return current != st.LastLevel
}

func (gridHandler) SliceAmount(order types.AdvancedOrder) decimal.Decimal {
	p := order.Params.(types.GridParams)
	total := p.TotalLevels()
	if total <= 0 {
		return decimal.Zero
	}
	return p.Amount.DivRound(decimal.NewFromInt(total), 18)
}

func (gridHandler) AdvanceSchedule(order *types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) {
	p := order.Params.(types.GridParams)
	current := gridLevel(p, snapshot.Mid)

	prev := order.NextTrigger.Grid
	state := &types.GridState{LastLevel: current}
	if prev != nil {
		state.BuyLevels = append(append([]int64(nil), prev.BuyLevels...))
		state.SellLevels = append(append([]int64(nil), prev.SellLevels...))
		if current > prev.LastLevel {
			state.BuyLevels = append(state.BuyLevels, current)
		} else if current < prev.LastLevel {
			state.SellLevels = append(state.SellLevels, current)
		}
	}
	order.NextTrigger = types.NextTrigger{Grid: state}
}
