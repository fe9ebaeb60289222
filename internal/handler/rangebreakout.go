package handler

import (
	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// rangeBreakoutHandler implements RangeBreakout: one-shot, fires the
// entire remaining amount when ADX confirms trend strength and mid has
// broken out of its EMA band. All three indicators are read from the
// IndexSnapshot's Analytics block (external collaborator); any one being
// unavailable means should_trigger is false, never zero.
type rangeBreakoutHandler struct{}

func (rangeBreakoutHandler) ShouldTrigger(order types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) bool {
	p := order.Params.(types.RangeBreakoutParams)
	a := snapshot.Analytics
	if !a.ADXAvailable || !a.ADXMAAvailable || !a.EMAAvailable {
		return false
	}
	if a.ADX <= p.ADXThreshold.InexactFloat64() {
		return false
	}
	if a.ADX <= a.ADXMA {
		return false
	}
	breakoutPct := p.BreakoutPct.InexactFloat64()
	mid := snapshot.Mid.InexactFloat64()
	band := a.EMA * breakoutPct / 100
	return mid > a.EMA+band || mid < a.EMA-band
}

func (rangeBreakoutHandler) SliceAmount(order types.AdvancedOrder) decimal.Decimal {
	return order.RemainingMaker
}

func (rangeBreakoutHandler) AdvanceSchedule(order *types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) {
	clearTrigger(order)
}
