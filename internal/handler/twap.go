package handler

import (
	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// twapHandler implements TWAP: amount split evenly over equal intervals
// within [start_ms, end_ms); no slice fires once now reaches end_ms. Missed intervals (price cap, a gap in
// supervision) are never made up — see the TWAP Open Question decision.
type twapHandler struct{}

func (twapHandler) ShouldTrigger(order types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) bool {
	p := order.Params.(types.TWAPParams)
	if nowMs < p.StartMs || nowMs >= p.EndMs {
		return false
	}
	// A nil NextTrigger.AtMs means the schedule has never armed — at
	// start_ms that is the first interval becoming due, not an absence of
	// one, so the window check above is the only gate. Once armed, the
	// cursor gates every later interval as usual.
	if order.NextTrigger.AtMs != nil && nowMs < *order.NextTrigger.AtMs {
		return false
	}
	if order.TriggerCount >= p.TotalIntervals() {
		return false
	}
	return priceOK(p.MaxPrice, snapshot.Mid)
}

func (twapHandler) SliceAmount(order types.AdvancedOrder) decimal.Decimal {
	p := order.Params.(types.TWAPParams)
	total := p.TotalIntervals()
	if total <= 0 {
		return decimal.Zero
	}
	return p.Amount.DivRound(decimal.NewFromInt(total), 18)
}

func (twapHandler) AdvanceSchedule(order *types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) {
	p := order.Params.(types.TWAPParams)
	next := nowMs + p.IntervalMs
	if next > p.EndMs || order.TriggerCount >= p.TotalIntervals() {
		clearTrigger(order)
		return
	}
	order.NextTrigger = atMs(next)
}
