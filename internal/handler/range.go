package handler

import (
	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// rangeHandler implements Range: amount split into equal steps, released as
// mid crosses successive levels spanning start_price..end_price. The
// direction (ascending vs descending range) is fixed by start_price vs
// end_price at order creation; trigger_count is the step cursor.
type rangeHandler struct{}

func rangeLevel(p types.RangeParams, step int64) decimal.Decimal {
	frac := decimal.NewFromInt(step + 1).DivRound(decimal.NewFromInt(p.Steps), 18)
	return p.StartPrice.Add(p.EndPrice.Sub(p.StartPrice).Mul(frac))
}

func (rangeHandler) ShouldTrigger(order types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) bool {
	p := order.Params.(types.RangeParams)
	if order.IsExpired(nowMs) {
		return false
	}
	if order.TriggerCount >= p.Steps || order.NextTrigger.Price == nil {
		return false
	}
	level := *order.NextTrigger.Price
	if p.EndPrice.GreaterThanOrEqual(p.StartPrice) {
		return snapshot.Mid.GreaterThanOrEqual(level)
	}
	return snapshot.Mid.LessThanOrEqual(level)
}

func (rangeHandler) SliceAmount(order types.AdvancedOrder) decimal.Decimal {
	p := order.Params.(types.RangeParams)
	if p.Steps <= 0 {
		return decimal.Zero
	}
	return p.Amount.DivRound(decimal.NewFromInt(p.Steps), 18)
}

func (rangeHandler) AdvanceSchedule(order *types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) {
	p := order.Params.(types.RangeParams)
	if order.TriggerCount >= p.Steps {
		clearTrigger(order)
		return
	}
	order.NextTrigger = atPrice(rangeLevel(p, order.TriggerCount))
}
