package handler

import (
	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// icebergHandler implements Iceberg: amount split into equal steps, each
// released once mid has climbed to that step's target price. trigger_count
// doubles as the step cursor — it is incremented by the supervisor on every
// successful slice, before AdvanceSchedule runs.
type icebergHandler struct{}

// icebergTarget returns start + (end-start)*(step+1)/steps for the step'th
// (0-indexed) release.
func icebergTarget(p types.IcebergParams, step int64) decimal.Decimal {
	frac := decimal.NewFromInt(step + 1).DivRound(decimal.NewFromInt(p.Steps), 18)
	return p.StartPrice.Add(p.EndPrice.Sub(p.StartPrice).Mul(frac))
}

func (icebergHandler) ShouldTrigger(order types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) bool {
	p := order.Params.(types.IcebergParams)
	if order.IsExpired(nowMs) {
		return false
	}
	if order.TriggerCount >= p.Steps {
		return false
	}
	return snapshot.Mid.GreaterThanOrEqual(icebergTarget(p, order.TriggerCount))
}

func (icebergHandler) SliceAmount(order types.AdvancedOrder) decimal.Decimal {
	p := order.Params.(types.IcebergParams)
	if p.Steps <= 0 {
		return decimal.Zero
	}
	base := p.Amount.DivRound(decimal.NewFromInt(p.Steps), 18).Truncate(0)
	if order.TriggerCount == p.Steps-1 {
		return p.Amount.Sub(base.Mul(decimal.NewFromInt(p.Steps - 1)))
	}
	return base
}

func (icebergHandler) AdvanceSchedule(order *types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) {
	p := order.Params.(types.IcebergParams)
	if order.TriggerCount >= p.Steps {
		clearTrigger(order)
		return
	}
	order.NextTrigger = atPrice(icebergTarget(p, order.TriggerCount))
}
