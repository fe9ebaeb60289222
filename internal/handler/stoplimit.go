package handler

import (
	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// stopLimitHandler implements StopLimit: one-shot, fires the entire
// remaining amount once mid reaches stop_price.
type stopLimitHandler struct{}

func (stopLimitHandler) ShouldTrigger(order types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) bool {
	p := order.Params.(types.StopLimitParams)
	if order.IsExpired(nowMs) {
		return false
	}
	return snapshot.Mid.GreaterThanOrEqual(p.StopPrice)
}

func (stopLimitHandler) SliceAmount(order types.AdvancedOrder) decimal.Decimal {
	return order.RemainingMaker
}

func (stopLimitHandler) AdvanceSchedule(order *types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) {
	clearTrigger(order)
}
