package handler

import (
	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// dcaHandler implements DCA: a fixed amount on a fixed interval, optionally
// capped by a maximum acceptable price. Recurring indefinitely — it never
// clears its own schedule; the order completes when remaining_maker hits
// zero.
type dcaHandler struct{}

func (dcaHandler) ShouldTrigger(order types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) bool {
	if order.NextTrigger.AtMs == nil || nowMs < *order.NextTrigger.AtMs {
		return false
	}
	p := order.Params.(types.DCAParams)
	return priceOK(p.MaxPrice, snapshot.Mid)
}

func (dcaHandler) SliceAmount(order types.AdvancedOrder) decimal.Decimal {
	return order.Params.(types.DCAParams).Amount
}

func (dcaHandler) AdvanceSchedule(order *types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) {
	p := order.Params.(types.DCAParams)
	order.NextTrigger = atMs(nowMs + p.IntervalMs)
}
