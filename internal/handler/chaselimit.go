package handler

import (
	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// chaseLimitHandler implements ChaseLimit: fires the entire remaining
// amount whenever mid has moved distance_pct away from the last reference
// price, re-arming immediately with the new mid as reference. Per the
// ChaseLimit Open Question, there is no cool-down and no stored trigger
// timestamp — only a same-tick
// re-trigger guard, which the supervisor gets for free since
// AdvanceSchedule resets the reference before the next snapshot is
// evaluated.
//
// The reference price is carried in NextTrigger.Price. An order with no
// reference yet (Price == nil) is considered unarmed and ShouldTrigger
// returns false for it; the supervisor then seeds it by calling
// AdvanceSchedule on that non-triggering tick, so that initial arming
// never itself counts as a trigger.
type chaseLimitHandler struct{}

func (chaseLimitHandler) ShouldTrigger(order types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) bool {
	p := order.Params.(types.ChaseLimitParams)
	if order.IsExpired(nowMs) {
		return false
	}
	if order.NextTrigger.Price == nil {
		return false
	}
	if !priceOK(p.MaxPrice, snapshot.Mid) {
		return false
	}
	ref := *order.NextTrigger.Price
	if ref.IsZero() {
		return false
	}
	delta := snapshot.Mid.Sub(ref).Abs()
	threshold := ref.Mul(p.DistancePct).Div(decimal.NewFromInt(100))
	return delta.GreaterThanOrEqual(threshold)
}

func (chaseLimitHandler) SliceAmount(order types.AdvancedOrder) decimal.Decimal {
	return order.RemainingMaker
}

func (chaseLimitHandler) AdvanceSchedule(order *types.AdvancedOrder, snapshot types.IndexSnapshot, nowMs int64) {
	order.NextTrigger = atPrice(snapshot.Mid)
}
