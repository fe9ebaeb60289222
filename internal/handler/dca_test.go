package handler

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func dcaOrder(nextMs int64, maxPrice *decimal.Decimal) types.AdvancedOrder {
	at := nextMs
	return types.AdvancedOrder{
		Kind:        types.KindDCA,
		Params:      types.DCAParams{IntervalMs: 60000, Amount: decimal.RequireFromString("10"), MaxPrice: maxPrice},
		NextTrigger: types.NextTrigger{AtMs: &at},
	}
}

func snapshotAt(mid string) types.IndexSnapshot {
	return types.IndexSnapshot{Mid: decimal.RequireFromString(mid)}
}

func TestDCAShouldTriggerWaitsForInterval(t *testing.T) {
	t.Parallel()
	h := dcaHandler{}
	order := dcaOrder(60000, nil)
	if h.ShouldTrigger(order, snapshotAt("2000"), 59999) {
		t.Error("expected no trigger before next_trigger")
	}
	if !h.ShouldTrigger(order, snapshotAt("2000"), 60000) {
		t.Error("expected trigger at next_trigger")
	}
}

func TestDCAShouldTriggerRespectsMaxPrice(t *testing.T) {
	t.Parallel()
	h := dcaHandler{}
	maxPrice := decimal.RequireFromString("2000")
	order := dcaOrder(0, &maxPrice)
	if h.ShouldTrigger(order, snapshotAt("2001"), 0) {
		t.Error("expected no trigger above max_price")
	}
	if !h.ShouldTrigger(order, snapshotAt("2000"), 0) {
		t.Error("expected trigger at max_price boundary")
	}
}

func TestDCASliceAmountIsFixed(t *testing.T) {
	t.Parallel()
	h := dcaHandler{}
	order := dcaOrder(0, nil)
	got := h.SliceAmount(order)
	if !got.Equal(decimal.RequireFromString("10")) {
		t.Errorf("SliceAmount = %v, want 10", got)
	}
}

func TestDCAAdvanceScheduleSetsNextInterval(t *testing.T) {
	t.Parallel()
	h := dcaHandler{}
	order := dcaOrder(0, nil)
	h.AdvanceSchedule(&order, snapshotAt("2000"), 1000)
	if order.NextTrigger.AtMs == nil || *order.NextTrigger.AtMs != 61000 {
		t.Errorf("NextTrigger.AtMs = %v, want 61000", order.NextTrigger.AtMs)
	}
}
