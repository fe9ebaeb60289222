package handler

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func rangeParams() types.RangeParams {
	return types.RangeParams{
		Steps: 4, StartPrice: decimal.RequireFromString("1900"),
		EndPrice: decimal.RequireFromString("2100"), Amount: decimal.RequireFromString("40"),
	}
}

func TestRangeShouldTriggerAscendingCrossing(t *testing.T) {
	t.Parallel()
	h := rangeHandler{}
	p := rangeParams()
	level := rangeLevel(p, 0) // 1950
	order := types.AdvancedOrder{Kind: types.KindRange, Params: p, NextTrigger: types.NextTrigger{Price: &level}}

	if h.ShouldTrigger(order, snapshotAt("1949"), 0) {
		t.Error("expected no trigger below level")
	}
	if !h.ShouldTrigger(order, snapshotAt("1950"), 0) {
		t.Error("expected trigger at level")
	}
}

func TestRangeShouldTriggerDescendingCrossing(t *testing.T) {
	t.Parallel()
	h := rangeHandler{}
	p := rangeParams()
	p.StartPrice, p.EndPrice = p.EndPrice, p.StartPrice // descending range
	level := rangeLevel(p, 0)
	order := types.AdvancedOrder{Kind: types.KindRange, Params: p, NextTrigger: types.NextTrigger{Price: &level}}

	if h.ShouldTrigger(order, snapshotAt("2051"), 0) {
		t.Error("expected no trigger above level in descending range")
	}
	if !h.ShouldTrigger(order, snapshotAt("2050"), 0) {
		t.Error("expected trigger at level in descending range")
	}
}

func TestRangeAdvanceScheduleClearsWhenExhausted(t *testing.T) {
	t.Parallel()
	h := rangeHandler{}
	p := rangeParams()
	order := types.AdvancedOrder{Kind: types.KindRange, Params: p, TriggerCount: 4}
	h.AdvanceSchedule(&order, snapshotAt("2100"), 0)
	if !order.NextTrigger.IsZero() {
		t.Errorf("expected cleared schedule, got %+v", order.NextTrigger)
	}
}

func TestRangeSliceAmountIsEvenSplit(t *testing.T) {
	t.Parallel()
	h := rangeHandler{}
	p := rangeParams()
	order := types.AdvancedOrder{Kind: types.KindRange, Params: p}
	got := h.SliceAmount(order)
	if !got.Equal(decimal.RequireFromString("10")) {
		t.Errorf("SliceAmount = %v, want 10", got)
	}
}
