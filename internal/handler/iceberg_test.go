package handler

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func icebergParams() types.IcebergParams {
	return types.IcebergParams{
		Steps: 4, StartPrice: decimal.RequireFromString("1900"),
		EndPrice: decimal.RequireFromString("2100"), Amount: decimal.RequireFromString("10"),
	}
}

func TestIcebergShouldTriggerAtStepTarget(t *testing.T) {
	t.Parallel()
	h := icebergHandler{}
	p := icebergParams()
	order := types.AdvancedOrder{Kind: types.KindIceberg, Params: p, TriggerCount: 0}

	// step 0 target = 1900 + 200*(1/4) = 1950
	if h.ShouldTrigger(order, snapshotAt("1949"), 0) {
		t.Error("expected no trigger below target")
	}
	if !h.ShouldTrigger(order, snapshotAt("1950"), 0) {
		t.Error("expected trigger at target")
	}
}

func TestIcebergLastStepEmitsRemainder(t *testing.T) {
	t.Parallel()
	h := icebergHandler{}
	p := types.IcebergParams{Steps: 3, Amount: decimal.RequireFromString("10")}
	order := types.AdvancedOrder{Kind: types.KindIceberg, Params: p, TriggerCount: 2}
	got := h.SliceAmount(order)
	// floor(10/3) = 3; last step = 10 - 2*3 = 4
	if !got.Equal(decimal.RequireFromString("4")) {
		t.Errorf("SliceAmount = %v, want 4", got)
	}
}

func TestIcebergAdvanceScheduleClearsAfterLastStep(t *testing.T) {
	t.Parallel()
	h := icebergHandler{}
	p := icebergParams()
	order := types.AdvancedOrder{Kind: types.KindIceberg, Params: p, TriggerCount: 4}
	h.AdvanceSchedule(&order, snapshotAt("2100"), 0)
	if !order.NextTrigger.IsZero() {
		t.Errorf("expected cleared schedule, got %+v", order.NextTrigger)
	}
}

func TestIcebergExpiredNeverTriggers(t *testing.T) {
	t.Parallel()
	h := icebergHandler{}
	p := icebergParams()
	p.ExpiryDays = 1
	order := types.AdvancedOrder{Kind: types.KindIceberg, Params: p, CreatedMs: 0}
	if h.ShouldTrigger(order, snapshotAt("2100"), 86_400_000) {
		t.Error("expected no trigger once expired")
	}
}
