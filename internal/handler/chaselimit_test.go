package handler

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func TestChaseLimitUnarmedNeverTriggers(t *testing.T) {
	t.Parallel()
	h := chaseLimitHandler{}
	p := types.ChaseLimitParams{DistancePct: decimal.RequireFromString("2")}
	order := types.AdvancedOrder{Kind: types.KindChaseLimit, Params: p}
	if h.ShouldTrigger(order, snapshotAt("2100"), 0) {
		t.Error("expected no trigger before reference is seeded")
	}
}

func TestChaseLimitTriggersOnDistance(t *testing.T) {
	t.Parallel()
	h := chaseLimitHandler{}
	p := types.ChaseLimitParams{DistancePct: decimal.RequireFromString("2")}
	ref := decimal.RequireFromString("2000")
	order := types.AdvancedOrder{
		Kind: types.KindChaseLimit, Params: p, RemainingMaker: decimal.RequireFromString("5"),
		NextTrigger: types.NextTrigger{Price: &ref},
	}

	// threshold = 2000 * 2/100 = 40; 2039 is under, 2040 triggers
	if h.ShouldTrigger(order, snapshotAt("2039"), 0) {
		t.Error("expected no trigger below distance threshold")
	}
	if !h.ShouldTrigger(order, snapshotAt("2040"), 0) {
		t.Error("expected trigger at distance threshold")
	}

	if got := h.SliceAmount(order); !got.Equal(decimal.RequireFromString("5")) {
		t.Errorf("SliceAmount = %v, want full remaining 5", got)
	}
}

func TestChaseLimitAdvanceScheduleRearmsImmediately(t *testing.T) {
	t.Parallel()
	h := chaseLimitHandler{}
	p := types.ChaseLimitParams{DistancePct: decimal.RequireFromString("2")}
	ref := decimal.RequireFromString("2000")
	order := types.AdvancedOrder{Kind: types.KindChaseLimit, Params: p, NextTrigger: types.NextTrigger{Price: &ref}}

	h.AdvanceSchedule(&order, snapshotAt("2040"), 0)
	if order.NextTrigger.Price == nil || !order.NextTrigger.Price.Equal(decimal.RequireFromString("2040")) {
		t.Errorf("NextTrigger.Price = %v, want 2040", order.NextTrigger.Price)
	}
	// Immediately armed: distance from the new reference is zero, so no re-trigger this tick.
	if h.ShouldTrigger(order, snapshotAt("2040"), 0) {
		t.Error("expected no immediate re-trigger against the freshly reset reference")
	}
}
