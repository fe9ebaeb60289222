package handler

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// TestStopLimitFiresOnceAtStop exercises the S4 worked example: prices
// 1950 -> 1999 -> 2001 against stop_price=2000 fire exactly once, at 2001.
func TestStopLimitFiresOnceAtStop(t *testing.T) {
	t.Parallel()
	h := stopLimitHandler{}
	p := types.StopLimitParams{StopPrice: decimal.RequireFromString("2000"), LimitPrice: decimal.RequireFromString("1995")}
	order := types.AdvancedOrder{Kind: types.KindStopLimit, Params: p, RemainingMaker: decimal.RequireFromString("10")}

	for _, mid := range []string{"1950", "1999"} {
		if h.ShouldTrigger(order, snapshotAt(mid), 0) {
			t.Errorf("expected no trigger at mid=%s", mid)
		}
	}
	if !h.ShouldTrigger(order, snapshotAt("2001"), 0) {
		t.Error("expected trigger at mid=2001")
	}

	if got := h.SliceAmount(order); !got.Equal(decimal.RequireFromString("10")) {
		t.Errorf("SliceAmount = %v, want full remaining 10", got)
	}

	h.AdvanceSchedule(&order, snapshotAt("2001"), 0)
	if !order.NextTrigger.IsZero() {
		t.Error("expected schedule cleared after one-shot trigger")
	}
}

func TestStopLimitExpiredNeverTriggers(t *testing.T) {
	t.Parallel()
	h := stopLimitHandler{}
	p := types.StopLimitParams{StopPrice: decimal.RequireFromString("2000"), ExpiryDays: 1}
	order := types.AdvancedOrder{Kind: types.KindStopLimit, Params: p, CreatedMs: 0}
	if h.ShouldTrigger(order, snapshotAt("2500"), 86_400_000) {
		t.Error("expected no trigger once expired")
	}
}
