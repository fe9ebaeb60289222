package handler

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func rangeBreakoutOrder() types.AdvancedOrder {
	p := types.RangeBreakoutParams{
		ADXThreshold: decimal.RequireFromString("25"),
		ADXMAPeriod:  14,
		BreakoutPct:  decimal.RequireFromString("1"),
	}
	return types.AdvancedOrder{Kind: types.KindRangeBreakout, Params: p, RemainingMaker: decimal.RequireFromString("8")}
}

func TestRangeBreakoutRequiresAllIndicatorsAvailable(t *testing.T) {
	t.Parallel()
	h := rangeBreakoutHandler{}
	order := rangeBreakoutOrder()
	snap := types.IndexSnapshot{
		Mid: decimal.RequireFromString("2100"),
		Analytics: types.Analytics{
			ADX: 30, ADXAvailable: true,
			ADXMA: 20, ADXMAAvailable: true,
			EMA: 2000, EMAAvailable: false,
		},
	}
	if h.ShouldTrigger(order, snap, 0) {
		t.Error("expected no trigger when EMA is unavailable")
	}
}

func TestRangeBreakoutTriggersOnConfirmedBreakout(t *testing.T) {
	t.Parallel()
	h := rangeBreakoutHandler{}
	order := rangeBreakoutOrder()
	snap := types.IndexSnapshot{
		Mid: decimal.RequireFromString("2025"),
		Analytics: types.Analytics{
			ADX: 30, ADXAvailable: true,
			ADXMA: 20, ADXMAAvailable: true,
			EMA: 2000, EMAAvailable: true,
		},
	}
	// band = 2000*1/100 = 20; mid 2025 > 2020
	if !h.ShouldTrigger(order, snap, 0) {
		t.Error("expected trigger on confirmed breakout")
	}
	if got := h.SliceAmount(order); !got.Equal(decimal.RequireFromString("8")) {
		t.Errorf("SliceAmount = %v, want full remaining 8", got)
	}

	h.AdvanceSchedule(&order, snap, 0)
	if !order.NextTrigger.IsZero() {
		t.Error("expected schedule cleared after one-shot trigger")
	}
}

func TestRangeBreakoutAdxNotTrending(t *testing.T) {
	t.Parallel()
	h := rangeBreakoutHandler{}
	order := rangeBreakoutOrder()
	snap := types.IndexSnapshot{
		Mid: decimal.RequireFromString("2025"),
		Analytics: types.Analytics{
			ADX: 10, ADXAvailable: true,
			ADXMA: 20, ADXMAAvailable: true,
			EMA: 2000, EMAAvailable: true,
		},
	}
	if h.ShouldTrigger(order, snap, 0) {
		t.Error("expected no trigger when ADX is below threshold")
	}
}
