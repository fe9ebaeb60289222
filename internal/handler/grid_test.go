package handler

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func gridParams() types.GridParams {
	return types.GridParams{
		StartPrice: decimal.RequireFromString("1900"),
		EndPrice:   decimal.RequireFromString("2100"),
		StepPct:    decimal.RequireFromString("5"),
		Amount:     decimal.RequireFromString("100"),
	}
}

func TestGridStepSizeAndTotalLevels(t *testing.T) {
	t.Parallel()
	p := gridParams()
	if !p.StepSize().Equal(decimal.RequireFromString("10")) {
		t.Errorf("StepSize = %v, want 10", p.StepSize())
	}
	if got := p.TotalLevels(); got != 21 {
		t.Errorf("TotalLevels = %d, want 21", got)
	}
}

// TestGridCrossingSequence exercises the S3 worked example: price walks
// 1905 -> 1915 -> 1925 -> 1915, producing 3 level-crossings, the third
// marked "sell" because the last movement reversed.
func TestGridCrossingSequence(t *testing.T) {
	t.Parallel()
	h := gridHandler{}
	p := gridParams()
	order := types.AdvancedOrder{Kind: types.KindGrid, Params: p}
	h.AdvanceSchedule(&order, snapshotAt("1905"), 0) // seed initial level, per supervisor convention

	crossings := 0
	for _, mid := range []string{"1915", "1925", "1915"} {
		snap := snapshotAt(mid)
		if h.ShouldTrigger(order, snap, 0) {
			crossings++
			h.AdvanceSchedule(&order, snap, 0)
		}
	}
	if crossings != 3 {
		t.Fatalf("crossings = %d, want 3", crossings)
	}
	st := order.NextTrigger.Grid
	if st == nil {
		t.Fatal("expected grid state to be set")
	}
	if len(st.SellLevels) != 1 {
		t.Errorf("SellLevels = %v, want exactly one entry (the reversal)", st.SellLevels)
	}
	if len(st.BuyLevels) != 2 {
		t.Errorf("BuyLevels = %v, want two entries", st.BuyLevels)
	}
}

func TestGridShouldTriggerFalseBeforeSeeded(t *testing.T) {
	t.Parallel()
	h := gridHandler{}
	p := gridParams()
	order := types.AdvancedOrder{Kind: types.KindGrid, Params: p}
	if h.ShouldTrigger(order, snapshotAt("1905"), 0) {
		t.Error("expected no trigger before initial grid state is seeded")
	}
}

func TestGridShouldTriggerOutOfRange(t *testing.T) {
	t.Parallel()
	h := gridHandler{}
	p := gridParams()
	order := types.AdvancedOrder{Kind: types.KindGrid, Params: p}
	if h.ShouldTrigger(order, snapshotAt("2200"), 0) {
		t.Error("expected no trigger when mid is outside [start,end]")
	}
}

func TestGridSliceAmount(t *testing.T) {
	t.Parallel()
	h := gridHandler{}
	p := gridParams()
	order := types.AdvancedOrder{Kind: types.KindGrid, Params: p}
	got := h.SliceAmount(order)
	want := decimal.RequireFromString("100").DivRound(decimal.NewFromInt(21), 18)
	if !got.Equal(want) {
		t.Errorf("SliceAmount = %v, want %v", got, want)
	}
}
