package store

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func TestOrderDocRoundTrip(t *testing.T) {
	t.Parallel()

	maxPrice := decimal.RequireFromString("2100")
	order := types.AdvancedOrder{
		ID:         "order-1",
		Owner:      "0xabc",
		MakerAsset: "0xmaker",
		TakerAsset: "0xtaker",
		Kind:       types.KindTWAP,
		Params: types.TWAPParams{
			StartMs:    1000,
			EndMs:      10000,
			IntervalMs: 1000,
			Amount:     decimal.RequireFromString("100"),
			MaxPrice:   &maxPrice,
		},
		Status:         types.StatusActive,
		CreatedMs:      1000,
		TriggerCount:   2,
		OriginalMaking: decimal.RequireFromString("1000"),
		RemainingMaker: decimal.RequireFromString("800"),
		TotalFilled:    decimal.RequireFromString("200"),
		NextTrigger:    types.NextTrigger{AtMs: int64Ptr(5000)},
		SliceHashes:    []string{"hash1", "hash2"},
		Version:        3,
	}

	doc, err := toDoc(order)
	if err != nil {
		t.Fatalf("toDoc: %v", err)
	}
	got, err := fromDoc(doc)
	if err != nil {
		t.Fatalf("fromDoc: %v", err)
	}

	if got.ID != order.ID || got.Kind != order.Kind || got.Version != order.Version {
		t.Fatalf("round trip mismatch: got %+v, want id/kind/version from %+v", got, order)
	}
	params, ok := got.Params.(types.TWAPParams)
	if !ok {
		t.Fatalf("Params type = %T, want TWAPParams", got.Params)
	}
	if !params.Amount.Equal(order.Params.(types.TWAPParams).Amount) {
		t.Errorf("Amount = %v, want %v", params.Amount, order.Params.(types.TWAPParams).Amount)
	}
	if params.MaxPrice == nil || !params.MaxPrice.Equal(maxPrice) {
		t.Errorf("MaxPrice = %v, want %v", params.MaxPrice, maxPrice)
	}
	if !got.RemainingMaker.Equal(order.RemainingMaker) {
		t.Errorf("RemainingMaker = %v, want %v", got.RemainingMaker, order.RemainingMaker)
	}
	if got.NextTrigger.AtMs == nil || *got.NextTrigger.AtMs != 5000 {
		t.Errorf("NextTrigger.AtMs = %v, want 5000", got.NextTrigger.AtMs)
	}
}

func TestSliceDocRoundTrip(t *testing.T) {
	t.Parallel()

	slice := types.SliceRecord{
		Hash:        "hash1",
		ParentID:    "order-1",
		Making:      decimal.RequireFromString("10"),
		Taking:      decimal.RequireFromString("20000"),
		LimitPrice:  decimal.RequireFromString("2000"),
		SubmittedMs: 1000,
		Remaining:   decimal.RequireFromString("5"),
	}

	doc := sliceToDoc(slice)
	got, err := sliceFromDoc(doc)
	if err != nil {
		t.Fatalf("sliceFromDoc: %v", err)
	}
	if got.Hash != slice.Hash || got.ParentID != slice.ParentID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, slice)
	}
	if !got.Remaining.Equal(slice.Remaining) {
		t.Errorf("Remaining = %v, want %v", got.Remaining, slice.Remaining)
	}
	if !got.FillDelta().Equal(decimal.RequireFromString("5")) {
		t.Errorf("FillDelta = %v, want 5", got.FillDelta())
	}
}

func TestDecimalOrZero(t *testing.T) {
	t.Parallel()

	z, err := decimalOrZero("")
	if err != nil || !z.IsZero() {
		t.Errorf("decimalOrZero(\"\") = (%v, %v), want (0, nil)", z, err)
	}

	v, err := decimalOrZero("123.45")
	if err != nil || !v.Equal(decimal.RequireFromString("123.45")) {
		t.Errorf("decimalOrZero(\"123.45\") = (%v, %v), want (123.45, nil)", v, err)
	}
}

func int64Ptr(v int64) *int64 { return &v }
