package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestIndexSymbolName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare name gets prefixed", "ETHUSDT", "ETHUSDT"},
		{"already prefixed", "agg:spot:ETHUSDT", "ETHUSDT"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sym := NewIndexSymbol(tt.in)
			if got := sym.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSymbolParts(t *testing.T) {
	t.Parallel()

	sym := NewSymbol("binance", "spot", "ETHUSDT")
	venue, market, pair, ok := sym.Parts()
	if !ok {
		t.Fatalf("Parts() ok = false, want true")
	}
	if venue != "binance" || market != "spot" || pair != "ETHUSDT" {
		t.Errorf("Parts() = (%q, %q, %q), want (binance, spot, ETHUSDT)", venue, market, pair)
	}

	if _, _, _, ok := Symbol("malformed").Parts(); ok {
		t.Errorf("Parts() on malformed symbol: ok = true, want false")
	}
}

func TestSourceFeedStaleExclusion(t *testing.T) {
	t.Parallel()

	f := &SourceFeed{Status: SourceActive}
	f.MarkExcluded()
	if f.Status != SourceActive {
		t.Errorf("after 1 exclusion: Status = %v, want Active", f.Status)
	}
	f.MarkExcluded()
	if f.Status != SourceInactive {
		t.Errorf("after 2 exclusions: Status = %v, want Inactive", f.Status)
	}

	f.MarkFresh()
	if f.StaleExclusions() != 0 {
		t.Errorf("after MarkFresh: StaleExclusions() = %d, want 0", f.StaleExclusions())
	}
}

func TestAdvancedOrderJSONRoundTrip(t *testing.T) {
	t.Parallel()

	maxPrice := decimal.NewFromInt(2100)
	order := AdvancedOrder{
		ID:             "ord-1",
		Owner:          "0xabc",
		MakerAsset:     "0xweth",
		TakerAsset:     "0xusdc",
		Kind:           KindTWAP,
		Params: TWAPParams{
			StartMs:    0,
			EndMs:      600_000,
			IntervalMs: 60_000,
			Amount:     decimal.NewFromInt(60),
			MaxPrice:   &maxPrice,
		},
		Status:         StatusActive,
		CreatedMs:      1000,
		TriggerCount:   2,
		OriginalMaking: decimal.NewFromInt(60),
		RemainingMaker: decimal.NewFromInt(40),
		TotalFilled:    decimal.NewFromInt(20),
		SliceHashes:    []string{"0x1", "0x2"},
	}

	data, err := json.Marshal(order)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got AdvancedOrder
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Kind != KindTWAP {
		t.Fatalf("Kind = %v, want %v", got.Kind, KindTWAP)
	}
	params, ok := got.Params.(TWAPParams)
	if !ok {
		t.Fatalf("Params type = %T, want TWAPParams", got.Params)
	}
	if params.IntervalMs != 60_000 {
		t.Errorf("IntervalMs = %d, want 60000", params.IntervalMs)
	}
	if params.MaxPrice == nil || !params.MaxPrice.Equal(maxPrice) {
		t.Errorf("MaxPrice = %v, want %v", params.MaxPrice, maxPrice)
	}
	if !got.RemainingMaker.Equal(decimal.NewFromInt(40)) {
		t.Errorf("RemainingMaker = %v, want 40", got.RemainingMaker)
	}
	if len(got.SliceHashes) != 2 {
		t.Errorf("SliceHashes len = %d, want 2", len(got.SliceHashes))
	}
}

func TestAdvancedOrderIsExpired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		params    OrderParams
		createdMs int64
		nowMs     int64
		want      bool
	}{
		{
			name:      "expiry disabled never expires",
			params:    StopLimitParams{ExpiryDays: 0},
			createdMs: 0,
			nowMs:     1_000_000_000_000,
			want:      false,
		},
		{
			name:      "expires exactly at boundary",
			params:    StopLimitParams{ExpiryDays: 1},
			createdMs: 0,
			nowMs:     86_400_000,
			want:      true,
		},
		{
			name:      "not yet expired",
			params:    StopLimitParams{ExpiryDays: 1},
			createdMs: 0,
			nowMs:     86_400_000 - 1,
			want:      false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := &AdvancedOrder{Params: tt.params, CreatedMs: tt.createdMs}
			if got := o.IsExpired(tt.nowMs); got != tt.want {
				t.Errorf("IsExpired(%d) = %v, want %v", tt.nowMs, got, tt.want)
			}
		})
	}
}

func TestGridParamsTotalLevels(t *testing.T) {
	t.Parallel()

	p := GridParams{
		StartPrice: decimal.NewFromInt(1900),
		EndPrice:   decimal.NewFromInt(2100),
		StepPct:    decimal.NewFromInt(5),
		Amount:     decimal.NewFromInt(100),
	}

	wantStep := decimal.NewFromInt(10)
	if step := p.StepSize(); !step.Equal(wantStep) {
		t.Errorf("StepSize() = %v, want %v", step, wantStep)
	}

	if got := p.TotalLevels(); got != 21 {
		t.Errorf("TotalLevels() = %d, want 21", got)
	}
}

func TestTWAPTotalIntervals(t *testing.T) {
	t.Parallel()

	p := TWAPParams{StartMs: 0, EndMs: 600_000, IntervalMs: 60_000}
	if got := p.TotalIntervals(); got != 10 {
		t.Errorf("TotalIntervals() = %d, want 10", got)
	}
}

func TestSliceRecordFillDelta(t *testing.T) {
	t.Parallel()

	s := SliceRecord{Making: decimal.NewFromInt(10), Remaining: decimal.NewFromInt(7)}
	want := decimal.NewFromInt(3)
	if got := s.FillDelta(); !got.Equal(want) {
		t.Errorf("FillDelta() = %v, want %v", got, want)
	}
}
