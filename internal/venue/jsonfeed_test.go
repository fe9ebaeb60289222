package venue

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func TestJSONFeedParseMessageQuote(t *testing.T) {
	t.Parallel()

	f := JSONFeed{VenueName: "testvenue"}
	data := []byte(`{"symbol":"ETHUSDT","bid":"1999.5","ask":"2000.5","last":"2000","volume":"12.3","ts_ms":1000}`)

	pair, tick, ok, err := f.ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if !ok {
		t.Fatalf("ok = false, want true")
	}
	if pair != "ETHUSDT" {
		t.Errorf("pair = %q, want ETHUSDT", pair)
	}
	wantMid := decimal.RequireFromString("2000")
	if !tick.Mid.Equal(wantMid) {
		t.Errorf("Mid = %v, want %v", tick.Mid, wantMid)
	}
}

func TestJSONFeedParseMessageTrade(t *testing.T) {
	t.Parallel()

	f := JSONFeed{VenueName: "testvenue"}
	data := []byte(`{"symbol":"ETHUSDT","trade":{"price":"2001","size":"1.5","side":"buy"}}`)

	pair, tick, ok, err := f.ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if !ok || pair != "ETHUSDT" {
		t.Fatalf("ParseMessage() = (%q, ok=%v), want ETHUSDT, true", pair, ok)
	}
	if !tick.Ask.Equal(decimal.RequireFromString("2001")) {
		t.Errorf("Ask = %v, want 2001 (buy trade sets ask)", tick.Ask)
	}
}

func TestJSONFeedParseMessageIgnoresHeartbeat(t *testing.T) {
	t.Parallel()

	f := JSONFeed{VenueName: "testvenue"}
	_, _, ok, err := f.ParseMessage([]byte(`{"op":"pong"}`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if ok {
		t.Errorf("ok = true for heartbeat frame, want false")
	}
}

func TestDeriveTickFromTradePreservesOppositeSide(t *testing.T) {
	t.Parallel()

	prev := types.Tick{
		Bid: decimal.RequireFromString("1999"),
		Ask: decimal.RequireFromString("2001"),
		Mid: decimal.RequireFromString("2000"),
	}
	next := DeriveTickFromTrade(prev, "2050", "1", true)
	if !next.Bid.Equal(prev.Bid) {
		t.Errorf("Bid changed on buy trade: got %v, want preserved %v", next.Bid, prev.Bid)
	}
	if !next.Ask.Equal(decimal.RequireFromString("2050")) {
		t.Errorf("Ask = %v, want 2050", next.Ask)
	}
}

func TestDeriveTickFromTradePreservesBidOnSell(t *testing.T) {
	t.Parallel()

	prev := types.Tick{
		Bid: decimal.RequireFromString("1999"),
		Ask: decimal.RequireFromString("2001"),
	}
	next := DeriveTickFromTrade(prev, "1950", "2", false)
	if !next.Ask.Equal(prev.Ask) {
		t.Errorf("Ask changed on sell trade: got %v, want preserved %v", next.Ask, prev.Ask)
	}
	if !next.Bid.Equal(decimal.RequireFromString("1950")) {
		t.Errorf("Bid = %v, want 1950", next.Bid)
	}
}

func TestDeriveTickFromTradeFirstObservationUsesPriceAsMid(t *testing.T) {
	t.Parallel()

	next := DeriveTickFromTrade(types.Tick{}, "100", "1", true)
	if !next.Mid.Equal(decimal.RequireFromString("100")) {
		t.Errorf("Mid = %v, want 100 when no prior bid/ask exists", next.Mid)
	}
}

func TestUnmarshalJSONNumberStringAndFloat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"string encoding", `"123.45"`, "123.45"},
		{"numeric encoding", `123.45`, "123.45"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := UnmarshalJSONNumber([]byte(tc.raw))
			if err != nil {
				t.Fatalf("UnmarshalJSONNumber: %v", err)
			}
			if !mustDecimal(got).Equal(mustDecimal(tc.want)) {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestJitterStaysWithinTenPercent(t *testing.T) {
	t.Parallel()

	base := 10 * time.Second
	for i := 0; i < 50; i++ {
		d := jitter(base)
		lo := base - base/10 - time.Millisecond
		hi := base + base/10 + time.Millisecond
		if d < lo || d > hi {
			t.Fatalf("jitter(%v) = %v, outside +/-10%% band [%v, %v]", base, d, lo, hi)
		}
	}
}
