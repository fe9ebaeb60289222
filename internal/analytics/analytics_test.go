package analytics

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func closeOnlyBucket(close float64) types.OHLCBucket {
	d := decimal.NewFromFloat(close)
	return types.OHLCBucket{Open: d, High: d, Low: d, Close: d}
}

// newestFirstHistory builds history in the Index Engine's prepend
// convention (newest bucket at index 0) from an oldest-first input series.
func newestFirstHistory(oldestFirstCloses []float64) []types.OHLCBucket {
	history := make([]types.OHLCBucket, len(oldestFirstCloses))
	n := len(oldestFirstCloses)
	for i, c := range oldestFirstCloses {
		history[n-1-i] = closeOnlyBucket(c)
	}
	return history
}

func TestSmaTailUnavailableWhenShorterThanPeriod(t *testing.T) {
	t.Parallel()

	if _, ok := smaTail([]float64{1, 2}, 3); ok {
		t.Errorf("expected unavailable SMA for a series shorter than the period")
	}
}

func TestSmaTailAveragesLastPeriodValues(t *testing.T) {
	t.Parallel()

	got, ok := smaTail([]float64{1, 2, 3, 4, 5}, 3)
	if !ok {
		t.Fatalf("smaTail returned ok=false")
	}
	// mean(3,4,5) = 4
	if got != 4 {
		t.Errorf("smaTail = %v, want 4", got)
	}
}

func TestComputeMarksUnavailableOnShortHistory(t *testing.T) {
	t.Parallel()

	p := New(Config{ADXPeriod: 14, EMAPeriod: 20, RSIPeriod: 14})
	out := p.Compute(newestFirstHistory([]float64{1, 2, 3}))

	if out.EMAAvailable || out.RSIAvailable || out.ADXAvailable {
		t.Errorf("expected every indicator unavailable on a 3-bucket history, got %+v", out)
	}
}

func TestComputeProducesMonotonicTrendEma(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(i + 1)
	}

	p := New(Config{EMAPeriod: 20, RSIPeriod: 14, ADXPeriod: 14})
	out := p.Compute(newestFirstHistory(closes))

	if !out.EMAAvailable {
		t.Fatalf("expected EMA available over a 40-bucket history")
	}
	// A steadily rising series' EMA must sit below the latest close.
	if out.EMA >= closes[len(closes)-1] {
		t.Errorf("EMA = %v, want < latest close %v for a rising series", out.EMA, closes[len(closes)-1])
	}
	if out.RSIAvailable && (out.RSI != 100) {
		t.Errorf("RSI on a strictly rising series = %v, want 100", out.RSI)
	}
}

func TestComputeRSIMAUnavailableUntilEnoughRSIHistory(t *testing.T) {
	t.Parallel()

	// 20 buckets gives RSI(14) six values (len-14 = 6 < RSIMAPeriod 14),
	// so the moving average must stay unavailable even though RSI itself
	// is available.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	p := New(Config{RSIPeriod: 14, RSIMAPeriod: 14})
	out := p.Compute(newestFirstHistory(closes))

	if !out.RSIAvailable {
		t.Fatalf("expected RSI available over a 20-bucket history")
	}
	if out.RSIMAAvailable {
		t.Errorf("expected RSIMA unavailable with fewer than RSIMAPeriod RSI values")
	}
}

func TestRoundTripFloatPrecisionIsStable(t *testing.T) {
	t.Parallel()

	// Guards against an accidental int-truncating conversion creeping into
	// splitOldestFirst/closeOnlyBucket.
	history := newestFirstHistory([]float64{1.5, 2.25})
	got, _ := history[len(history)-1].Close.Float64()
	if math.Abs(got-1.5) > 1e-9 {
		t.Errorf("oldest bucket close = %v, want 1.5", got)
	}
}
