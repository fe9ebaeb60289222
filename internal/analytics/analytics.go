// Package analytics implements the pluggable technical-indicator provider
// feeding an IndexSnapshot's Analytics block: ADX (plus its moving
// average), an exponential moving average, and RSI (plus its moving
// average), each computed from an IndexSymbol's rolling OHLC history.
package analytics

import (
	"github.com/markcheno/go-talib"

	"github.com/1edge/keeper/pkg/types"
)

// Config sets the lookback period for each indicator. One Config is shared
// by every IndexSymbol — the Index Engine computes a single Analytics
// block per snapshot rather than one per order (see DESIGN.md's Open
// Question on per-order analytics periods).
type Config struct {
	ADXPeriod   int
	ADXMAPeriod int
	EMAPeriod   int
	RSIPeriod   int
	RSIMAPeriod int
}

// DefaultConfig returns the conventional TA periods used when config omits
// analytics tuning: ADX(14)/ADXMA(14), EMA(20), RSI(14)/RSIMA(14).
func DefaultConfig() Config {
	return Config{ADXPeriod: 14, ADXMAPeriod: 14, EMAPeriod: 20, RSIPeriod: 14, RSIMAPeriod: 14}
}

// Provider computes the Analytics block from an IndexSymbol's OHLC
// history. An interface so the Index Engine never depends on a specific
// indicator implementation.
type Provider interface {
	Compute(history []types.OHLCBucket) types.Analytics
}

// talibProvider is the keeper's only Provider: every indicator is computed
// by go-talib rather than hand-rolled, matching the pack's own TA stack
// (see DESIGN.md).
type talibProvider struct {
	cfg Config
}

// New builds a Provider from cfg, falling back to DefaultConfig for any
// zero-valued period.
func New(cfg Config) Provider {
	def := DefaultConfig()
	if cfg.ADXPeriod <= 0 {
		cfg.ADXPeriod = def.ADXPeriod
	}
	if cfg.ADXMAPeriod <= 0 {
		cfg.ADXMAPeriod = def.ADXMAPeriod
	}
	if cfg.EMAPeriod <= 0 {
		cfg.EMAPeriod = def.EMAPeriod
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.RSIMAPeriod <= 0 {
		cfg.RSIMAPeriod = def.RSIMAPeriod
	}
	return talibProvider{cfg: cfg}
}

// Compute derives every indicator from history, which the Index Engine
// hands over newest-bucket-first (its rolling-history prepend
// convention); closes/highs/lows are reversed to oldest-first before any
// indicator math runs. go-talib's functions return a series the same
// length as their input, front-padded with zeros for the unstable warmup
// period; availability is gated on series length against each period so a
// too-short history reports unavailable rather than a meaningless zero.
func (p talibProvider) Compute(history []types.OHLCBucket) types.Analytics {
	closes, highs, lows := splitOldestFirst(history)

	var out types.Analytics

	if p.cfg.EMAPeriod > 0 && len(closes) >= p.cfg.EMAPeriod {
		ema := talib.Ema(closes, p.cfg.EMAPeriod)
		out.EMA = ema[len(ema)-1]
		out.EMAAvailable = true
	}

	if p.cfg.RSIPeriod > 0 && len(closes) >= p.cfg.RSIPeriod+1 {
		rsi := talib.Rsi(closes, p.cfg.RSIPeriod)
		out.RSI = rsi[len(rsi)-1]
		out.RSIAvailable = true
		if ma, ok := smaTail(rsi, p.cfg.RSIMAPeriod); ok && len(closes)-p.cfg.RSIPeriod >= p.cfg.RSIMAPeriod {
			out.RSIMA = ma
			out.RSIMAAvailable = true
		}
	}

	if p.cfg.ADXPeriod > 0 && len(closes) >= 2*p.cfg.ADXPeriod+1 {
		adx := talib.Adx(highs, lows, closes, p.cfg.ADXPeriod)
		out.ADX = adx[len(adx)-1]
		out.ADXAvailable = true
		if ma, ok := smaTail(adx, p.cfg.ADXMAPeriod); ok && len(closes)-2*p.cfg.ADXPeriod >= p.cfg.ADXMAPeriod {
			out.ADXMA = ma
			out.ADXMAAvailable = true
		}
	}

	return out
}

// splitOldestFirst reverses history into parallel oldest-first close/high/
// low series.
func splitOldestFirst(history []types.OHLCBucket) (closes, highs, lows []float64) {
	n := len(history)
	closes = make([]float64, n)
	highs = make([]float64, n)
	lows = make([]float64, n)
	for i, bucket := range history {
		j := n - 1 - i
		closes[j], _ = bucket.Close.Float64()
		highs[j], _ = bucket.High.Float64()
		lows[j], _ = bucket.Low.Float64()
	}
	return closes, highs, lows
}

// smaTail averages the last period values of series, or reports
// unavailable if series is shorter than period.
func smaTail(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period {
		return 0, false
	}
	var sum float64
	tail := series[len(series)-period:]
	for _, v := range tail {
		sum += v
	}
	return sum / float64(period), true
}
