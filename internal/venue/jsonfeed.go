package venue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// JSONFeed is a Protocol implementation for venues whose streaming and
// REST APIs both speak a flat JSON ticker/trade shape. Most venues in
// practice fit this mold closely enough that only the URLs and field
// names vary; JSONFeed covers that common case so each venue wiring is a
// few lines of configuration rather than a bespoke WS client.
type JSONFeed struct {
	VenueName string
	WSURL     string
	RESTURL   string
	PollEvery time.Duration
}

// tickerFrame is either a full quote (bid/ask/last/volume) or a bare trade
// (price/size/side) — venues that only stream trades omit bid/ask and the
// adapter derives them per §4.1.
type tickerFrame struct {
	Symbol string          `json:"symbol"`
	Bid    json.RawMessage `json:"bid,omitempty"`
	Ask    json.RawMessage `json:"ask,omitempty"`
	Last   json.RawMessage `json:"last,omitempty"`
	Volume json.RawMessage `json:"volume,omitempty"`
	TsMs   int64           `json:"ts_ms,omitempty"`

	Trade *tradeFrame `json:"trade,omitempty"`
}

type tradeFrame struct {
	Price json.RawMessage `json:"price"`
	Size  json.RawMessage `json:"size"`
	Side  string          `json:"side"` // "buy" or "sell"
}

func (f JSONFeed) Name() string      { return f.VenueName }
func (f JSONFeed) StreamURL() string { return f.WSURL }
func (f JSONFeed) PollURL() string   { return f.RESTURL }
func (f JSONFeed) PollInterval() time.Duration {
	if f.PollEvery <= 0 {
		return time.Second
	}
	return f.PollEvery
}

// SubscribeFrames issues one batch-subscribe frame naming every pair.
func (f JSONFeed) SubscribeFrames(pairs []string) ([]any, error) {
	return []any{map[string]any{
		"op":      "subscribe",
		"symbols": pairs,
	}}, nil
}

// ParseMessage decodes a single ticker/trade frame.
func (f JSONFeed) ParseMessage(data []byte) (pair string, tick types.Tick, ok bool, err error) {
	var frame tickerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", types.Tick{}, false, err
	}
	if frame.Symbol == "" {
		return "", types.Tick{}, false, nil
	}

	if frame.Trade != nil {
		price, perr := UnmarshalJSONNumber(frame.Trade.Price)
		size, serr := UnmarshalJSONNumber(frame.Trade.Size)
		if perr != nil || serr != nil {
			return "", types.Tick{}, false, fmt.Errorf("decode trade frame: price=%v size=%v", perr, serr)
		}
		tick := DeriveTickFromTrade(types.Tick{}, price, size, frame.Trade.Side == "buy")
		tick.TsMs = frame.TsMs
		return frame.Symbol, tick, true, nil
	}

	if frame.Bid == nil || frame.Ask == nil {
		return "", types.Tick{}, false, nil
	}

	bid, err := decodeField(frame.Bid)
	if err != nil {
		return "", types.Tick{}, false, err
	}
	ask, err := decodeField(frame.Ask)
	if err != nil {
		return "", types.Tick{}, false, err
	}
	last, _ := decodeField(frame.Last)
	volume, _ := decodeField(frame.Volume)

	tick = types.Tick{
		Bid:    bid,
		Ask:    ask,
		Mid:    bid.Add(ask).DivRound(twoDec, 18),
		Last:   last,
		Volume: volume,
		TsMs:   frame.TsMs,
	}
	return frame.Symbol, tick, true, nil
}

// decodeField parses a raw numeric field (string or number wire encoding)
// into a decimal.Decimal, returning zero for an absent field.
func decodeField(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 {
		return decimal.Zero, nil
	}
	s, err := UnmarshalJSONNumber(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return mustDecimal(s), nil
}

// ParsePoll decodes a REST response carrying an array of tickerFrame.
func (f JSONFeed) ParsePoll(data []byte, pairs []string) (map[string]types.Tick, error) {
	var frames []tickerFrame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}

	wanted := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		wanted[p] = true
	}

	out := make(map[string]types.Tick, len(frames))
	for _, frame := range frames {
		if !wanted[frame.Symbol] {
			continue
		}
		_, tick, ok, err := f.ParseMessage(mustMarshal(frame))
		if err != nil || !ok {
			continue
		}
		out[frame.Symbol] = tick
	}
	return out, nil
}

func mustMarshal(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}
