// Package venue implements the Exchange Adapter: one Adapter per venue,
// subscribing to trade/ticker streams, or REST polling for venues without
// streaming support,
// emitting types.SourceFeedUpdate events to the Index Engine.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"

	"github.com/1edge/keeper/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	writeTimeout     = 10 * time.Second
	maxReconnectWait = 30 * time.Second
	updateBufferSize = 256
)

// Protocol is the per-venue wire-format plugin. An Adapter is the shared
// connect/reconnect/backoff/poll machinery; Protocol supplies the bits
// that differ between exchanges (URLs, subscribe framing, message shape).
type Protocol interface {
	// Name identifies the venue for logging, e.g. "binance".
	Name() string
	// StreamURL is the WebSocket endpoint for batch trade/ticker
	// subscription. Empty string means this venue has no streaming
	// support and the adapter must poll from the start.
	StreamURL() string
	// SubscribeFrames returns the messages to send right after connect
	// to subscribe to all requested pairs.
	SubscribeFrames(pairs []string) ([]any, error)
	// ParseMessage decodes one WS frame. ok=false means the frame carries
	// no tick (heartbeat, ack, unrelated channel) and should be ignored.
	ParseMessage(data []byte) (pair string, tick types.Tick, ok bool, err error)
	// PollURL is the multi-ticker REST endpoint, used for market
	// enumeration at startup and for polling venues with no streaming
	// support.
	PollURL() string
	// ParsePoll decodes a REST poll response into per-pair ticks.
	ParsePoll(data []byte, pairs []string) (map[string]types.Tick, error)
	// PollInterval is this venue's REST polling cadence (§4.1: default 1s,
	// up to 2s for rate-sensitive venues).
	PollInterval() time.Duration
}

// Adapter runs the connect/subscribe/reconnect loop for one venue and
// emits SourceFeedUpdate events for every symbol it is asked to track.
type Adapter struct {
	venue   string
	proto   Protocol
	updates chan types.SourceFeedUpdate
	http    *resty.Client
	limiter *RateLimiter
	logger  *slog.Logger

	mu    sync.RWMutex
	pairs map[string]types.Symbol // pair -> full Symbol, for SourceFeedUpdate tagging
}

// New creates an Adapter for one venue. pairs maps the venue-local pair
// string (e.g. "ETHUSDT") to the fully-qualified Symbol it feeds.
func New(proto Protocol, pairs map[string]types.Symbol, logger *slog.Logger) *Adapter {
	return &Adapter{
		venue:   proto.Name(),
		proto:   proto,
		updates: make(chan types.SourceFeedUpdate, updateBufferSize),
		http: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() >= 500
			}),
		limiter: NewRateLimiter(),
		logger:  logger.With("component", "venue", "venue_name", proto.Name()),
		pairs:   pairs,
	}
}

// Updates returns the read-only stream of tick updates.
func (a *Adapter) Updates() <-chan types.SourceFeedUpdate { return a.updates }

// Run drives the adapter until ctx is cancelled: it polls over REST when
// the protocol has no stream URL, and otherwise streams. A failing stream
// is redialled with backoff for as long as ctx lives; it is not replaced
// by REST polling.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.verifyMarkets(ctx); err != nil {
		return fmt.Errorf("%s: enumerate markets: %w", a.venue, err)
	}

	if a.proto.StreamURL() == "" {
		return a.pollLoop(ctx)
	}

	backoff := time.Second
	for {
		err := a.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		a.logger.Warn("stream disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(backoff)):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// jitter applies +/-10% jitter to a backoff duration, per §4.1.
func jitter(d time.Duration) time.Duration {
	delta := float64(d) * 0.1
	offset := (rand.Float64()*2 - 1) * delta
	return d + time.Duration(offset)
}

// verifyMarkets enumerates the venue's supported markets, retrying up to 3
// times with backoff before surfacing a venue-fatal error (§4.1 step 4).
// Streaming-only protocols may not expose a listing endpoint; absence of
// PollURL is not itself fatal.
func (a *Adapter) verifyMarkets(ctx context.Context) error {
	if a.proto.PollURL() == "" {
		return nil
	}

	var lastErr error
	backoff := time.Second
	for attempt := 0; attempt < 3; attempt++ {
		if err := a.limiter.Poll.Wait(ctx); err != nil {
			return err
		}
		resp, err := a.http.R().SetContext(ctx).Get(a.proto.PollURL())
		if err == nil && resp.StatusCode() < 500 {
			return nil
		}
		lastErr = err
		if lastErr == nil {
			lastErr = fmt.Errorf("status %d", resp.StatusCode())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

func (a *Adapter) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.proto.StreamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	pairList := a.pairList()
	frames, err := a.proto.SubscribeFrames(pairList)
	if err != nil {
		return fmt.Errorf("build subscribe frames: %w", err)
	}
	for _, f := range frames {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(f); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	a.logger.Info("stream connected", "pairs", len(pairList))

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go a.pingLoop(pingCtx, conn)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		a.handleFrame(msg)
	}
}

func (a *Adapter) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				a.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (a *Adapter) handleFrame(data []byte) {
	pair, tick, ok, err := a.proto.ParseMessage(data)
	if err != nil {
		a.logger.Debug("ignoring malformed frame", "error", err)
		return
	}
	if !ok {
		return
	}
	a.emit(pair, tick)
}

// emit resolves pair to its Symbol and pushes the update, non-blocking.
func (a *Adapter) emit(pair string, tick types.Tick) {
	a.mu.RLock()
	symbol, known := a.pairs[pair]
	a.mu.RUnlock()
	if !known {
		return
	}

	select {
	case a.updates <- types.SourceFeedUpdate{Symbol: symbol, Tick: tick}:
	default:
		a.logger.Warn("update channel full, dropping tick", "symbol", symbol)
	}
}

// pollLoop is the REST path for venues without streaming support (an
// empty StreamURL).
func (a *Adapter) pollLoop(ctx context.Context) error {
	interval := a.proto.PollInterval()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.pollOnce(ctx)
		}
	}
}

func (a *Adapter) pollOnce(ctx context.Context) {
	if err := a.limiter.Poll.Wait(ctx); err != nil {
		return
	}

	pairList := a.pairList()
	resp, err := a.http.R().SetContext(ctx).Get(a.proto.PollURL())
	if err != nil {
		a.logger.Warn("poll failed", "error", err)
		return
	}
	if resp.StatusCode() == 429 {
		if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
			a.logger.Warn("poll throttled", "retry_after", retryAfter)
		}
		return
	}
	if resp.StatusCode() >= 400 {
		a.logger.Warn("poll error status", "status", resp.StatusCode())
		return
	}

	ticks, err := a.proto.ParsePoll(resp.Body(), pairList)
	if err != nil {
		a.logger.Warn("parse poll response", "error", err)
		return
	}
	for pair, tick := range ticks {
		a.emit(pair, tick)
	}
}

func (a *Adapter) pairList() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	list := make([]string, 0, len(a.pairs))
	for pair := range a.pairs {
		list = append(list, pair)
	}
	return list
}

// DeriveTickFromTrade implements the trade-only tick derivation in §4.1:
// last = trade price; buy trades update the ask side (taker bought the
// offer), sell trades update the bid side, preserving the opposite side
// from the previous observation. Shared by Protocol implementations whose
// venue only streams trades, not full ticker updates.
func DeriveTickFromTrade(prev types.Tick, price, volume string, isBuy bool) types.Tick {
	p := mustDecimal(price)
	v := mustDecimal(volume)
	next := prev
	next.Last = p
	next.Volume = v
	if isBuy {
		next.Ask = p
	} else {
		next.Bid = p
	}
	if !next.Bid.IsZero() && !next.Ask.IsZero() {
		next.Mid = next.Bid.Add(next.Ask).DivRound(twoDec, 18)
	} else {
		next.Mid = p
	}
	return next
}

// UnmarshalJSONNumber is a small helper so protocol implementations in
// this package can share one decode path for heterogeneous numeric wire
// encodings (string or number) without repeating the fallback logic.
func UnmarshalJSONNumber(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", f), nil
}
