// Package pricebus implements the Price Bus: topic-based pub/sub keyed by
// IndexSymbol, with exact and single-level wildcard subscriptions, bounded
// per-subscriber queues, and liveness-driven client eviction.
package pricebus

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1edge/keeper/pkg/types"
)

const (
	clientLivenessTimeout = 25 * time.Second
	serverLivenessTimeout = 30 * time.Second
	maxConnectionAge      = 15 * time.Minute
	writeWait             = 10 * time.Second
	subscriberQueueSize   = 64
)

// Hub owns every connected subscriber and the register/unregister/publish
// channels that drive them. Generalizes the teacher's api.Hub from a
// broadcast-to-everyone dashboard feed to topic-filtered delivery.
type Hub struct {
	register   chan *Subscriber
	unregister chan *Subscriber
	publish    chan types.IndexSnapshot

	registerInternal   chan *InternalListener
	unregisterInternal chan *InternalListener

	mu           sync.RWMutex
	subscribers  map[*Subscriber]bool
	internalSubs map[*InternalListener]bool

	logger *slog.Logger
}

// NewHub creates a Price Bus hub. Call Run in a goroutine before any
// Subscriber connects.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:           make(chan *Subscriber),
		unregister:         make(chan *Subscriber),
		publish:            make(chan types.IndexSnapshot, 256),
		registerInternal:   make(chan *InternalListener),
		unregisterInternal: make(chan *InternalListener),
		subscribers:        make(map[*Subscriber]bool),
		internalSubs:       make(map[*InternalListener]bool),
		logger:             logger.With("component", "pricebus"),
	}
}

// InternalListener is an in-process Price Bus subscriber for Watcher
// Supervisors (§4.5: triggered "by Price Bus deliveries" alongside the
// scheduled timer) — no websocket framing, no liveness tracking, just a
// bounded channel of snapshots matching one IndexSymbol.
type InternalListener struct {
	symbol types.IndexSymbol
	ch     chan types.IndexSnapshot
}

// Chan returns the channel this listener receives matching snapshots on.
func (l *InternalListener) Chan() <-chan types.IndexSnapshot { return l.ch }

// SubscribeInternal registers an in-process listener for symbol and
// returns it along with an unsubscribe function. Safe to call before or
// after Run starts.
func (h *Hub) SubscribeInternal(symbol types.IndexSymbol) (*InternalListener, func()) {
	l := &InternalListener{symbol: symbol, ch: make(chan types.IndexSnapshot, subscriberQueueSize)}
	h.registerInternal <- l
	return l, func() { h.unregisterInternal <- l }
}

// Publish implements index.Publisher, letting the Index Engine feed the
// bus directly without an adapter type.
func (h *Hub) Publish(snapshot types.IndexSnapshot) {
	select {
	case h.publish <- snapshot:
	default:
		h.logger.Warn("publish channel full, dropping snapshot", "symbol", snapshot.Symbol)
	}
}

// Run drives the hub's single-threaded event loop until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	evictTicker := time.NewTicker(clientLivenessTimeout)
	defer evictTicker.Stop()

	for {
		select {
		case <-stop:
			return

		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			h.mu.Unlock()
			h.logger.Info("subscriber connected", "count", h.count())

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
			}
			h.mu.Unlock()
			h.logger.Info("subscriber disconnected", "count", h.count())

		case l := <-h.registerInternal:
			h.mu.Lock()
			h.internalSubs[l] = true
			h.mu.Unlock()

		case l := <-h.unregisterInternal:
			h.mu.Lock()
			if _, ok := h.internalSubs[l]; ok {
				delete(h.internalSubs, l)
				close(l.ch)
			}
			h.mu.Unlock()

		case snapshot := <-h.publish:
			h.deliver(snapshot)

		case <-evictTicker.C:
			h.evictStale()
		}
	}
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// deliver fans a snapshot out to every subscriber whose filter matches.
// Per §4.3: best-effort, lossy under slow consumer, newest always wins —
// an overflowing queue drops its oldest pending entry rather than the new
// one.
func (h *Hub) deliver(snapshot types.IndexSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Error("marshal snapshot", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if !sub.matches(snapshot.Symbol) {
			continue
		}
		enqueue(sub.send, data)
	}
	for l := range h.internalSubs {
		if l.symbol != snapshot.Symbol {
			continue
		}
		enqueueSnapshot(l.ch, snapshot)
	}
}

// enqueueSnapshot pushes snapshot onto ch, dropping the oldest queued
// snapshot to make room when the queue is full — the internal-listener
// counterpart of enqueue, same lossy-newest-wins discipline.
func enqueueSnapshot(ch chan types.IndexSnapshot, snapshot types.IndexSnapshot) {
	select {
	case ch <- snapshot:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snapshot:
	default:
	}
}

// enqueue pushes data onto ch, dropping the oldest queued message to make
// room when the queue is full.
func enqueue(ch chan []byte, data []byte) {
	select {
	case ch <- data:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- data:
	default:
	}
}

// evictStale drops subscribers idle past the server liveness timeout or
// connected longer than the high-water-mark connection age.
func (h *Hub) evictStale() {
	now := time.Now()

	h.mu.RLock()
	var stale []*Subscriber
	for sub := range h.subscribers {
		if now.Sub(sub.lastPong()) > serverLivenessTimeout || now.Sub(sub.connectedAt) > maxConnectionAge {
			stale = append(stale, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range stale {
		h.logger.Info("evicting stale subscriber", "age", now.Sub(sub.connectedAt))
		sub.conn.Close()
	}
}

// Subscriber is one connected Price Bus client.
type Subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	connectedAt time.Time

	mu         sync.Mutex
	lastPongAt time.Time
	topics     []topicFilter
}

// topicFilter is a parsed subscription filter: exact match, or a
// single-level wildcard prefix ending in "." or ":" followed by "*"
// ("prices.*" matches "prices.eth" but not "prices.eth.spot";
// "agg:spot:*" matches "agg:spot:ETHUSDT"). The level separator is the
// character just before the "*".
type topicFilter struct {
	prefix   string
	wildcard bool
	exact    string
}

func parseTopicFilter(pattern string) topicFilter {
	if strings.HasSuffix(pattern, ".*") || strings.HasSuffix(pattern, ":*") {
		return topicFilter{prefix: strings.TrimSuffix(pattern, "*"), wildcard: true}
	}
	return topicFilter{exact: pattern}
}

func (f topicFilter) matches(topic string) bool {
	if f.wildcard {
		sep := f.prefix[len(f.prefix)-1:]
		return strings.HasPrefix(topic, f.prefix) && !strings.Contains(topic[len(f.prefix):], sep)
	}
	return f.exact == topic
}

func (s *Subscriber) matches(symbol types.IndexSymbol) bool {
	topic := string(symbol)
	for _, f := range s.topics {
		if f.matches(topic) {
			return true
		}
	}
	return false
}

func (s *Subscriber) lastPong() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPongAt
}

func (s *Subscriber) touchPong() {
	s.mu.Lock()
	s.lastPongAt = time.Now()
	s.mu.Unlock()
}

// NewSubscriber registers a new connection with the hub and starts its
// write/read pumps. patterns are the subscriber's topic filters, e.g.
// "agg:spot:ETHUSDT" (exact) or "agg:spot:*" (single-level wildcard).
func NewSubscriber(hub *Hub, conn *websocket.Conn, patterns []string) *Subscriber {
	filters := make([]topicFilter, len(patterns))
	for i, p := range patterns {
		filters[i] = parseTopicFilter(p)
	}

	sub := &Subscriber{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, subscriberQueueSize),
		connectedAt: time.Now(),
		lastPongAt:  time.Now(),
		topics:      filters,
	}

	hub.register <- sub

	go sub.writePump()
	go sub.readPump()

	return sub
}

func (s *Subscriber) writePump() {
	defer s.conn.Close()
	for data := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	s.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *Subscriber) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(clientLivenessTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.touchPong()
		s.conn.SetReadDeadline(time.Now().Add(clientLivenessTimeout))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
		// Price Bus subscribers are read-only after the initial subscribe
		// handshake; any further frames are treated as liveness only.
		s.touchPong()
	}
}
