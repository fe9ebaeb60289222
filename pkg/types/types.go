// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the keeper — symbols, ticks,
// index snapshots, advanced orders, slices, and protocol wire payloads. It
// has no dependencies on internal packages, so it can be imported by any
// layer.
package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Symbols
// ————————————————————————————————————————————————————————————————————————

// Symbol is an opaque composite identifier with the shape venue:market:pair,
// e.g. "binance:spot:ETHUSDT".
type Symbol string

// NewSymbol builds a Symbol from its three components.
func NewSymbol(venue, market, pair string) Symbol {
	return Symbol(venue + ":" + market + ":" + pair)
}

// Parts splits a Symbol back into venue, market, pair. ok is false if the
// symbol does not have exactly three colon-separated components.
func (s Symbol) Parts() (venue, market, pair string, ok bool) {
	fields := strings.SplitN(string(s), ":", 3)
	if len(fields) != 3 {
		return "", "", "", false
	}
	return fields[0], fields[1], fields[2], true
}

// Venue returns the venue component, or "" if the symbol is malformed.
func (s Symbol) Venue() string {
	venue, _, _, _ := s.Parts()
	return venue
}

// indexSymbolPrefix marks an IndexSymbol as an aggregated spot index,
// distinguishing it from a venue-specific Symbol.
const indexSymbolPrefix = "agg:spot:"

// IndexSymbol is a logical market aggregated from one or more venue-specific
// Symbols, e.g. "agg:spot:ETHUSDT".
type IndexSymbol string

// NewIndexSymbol builds an IndexSymbol from a bare market name. If name
// already carries the agg:spot: prefix it is returned unchanged.
func NewIndexSymbol(name string) IndexSymbol {
	if strings.HasPrefix(name, indexSymbolPrefix) {
		return IndexSymbol(name)
	}
	return IndexSymbol(indexSymbolPrefix + name)
}

// Name strips the aggregation prefix, returning the bare market name.
func (s IndexSymbol) Name() string {
	return strings.TrimPrefix(string(s), indexSymbolPrefix)
}

// ————————————————————————————————————————————————————————————————————————
// Ticks & source feeds
// ————————————————————————————————————————————————————————————————————————

// Tick is a single price observation from a venue. Invariant: Bid <= Mid <=
// Ask; TsMs is monotonic per source — the Index Engine drops out-of-order
// ticks rather than reordering them.
type Tick struct {
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
	Mid    decimal.Decimal `json:"mid"`
	Last   decimal.Decimal `json:"last"`
	Volume decimal.Decimal `json:"volume"`
	TsMs   int64           `json:"ts_ms"`
}

// SourceStatus is the liveness state of a SourceFeed.
type SourceStatus string

const (
	SourceInactive SourceStatus = "Inactive"
	SourceActive   SourceStatus = "Active"
	SourceError    SourceStatus = "Error"
)

// SourceFeed tracks one venue-level price source feeding into an
// IndexSymbol's weighted aggregate.
type SourceFeed struct {
	Symbol    Symbol          `json:"symbol"`
	Weight    decimal.Decimal `json:"weight"`
	Status    SourceStatus    `json:"status"`
	Last      Tick            `json:"last"`
	UpdatedMs int64           `json:"updated_ms"`

	// staleExclusions counts consecutive publish windows this source was
	// excluded for being stale; it is demoted to Inactive after the
	// second consecutive exclusion (§4.2).
	staleExclusions int
}

// StaleExclusions returns the consecutive-exclusion counter.
func (f *SourceFeed) StaleExclusions() int { return f.staleExclusions }

// MarkExcluded increments the stale-exclusion counter and demotes the
// source to Inactive after the second consecutive exclusion.
func (f *SourceFeed) MarkExcluded() {
	f.staleExclusions++
	if f.staleExclusions >= 2 {
		f.Status = SourceInactive
	}
}

// MarkFresh resets the stale-exclusion counter. Called whenever the source
// contributes to a published window.
func (f *SourceFeed) MarkFresh() {
	f.staleExclusions = 0
}

// SourceFeedUpdate is emitted by an Exchange Adapter for every tick it
// receives, and consumed by the Index Engine.
type SourceFeedUpdate struct {
	Symbol Symbol
	Tick   Tick
}

// ————————————————————————————————————————————————————————————————————————
// OHLC history
// ————————————————————————————————————————————————————————————————————————

// OHLCBucket is one candle in an IndexSymbol's rolling history. StartMs
// equals floor(tickMs/timeframeMs)*timeframeMs.
type OHLCBucket struct {
	StartMs int64           `json:"start_ms"`
	Open    decimal.Decimal `json:"open"`
	High    decimal.Decimal `json:"high"`
	Low     decimal.Decimal `json:"low"`
	Close   decimal.Decimal `json:"close"`
	Volume  decimal.Decimal `json:"volume"`
}

// ————————————————————————————————————————————————————————————————————————
// Index snapshots & analytics
// ————————————————————————————————————————————————————————————————————————

// Analytics carries the technical-indicator block computed by the pluggable
// analysis module (external collaborator, §6). An indicator's Available
// flag is false until enough history has accumulated; handlers must treat
// an unavailable indicator as a false should_trigger, never as zero.
type Analytics struct {
	ADX            float64 `json:"adx"`
	ADXAvailable   bool    `json:"adx_available"`
	ADXMA          float64 `json:"adx_ma"`
	ADXMAAvailable bool    `json:"adx_ma_available"`

	EMA          float64 `json:"ema"`
	EMAAvailable bool    `json:"ema_available"`

	RSI            float64 `json:"rsi"`
	RSIAvailable   bool    `json:"rsi_available"`
	RSIMA          float64 `json:"rsi_ma"`
	RSIMAAvailable bool    `json:"rsi_ma_available"`
}

// IndexSnapshot is the per-IndexSymbol aggregate published on the Price Bus.
type IndexSnapshot struct {
	Symbol     IndexSymbol     `json:"symbol"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
	Mid        decimal.Decimal `json:"mid"`
	VBid       decimal.Decimal `json:"vbid"`
	VAsk       decimal.Decimal `json:"vask"`
	Velocity   float64         `json:"velocity"`
	Dispersion float64         `json:"dispersion"`
	TsMs       int64           `json:"ts_ms"`
	History    []OHLCBucket    `json:"history"`
	Analytics  Analytics       `json:"analytics"`
}

// ————————————————————————————————————————————————————————————————————————
// Sides & signature schemes
// ————————————————————————————————————————————————————————————————————————

// Side is the direction of a slice order relative to the maker asset.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SignatureType identifies the signing scheme for the protocol contract.
type SignatureType int

const (
	SigEOA        SignatureType = 0 // externally-owned account
	SigProxy      SignatureType = 1 // delegate-proxy / smart-wallet
	SigGnosisSafe SignatureType = 2 // Gnosis Safe multisig
)

// String renders a human-readable signature scheme name for logging.
func (s SignatureType) String() string {
	switch s {
	case SigEOA:
		return "EOA"
	case SigProxy:
		return "PROXY"
	case SigGnosisSafe:
		return "GNOSIS_SAFE"
	default:
		return "UNKNOWN"
	}
}
