package types

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderKind tags which variant payload an AdvancedOrder carries.
type OrderKind string

const (
	KindDCA              OrderKind = "DCA"
	KindTWAP             OrderKind = "TWAP"
	KindIceberg          OrderKind = "Iceberg"
	KindRange            OrderKind = "Range"
	KindGrid             OrderKind = "Grid"
	KindStopLimit        OrderKind = "StopLimit"
	KindChaseLimit       OrderKind = "ChaseLimit"
	KindRangeBreakout    OrderKind = "RangeBreakout"
	KindMomentumReversal OrderKind = "MomentumReversal"
)

// OrderStatus is the lifecycle state of an AdvancedOrder.
type OrderStatus string

const (
	StatusPending         OrderStatus = "Pending"
	StatusActive          OrderStatus = "Active"
	StatusPartiallyFilled OrderStatus = "PartiallyFilled"
	StatusFilled          OrderStatus = "Filled"
	StatusCancelled       OrderStatus = "Cancelled"
	StatusExpired         OrderStatus = "Expired"
	StatusFailed          OrderStatus = "Failed"
)

// IsTerminal reports whether status requires no further supervision.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusExpired, StatusFailed:
		return true
	default:
		return false
	}
}

// OrderParams is the strongly-typed variant payload carried by an
// AdvancedOrder. Each order kind implements this with its own struct; Kind
// identifies which one so JSON (de)serialization can dispatch correctly.
type OrderParams interface {
	Kind() OrderKind
}

// DCAParams — fixed-amount purchase on a fixed interval, optionally capped
// by a maximum acceptable price.
type DCAParams struct {
	IntervalMs int64            `json:"interval_ms"`
	Amount     decimal.Decimal  `json:"amount"`
	MaxPrice   *decimal.Decimal `json:"max_price,omitempty"`
}

func (DCAParams) Kind() OrderKind { return KindDCA }

// TWAPParams — amount split evenly over equal intervals within a time
// window, optionally capped by a maximum acceptable price.
type TWAPParams struct {
	StartMs    int64            `json:"start_ms"`
	EndMs      int64            `json:"end_ms"`
	IntervalMs int64            `json:"interval_ms"`
	Amount     decimal.Decimal  `json:"amount"`
	MaxPrice   *decimal.Decimal `json:"max_price,omitempty"`
}

// TotalIntervals returns ceil((end-start)/interval), the planned slice count.
func (p TWAPParams) TotalIntervals() int64 {
	if p.IntervalMs <= 0 {
		return 0
	}
	span := p.EndMs - p.StartMs
	if span <= 0 {
		return 0
	}
	n := span / p.IntervalMs
	if span%p.IntervalMs != 0 {
		n++
	}
	return n
}

func (TWAPParams) Kind() OrderKind { return KindTWAP }

// IcebergParams — amount split into equal steps, each step releasing only
// once the index mid has climbed to its target price.
type IcebergParams struct {
	Steps      int64           `json:"steps"`
	StartPrice decimal.Decimal `json:"start_price"`
	EndPrice   decimal.Decimal `json:"end_price"`
	Amount     decimal.Decimal `json:"amount"`
	ExpiryDays int64           `json:"expiry,omitempty"`
}

func (IcebergParams) Kind() OrderKind { return KindIceberg }

// RangeParams — amount split into equal steps, released as price crosses
// successive levels spanning start_price..end_price.
type RangeParams struct {
	Steps      int64           `json:"steps"`
	StartPrice decimal.Decimal `json:"start_price"`
	EndPrice   decimal.Decimal `json:"end_price"`
	Amount     decimal.Decimal `json:"amount"`
	ExpiryDays int64           `json:"expiry,omitempty"`
}

func (RangeParams) Kind() OrderKind { return KindRange }

// GridParams — amount split evenly across price levels spanning
// start_price..end_price at step_pct spacing; a slice fires on each level
// crossing in either direction.
type GridParams struct {
	StartPrice decimal.Decimal `json:"start_price"`
	EndPrice   decimal.Decimal `json:"end_price"`
	StepPct    decimal.Decimal `json:"step_pct"`
	Amount     decimal.Decimal `json:"amount"`
}

// StepSize returns (end-start)*step_pct/100.
func (p GridParams) StepSize() decimal.Decimal {
	return p.EndPrice.Sub(p.StartPrice).Mul(p.StepPct).Div(decimal.NewFromInt(100))
}

// TotalLevels returns the number of distinct grid levels spanning the range.
func (p GridParams) TotalLevels() int64 {
	step := p.StepSize()
	if step.Sign() <= 0 {
		return 0
	}
	span := p.EndPrice.Sub(p.StartPrice)
	levels := span.Div(step)
	return levels.Ceil().IntPart() + 1
}

func (GridParams) Kind() OrderKind { return KindGrid }

// StopLimitParams — one-shot: fires the entire remaining amount once mid
// reaches stop_price, using limit_price as the submitted slice's limit.
type StopLimitParams struct {
	StopPrice  decimal.Decimal `json:"stop_price"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	ExpiryDays int64           `json:"expiry,omitempty"`
}

func (StopLimitParams) Kind() OrderKind { return KindStopLimit }

// ChaseLimitParams — fires the entire remaining amount whenever mid has
// moved distance_pct away from the last reference price, re-arming
// immediately with a new reference.
type ChaseLimitParams struct {
	DistancePct decimal.Decimal `json:"distance_pct"`
	ExpiryDays  int64           `json:"expiry,omitempty"`
	MaxPrice    *decimal.Decimal `json:"max_price,omitempty"`
}

func (ChaseLimitParams) Kind() OrderKind { return KindChaseLimit }

// RangeBreakoutParams — one-shot: fires the entire remaining amount when
// ADX confirms trend strength and mid has broken out of its EMA band.
type RangeBreakoutParams struct {
	ADXThreshold decimal.Decimal `json:"adx_threshold"`
	ADXMAPeriod  int64           `json:"adxma_period"`
	BreakoutPct  decimal.Decimal `json:"breakout_pct"`
}

func (RangeBreakoutParams) Kind() OrderKind { return KindRangeBreakout }

// MomentumReversalParams — fires a fixed amount on every RSI/RSI-moving-
// average crossing, recurring indefinitely.
type MomentumReversalParams struct {
	RSIPeriod    int64           `json:"rsi_period"`
	RSIMAPeriod  int64           `json:"rsima_period"`
	Amount       decimal.Decimal `json:"amount"`
}

func (MomentumReversalParams) Kind() OrderKind { return KindMomentumReversal }

// ————————————————————————————————————————————————————————————————————————
// Scheduling cursor
// ————————————————————————————————————————————————————————————————————————

// NextTrigger is the polymorphic scheduling cursor described in §3: either
// a future timestamp (time-driven), a price level (price-driven), or
// serialized grid state. Implemented as a struct of nullable fields rather
// than a true union for straightforward JSON round-tripping through the
// Order Store.
type NextTrigger struct {
	AtMs  *int64           `json:"at_ms,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Grid  *GridState       `json:"grid,omitempty"`
}

// IsZero reports whether the cursor carries no scheduling information:
// either the handler's schedule has not been armed yet or it has run to
// completion.
func (t NextTrigger) IsZero() bool {
	return t.AtMs == nil && t.Price == nil && t.Grid == nil
}

// GridState is the serialized cursor for a Grid order: the last observed
// level and the set of levels already crossed, so advance_schedule can
// detect a new crossing without recomputing full history.
type GridState struct {
	LastLevel  int64   `json:"last_level"`
	BuyLevels  []int64 `json:"buy_levels"`
	SellLevels []int64 `json:"sell_levels"`
}

// ————————————————————————————————————————————————————————————————————————
// AdvancedOrder
// ————————————————————————————————————————————————————————————————————————

// AdvancedOrder is a user-submitted composite intent decomposed into
// on-chain limit-order slices by the Watcher Registry and its type
// handlers. The Order Store is the exclusive owner; every other component
// holds read-only snapshots or addressed handles (id/hash), never direct
// references, per the arena+index resolution of the order<->slice cycle.
type AdvancedOrder struct {
	ID         string `json:"id"`
	Owner      string `json:"owner"`
	MakerAsset string `json:"maker_asset"`
	TakerAsset string `json:"taker_asset"`

	// Symbol names the IndexSymbol the Watcher Registry reads prices from
	// for this order — the asset pair's on-chain addresses alone don't
	// resolve to an aggregated index, so the order carries the mapping
	// explicitly rather than requiring one more cross-reference table.
	Symbol IndexSymbol `json:"symbol"`

	// Side names which side of the index market maker_asset sits on (the
	// maker always hands over maker_asset and receives taker_asset — Side
	// only disambiguates, for limit-price derivation, whether that makes
	// this order a buy or a sell of the index's base asset).
	Side Side `json:"side"`

	Kind   OrderKind   `json:"kind"`
	Params OrderParams `json:"params"`

	Status       OrderStatus `json:"status"`
	CreatedMs    int64       `json:"created_ms"`
	TriggerCount int64       `json:"trigger_count"`

	OriginalMaking decimal.Decimal `json:"original_making"`
	RemainingMaker decimal.Decimal `json:"remaining_maker"`
	TotalFilled    decimal.Decimal `json:"total_filled"`

	NextTrigger NextTrigger `json:"next_trigger"`
	SliceHashes []string    `json:"slice_hashes"`

	LastError string `json:"last_error,omitempty"`

	// Version is an optimistic-concurrency counter bumped on every
	// update_order mutation, used by the Mongo store's FindOneAndReplace.
	Version int64 `json:"version"`
}

// ExpiryDays extracts the params-level expiry, in days, if the variant
// declares one; 0 means no expiry.
func (o *AdvancedOrder) ExpiryDays() int64 {
	switch p := o.Params.(type) {
	case IcebergParams:
		return p.ExpiryDays
	case RangeParams:
		return p.ExpiryDays
	case StopLimitParams:
		return p.ExpiryDays
	case ChaseLimitParams:
		return p.ExpiryDays
	default:
		return 0
	}
}

// IsExpired reports whether nowMs has reached created_ms + expiry_days worth
// of milliseconds (an order is expired at exactly that instant). An expiry of 0 (or unset) means the order never expires.
func (o *AdvancedOrder) IsExpired(nowMs int64) bool {
	days := o.ExpiryDays()
	if days <= 0 {
		return false
	}
	return nowMs >= o.CreatedMs+days*86_400_000
}

// orderEnvelope is the wire shape used to (de)serialize AdvancedOrder: Kind
// discriminates how RawParams should be unmarshaled into a concrete
// OrderParams.
type orderEnvelope struct {
	ID         string          `json:"id"`
	Owner      string          `json:"owner"`
	MakerAsset string          `json:"maker_asset"`
	TakerAsset string          `json:"taker_asset"`
	Symbol     IndexSymbol     `json:"symbol"`
	Side       Side            `json:"side"`
	Kind       OrderKind       `json:"kind"`
	Params     json.RawMessage `json:"params"`

	Status       OrderStatus `json:"status"`
	CreatedMs    int64       `json:"created_ms"`
	TriggerCount int64       `json:"trigger_count"`

	OriginalMaking decimal.Decimal `json:"original_making"`
	RemainingMaker decimal.Decimal `json:"remaining_maker"`
	TotalFilled    decimal.Decimal `json:"total_filled"`

	NextTrigger NextTrigger `json:"next_trigger"`
	SliceHashes []string    `json:"slice_hashes"`

	LastError string `json:"last_error,omitempty"`
	Version   int64  `json:"version"`
}

// MarshalJSON flattens params into the envelope alongside its discriminant.
func (o AdvancedOrder) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(o.Params)
	if err != nil {
		return nil, fmt.Errorf("marshal order params: %w", err)
	}
	env := orderEnvelope{
		ID:             o.ID,
		Owner:          o.Owner,
		MakerAsset:     o.MakerAsset,
		TakerAsset:     o.TakerAsset,
		Symbol:         o.Symbol,
		Side:           o.Side,
		Kind:           o.Kind,
		Params:         raw,
		Status:         o.Status,
		CreatedMs:      o.CreatedMs,
		TriggerCount:   o.TriggerCount,
		OriginalMaking: o.OriginalMaking,
		RemainingMaker: o.RemainingMaker,
		TotalFilled:    o.TotalFilled,
		NextTrigger:    o.NextTrigger,
		SliceHashes:    o.SliceHashes,
		LastError:      o.LastError,
		Version:        o.Version,
	}
	return json.Marshal(env)
}

// UnmarshalJSON dispatches params deserialization by the Kind discriminant.
func (o *AdvancedOrder) UnmarshalJSON(data []byte) error {
	var env orderEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	params, err := UnmarshalOrderParams(env.Kind, env.Params)
	if err != nil {
		return err
	}
	o.ID = env.ID
	o.Owner = env.Owner
	o.MakerAsset = env.MakerAsset
	o.TakerAsset = env.TakerAsset
	o.Symbol = env.Symbol
	o.Side = env.Side
	o.Kind = env.Kind
	o.Params = params
	o.Status = env.Status
	o.CreatedMs = env.CreatedMs
	o.TriggerCount = env.TriggerCount
	o.OriginalMaking = env.OriginalMaking
	o.RemainingMaker = env.RemainingMaker
	o.TotalFilled = env.TotalFilled
	o.NextTrigger = env.NextTrigger
	o.SliceHashes = env.SliceHashes
	o.LastError = env.LastError
	o.Version = env.Version
	return nil
}

// UnmarshalOrderParams decodes raw into the concrete OrderParams variant
// named by kind. Exported so the Order Store can decode params independent
// of the AdvancedOrder envelope (e.g. when reading a partial projection).
func UnmarshalOrderParams(kind OrderKind, raw json.RawMessage) (OrderParams, error) {
	switch kind {
	case KindDCA:
		var p DCAParams
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindTWAP:
		var p TWAPParams
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindIceberg:
		var p IcebergParams
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindRange:
		var p RangeParams
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindGrid:
		var p GridParams
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindStopLimit:
		var p StopLimitParams
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindChaseLimit:
		var p ChaseLimitParams
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindRangeBreakout:
		var p RangeBreakoutParams
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindMomentumReversal:
		var p MomentumReversalParams
		err := json.Unmarshal(raw, &p)
		return p, err
	default:
		return nil, fmt.Errorf("unknown order kind %q", kind)
	}
}

// ————————————————————————————————————————————————————————————————————————
// Slices
// ————————————————————————————————————————————————————————————————————————

// SliceRecord is a single protocol-level limit order emitted on behalf of
// an AdvancedOrder. Invariant: Remaining <= Making.
type SliceRecord struct {
	Hash          string          `json:"hash"`
	ParentID      string          `json:"parent_id"`
	Making        decimal.Decimal `json:"making"`
	Taking        decimal.Decimal `json:"taking"`
	LimitPrice    decimal.Decimal `json:"limit_price"`
	SubmittedMs   int64           `json:"submitted_ms"`
	Remaining     decimal.Decimal `json:"remaining"`
	InvalidReason string          `json:"invalid_reason,omitempty"`

	// missingPolls counts consecutive Slice Monitor polls in which this
	// hash was absent from the protocol API response; after two it is
	// marked invalid_reason=removed (§4.7).
	MissingPolls int `json:"missing_polls"`
}

// FillDelta returns Making - Remaining, the cumulative amount filled.
func (s SliceRecord) FillDelta() decimal.Decimal {
	return s.Making.Sub(s.Remaining)
}
