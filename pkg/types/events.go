package types

// EventKind names the audit-log entries the Order Store appends. Replaying
// the full event log for a parent must reconstruct identical AdvancedOrder
// state (the event-sourcing property in §8).
type EventKind string

const (
	EventOrderCreated         EventKind = "OrderCreated"
	EventSliceEmitted         EventKind = "SliceEmitted"
	EventSliceFailed          EventKind = "SliceFailed"
	EventOrderPartiallyFilled EventKind = "OrderPartiallyFilled"
	EventOrderFilled          EventKind = "OrderFilled"
	EventOrderCancelled       EventKind = "OrderCancelled"
	EventOrderExpired         EventKind = "OrderExpired"
	EventOrderFailed          EventKind = "OrderFailed"
)

// OrderEvent is an immutable audit entry appended by append_event. Detail
// carries kind-specific context (e.g. the slice hash for SliceEmitted, the
// error string for SliceFailed/OrderFailed).
type OrderEvent struct {
	ParentID string    `json:"parent_id"`
	Kind     EventKind `json:"kind"`
	Detail   string    `json:"detail,omitempty"`
	TsMs     int64     `json:"ts_ms"`
}
