package store

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

func TestSnapshotWriteAndRead(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	w, err := NewSnapshotWriter(dir, true)
	if err != nil {
		t.Fatalf("NewSnapshotWriter: %v", err)
	}

	order := types.AdvancedOrder{
		ID:             "order-1",
		Kind:           types.KindDCA,
		Params:         types.DCAParams{IntervalMs: 1000, Amount: decimal.RequireFromString("10")},
		Status:         types.StatusActive,
		RemainingMaker: decimal.RequireFromString("90"),
	}

	if err := w.WriteOrder(order); err != nil {
		t.Fatalf("WriteOrder: %v", err)
	}

	loaded, err := w.ReadOrder("order-1")
	if err != nil {
		t.Fatalf("ReadOrder: %v", err)
	}
	if loaded == nil {
		t.Fatal("ReadOrder returned nil")
	}
	if loaded.ID != order.ID || !loaded.RemainingMaker.Equal(order.RemainingMaker) {
		t.Errorf("got %+v, want id/remaining matching %+v", loaded, order)
	}
}

func TestSnapshotReadMissingReturnsNil(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	w, err := NewSnapshotWriter(dir, true)
	if err != nil {
		t.Fatalf("NewSnapshotWriter: %v", err)
	}

	loaded, err := w.ReadOrder("nonexistent")
	if err != nil {
		t.Fatalf("ReadOrder: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for missing snapshot, got %+v", loaded)
	}
}

func TestSnapshotDisabledIsNoop(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	w, err := NewSnapshotWriter(dir, false)
	if err != nil {
		t.Fatalf("NewSnapshotWriter: %v", err)
	}

	if err := w.WriteOrder(types.AdvancedOrder{ID: "order-1"}); err != nil {
		t.Fatalf("WriteOrder on disabled writer: %v", err)
	}
	loaded, err := w.ReadOrder("order-1")
	if err != nil || loaded != nil {
		t.Errorf("ReadOrder on disabled writer = (%v, %v), want (nil, nil)", loaded, err)
	}
}
