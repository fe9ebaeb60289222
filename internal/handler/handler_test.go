package handler

import (
	"testing"

	"github.com/1edge/keeper/pkg/types"
)

func TestForUnknownKindErrors(t *testing.T) {
	if _, err := For(types.OrderKind("Bogus")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestForReturnsHandlerPerKind(t *testing.T) {
	kinds := []types.OrderKind{
		types.KindDCA, types.KindTWAP, types.KindIceberg, types.KindRange,
		types.KindGrid, types.KindStopLimit, types.KindChaseLimit,
		types.KindRangeBreakout, types.KindMomentumReversal,
	}
	for _, k := range kinds {
		if _, err := For(k); err != nil {
			t.Errorf("For(%s): %v", k, err)
		}
	}
}
