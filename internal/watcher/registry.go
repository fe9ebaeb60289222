package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1edge/keeper/internal/index"
	"github.com/1edge/keeper/internal/pricebus"
	"github.com/1edge/keeper/internal/protocol"
	"github.com/1edge/keeper/internal/store"
	"github.com/1edge/keeper/pkg/types"
)

// Registry maintains one running supervisor per non-terminal AdvancedOrder,
// generalizing the teacher's engine.Engine slots map (one strategy
// goroutine per traded market) to one schedule goroutine per order. Order
// creation itself is an out-of-scope external collaborator (§6 api_port);
// Registry's job starts once an order already exists in the Order Store —
// on Start it reconstructs every supervisor from list_pending, and Watch
// lets a newly inserted order join without restarting the process.
type Registry struct {
	store     *store.Store
	index     *index.Engine
	bus       *pricebus.Hub
	submitter *protocol.Submitter
	chainID   int64
	logger    *slog.Logger

	mu    sync.Mutex
	slots map[string]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry wires the components a supervisor needs: the Order Store,
// the Index Engine (for bootstrap snapshots), the Price Bus (for live
// deliveries), and the Slice Submitter (for on-chain publication).
func NewRegistry(st *store.Store, idx *index.Engine, bus *pricebus.Hub, submitter *protocol.Submitter, chainID int64, logger *slog.Logger) *Registry {
	return &Registry{
		store:     st,
		index:     idx,
		bus:       bus,
		submitter: submitter,
		chainID:   chainID,
		logger:    logger.With("component", "watcher_registry"),
		slots:     make(map[string]context.CancelFunc),
	}
}

// Start reconstructs a supervisor for every AdvancedOrder the Order Store
// reports as non-terminal, matching §4.4's "on startup, reconstruct from
// list_pending()" contract. Must be called at most once.
func (r *Registry) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	pending, err := r.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}

	for _, order := range pending {
		r.spawn(order.ID)
	}
	r.logger.Info("watcher registry started", "reconstructed", len(pending))
	return nil
}

// Watch starts a supervisor for an order already persisted by the caller
// (status=Pending), without disturbing any other running supervisor. It is
// idempotent: watching an order id that already has a running supervisor
// is a no-op.
func (r *Registry) Watch(order types.AdvancedOrder) {
	r.spawn(order.ID)
}

func (r *Registry) spawn(orderID string) {
	r.mu.Lock()
	if _, running := r.slots[orderID]; running {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.slots[orderID] = cancel
	r.mu.Unlock()

	sup := newSupervisor(orderID, r.chainID, r.store, r.index, r.bus, r.submitter, r.logger)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		sup.run(ctx)

		r.mu.Lock()
		delete(r.slots, orderID)
		r.mu.Unlock()
	}()
}

// Cancel stops orderID's supervisor, if running, and transitions the order
// to Cancelled. Returns an error if the order is already terminal.
func (r *Registry) Cancel(ctx context.Context, orderID string) error {
	r.mu.Lock()
	cancel, running := r.slots[orderID]
	r.mu.Unlock()
	if running {
		cancel()
	}

	_, err := r.store.UpdateOrder(ctx, orderID, func(o *types.AdvancedOrder) error {
		if o.Status.IsTerminal() {
			return fmt.Errorf("order %s already terminal (%s)", orderID, o.Status)
		}
		o.Status = types.StatusCancelled
		return nil
	})
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}

	return r.store.AppendEvent(ctx, types.OrderEvent{
		ParentID: orderID,
		Kind:     types.EventOrderCancelled,
		TsMs:     time.Now().UnixMilli(),
	})
}

// Stop cancels every running supervisor and waits for them to exit.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Len reports the number of currently running supervisors. Exposed for
// tests and operational introspection.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}
