package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/1edge/keeper/internal/store"
	"github.com/1edge/keeper/internal/watcher"
)

type handlers struct {
	store    *store.Store
	registry *watcher.Registry
	logger   *slog.Logger
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"supervisors": h.registry.Len(),
	})
}

// handleListOrders returns every non-terminal order, mirroring the Watcher
// Registry's own bootstrap query (list_pending).
func (h *handlers) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListPending(r.Context())
	if err != nil {
		h.logger.Error("list pending orders", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// orderDetail bundles one order with its slices and event history — the
// full picture a caller needs to inspect a single standing order.
type orderDetail struct {
	Order  any `json:"order"`
	Slices any `json:"slices"`
	Events any `json:"events"`
}

func (h *handlers) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get order", "error", err, "order_id", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slices, err := h.store.ListSlicesForOrder(r.Context(), id)
	if err != nil {
		h.logger.Error("list slices for order", "error", err, "order_id", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	events, err := h.store.ListEvents(r.Context(), id)
	if err != nil {
		h.logger.Error("list events for order", "error", err, "order_id", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, orderDetail{Order: order, Slices: slices, Events: events})
}

func (h *handlers) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.registry.Cancel(r.Context(), id); err != nil {
		h.logger.Warn("cancel order failed", "error", err, "order_id", id)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
