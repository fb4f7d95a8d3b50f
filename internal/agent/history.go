package agent

import (
	"github.com/google/uuid"
	"go-teethagent/pkg/models"
	"sync"
)

// resultHistory keeps every command result for the life of the process, in insertion order.
// Writes happen under the agent's command lock; the read lock lets status and listing
// requests proceed while a long command holds that lock.
type resultHistory struct {
	mu    sync.RWMutex
	ids   map[uuid.UUID]models.CommandResult
	order []models.CommandResult
}

func newResultHistory() *resultHistory {
	return &resultHistory{
		ids: map[uuid.UUID]models.CommandResult{},
	}
}

func (h *resultHistory) add(r models.CommandResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.ids[r.ID()]; !exists {
		h.order = append(h.order, r)
	}
	h.ids[r.ID()] = r
}

func (h *resultHistory) get(id uuid.UUID) (models.CommandResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.ids[id]
	return r, ok
}

func (h *resultHistory) last() (models.CommandResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.order) == 0 {
		return nil, false
	}
	return h.order[len(h.order)-1], true
}

func (h *resultHistory) list() []models.CommandResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.CommandResult, len(h.order))
	copy(out, h.order)
	return out
}
