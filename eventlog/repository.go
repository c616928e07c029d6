package eventlog

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-process reference Repository, useful for tests
// and for running the coordination mesh without a durable backing store.
// It keeps every event twice-indexed (by task and by run) so both list
// operations stay O(page size) rather than O(total events).
type MemoryRepository struct {
	mu      sync.RWMutex
	byTask  map[string][]Event
	byRun   map[string][]Event
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byTask: make(map[string][]Event),
		byRun:  make(map[string][]Event),
	}
}

// Append stores event under both its task and run index. Events are
// appended in append order, which Recorder guarantees is sequence order.
func (m *MemoryRepository) Append(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTask[event.TaskID] = append(m.byTask[event.TaskID], event)
	m.byRun[event.RunID] = append(m.byRun[event.RunID], event)
	return nil
}

// ListByTask returns up to limit events for taskID with TaskSequence >
// afterSequence, ascending.
func (m *MemoryRepository) ListByTask(_ context.Context, taskID string, afterSequence uint64, limit int) ([]Event, error) {
	limit = ClampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return page(m.byTask[taskID], afterSequence, limit, func(e Event) uint64 { return e.TaskSequence }), nil
}

// ListByRun returns up to limit events for runID with RunSequence >
// afterSequence, ascending.
func (m *MemoryRepository) ListByRun(_ context.Context, runID string, afterSequence uint64, limit int) ([]Event, error) {
	limit = ClampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return page(m.byRun[runID], afterSequence, limit, func(e Event) uint64 { return e.RunSequence }), nil
}

// page filters events whose sequence (per seqOf) is strictly greater than
// after, sorts ascending by that sequence, and truncates to limit. The
// slices handed in are already in append order, but sorting defensively
// keeps the contract correct even if a future Repository implementation
// stores out of order.
func page(events []Event, after uint64, limit int, seqOf func(Event) uint64) []Event {
	var filtered []Event
	for _, e := range events {
		if seqOf(e) > after {
			filtered = append(filtered, e)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return seqOf(filtered[i]) < seqOf(filtered[j]) })
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}
