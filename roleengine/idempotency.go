package roleengine

import "sync"

// idempotencyCache deduplicates RoleEngine.Execute calls sharing an
// ExecuteRoleTask.IdempotencyKey, so an at-least-once delivery retry from
// the Dispatcher never double-invokes a CLI adapter with side effects.
// Loosely grounded on the teacher's tool-call idempotency tagging
// (runtime/agent/tools/idempotency.go, dsl/idempotency.go): "repeated
// calls may be treated as redundant once a successful result already
// exists", generalized here from a design-time DSL tag on individual tool
// calls to a runtime cache keyed by an explicit dispatch key, since
// RoleEngine has no DSL layer or per-tool tagging of its own.
type idempotencyCache struct {
	mu    sync.Mutex
	byKey map[string]RoleResult
}

func newIdempotencyCache() *idempotencyCache {
	return &idempotencyCache{byKey: make(map[string]RoleResult)}
}

// get returns the cached result for key. An empty key never matches:
// dispatch sites that don't opt into deduplication see every call as a
// cache miss.
func (c *idempotencyCache) get(key string) (RoleResult, bool) {
	if key == "" {
		return RoleResult{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.byKey[key]
	return result, ok
}

func (c *idempotencyCache) put(key string, result RoleResult) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[key] = result
}
