// Package redisbridge mirrors global blackboard keys (circuit state,
// task-available/claimed/complete markers) across process boundaries
// using Redis, for multi-node CapabilityRegistry deployments where every
// node needs to observe the same `adapter.circuit:<id>` fact. Per-task
// namespaces are never mirrored — only GlobalNamespace keys cross the
// process boundary, matching spec.md §6's list of global keys.
package redisbridge

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"goa.design/swarmassistant/blackboard"
)

const keyPrefix = "swarmassistant:blackboard:global:"

// Bridge subscribes to a local Store's global-namespace writes and mirrors
// them into Redis; Pull fetches a single key set by a peer on demand.
type Bridge struct {
	store  *blackboard.Store
	client *redis.Client
}

// New constructs a Bridge over an existing Redis client and local Store.
func New(store *blackboard.Store, client *redis.Client) *Bridge {
	return &Bridge{store: store, client: client}
}

// Attach registers a subscriber on store that mirrors every
// GlobalNamespace write to Redis as a plain string SET. Returns an
// unsubscribe function.
func (b *Bridge) Attach() (unsubscribe func()) {
	return b.store.Subscribe(blackboard.SubscriberFunc(func(ctx context.Context, change blackboard.Change) {
		if change.Namespace != blackboard.GlobalNamespace {
			return
		}
		b.client.Set(ctx, keyPrefix+change.Key, fmt.Sprintf("%v", change.Value), 0)
	}))
}

// Pull fetches key from Redis and, if present, applies it to the local
// store's global namespace so a node that didn't originate the write
// observes it too (e.g. on startup, before any local write has occurred).
func (b *Bridge) Pull(ctx context.Context, key string) (string, bool, error) {
	val, err := b.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redisbridge: get %s: %w", key, err)
	}
	b.store.Set(ctx, blackboard.GlobalNamespace, key, val)
	return val, true, nil
}
