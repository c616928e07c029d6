package blackboard_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/swarmassistant/blackboard"
)

func TestSetGetPerNamespace(t *testing.T) {
	store := blackboard.New()
	ctx := context.Background()

	store.Set(ctx, "t1", "plan", "do the thing")
	store.Set(ctx, "t2", "plan", "do another thing")

	v, ok := store.Get("t1", "plan")
	require.True(t, ok)
	assert.Equal(t, "do the thing", v)

	v, ok = store.Get("t2", "plan")
	require.True(t, ok)
	assert.Equal(t, "do another thing", v)

	_, ok = store.Get("t1", "missing")
	assert.False(t, ok)
}

func TestGlobalNamespaceKeys(t *testing.T) {
	store := blackboard.New()
	ctx := context.Background()
	key := blackboard.AdapterCircuitKey("local-echo")
	store.Set(ctx, blackboard.GlobalNamespace, key, "open")

	v, ok := store.Get(blackboard.GlobalNamespace, key)
	require.True(t, ok)
	assert.Equal(t, "open", v)
}

func TestSubscribeBroadcastsChanges(t *testing.T) {
	store := blackboard.New()
	ctx := context.Background()

	var mu sync.Mutex
	var seen []blackboard.Change
	unsub := store.Subscribe(blackboard.SubscriberFunc(func(_ context.Context, change blackboard.Change) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, change)
	}))
	defer unsub()

	store.Set(ctx, "t1", "k", "v")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "t1", seen[0].Namespace)
	assert.Equal(t, "k", seen[0].Key)
}

func TestDropNamespace(t *testing.T) {
	store := blackboard.New()
	ctx := context.Background()
	store.Set(ctx, "t1", "k", "v")
	store.DropNamespace("t1")
	_, ok := store.Get("t1", "k")
	assert.False(t, ok)
}

func TestSnapshotIsDefensiveCopy(t *testing.T) {
	store := blackboard.New()
	ctx := context.Background()
	store.Set(ctx, "t1", "k", "v")

	snap := store.Snapshot("t1")
	snap["k"] = "mutated"

	v, _ := store.Get("t1", "k")
	assert.Equal(t, "v", v)
}
