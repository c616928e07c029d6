package swarmtask_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/swarmassistant/swarmtask"
)

func TestSubmitIsIdempotent(t *testing.T) {
	reg := swarmtask.New(nil)
	ctx := context.Background()

	first, err := reg.Submit(ctx, swarmtask.Snapshot{TaskID: "t1", Title: "Smoke"})
	require.NoError(t, err)

	second, err := reg.Submit(ctx, swarmtask.Snapshot{TaskID: "t1", Title: "Different title"})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "Smoke", second.Title)
	assert.Len(t, reg.List(), 1)
}

func TestTransitionEnforcesDAG(t *testing.T) {
	reg := swarmtask.New(nil)
	ctx := context.Background()
	_, err := reg.Submit(ctx, swarmtask.Snapshot{TaskID: "t1"})
	require.NoError(t, err)

	_, err = reg.Transition(ctx, "t1", swarmtask.StatusPlanning, "")
	require.NoError(t, err)
	_, err = reg.Transition(ctx, "t1", swarmtask.StatusBuilding, "")
	require.NoError(t, err)

	// Reverse transition (Building -> Planning) is illegal.
	_, err = reg.Transition(ctx, "t1", swarmtask.StatusPlanning, "")
	var illegal *swarmtask.ErrIllegalTransition
	require.ErrorAs(t, err, &illegal)
}

func TestBlockedRequiresError(t *testing.T) {
	reg := swarmtask.New(nil)
	ctx := context.Background()
	_, err := reg.Submit(ctx, swarmtask.Snapshot{TaskID: "t1"})
	require.NoError(t, err)

	_, err = reg.Transition(ctx, "t1", swarmtask.StatusBlocked, "")
	require.Error(t, err)

	snap, err := reg.Transition(ctx, "t1", swarmtask.StatusBlocked, "adapter unavailable")
	require.NoError(t, err)
	assert.Equal(t, "adapter unavailable", snap.Error)
}

func TestRunIDImmutableOnceSet(t *testing.T) {
	reg := swarmtask.New(nil)
	ctx := context.Background()
	_, err := reg.Submit(ctx, swarmtask.Snapshot{TaskID: "t1", RunID: "r1"})
	require.NoError(t, err)

	_, err = reg.Update(ctx, "t1", func(s *swarmtask.Snapshot) { s.RunID = "r2" })
	assert.ErrorIs(t, err, swarmtask.ErrRunIDImmutable)
}

func TestAppendChildIsIdempotentAndOrdered(t *testing.T) {
	reg := swarmtask.New(nil)
	ctx := context.Background()
	_, err := reg.Submit(ctx, swarmtask.Snapshot{TaskID: "parent"})
	require.NoError(t, err)

	_, err = reg.AppendChild(ctx, "parent", "child-a")
	require.NoError(t, err)
	_, err = reg.AppendChild(ctx, "parent", "child-b")
	require.NoError(t, err)
	_, err = reg.AppendChild(ctx, "parent", "child-a") // duplicate
	require.NoError(t, err)

	snap, err := reg.Get("parent")
	require.NoError(t, err)
	assert.Equal(t, []string{"child-a", "child-b"}, snap.ChildTaskIDs)
}

func TestGetUnknownTask(t *testing.T) {
	reg := swarmtask.New(nil)
	_, err := reg.Get("nope")
	assert.ErrorIs(t, err, swarmtask.ErrTaskNotFound)
}
