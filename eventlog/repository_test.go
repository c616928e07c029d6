package eventlog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/swarmassistant/eventlog"
)

func TestListByTaskPaginatesWithCursor(t *testing.T) {
	repo := eventlog.NewMemoryRepository()
	ctx := context.Background()
	for i := uint64(1); i <= 1000; i++ {
		require.NoError(t, repo.Append(ctx, eventlog.Event{
			TaskID: "t1", RunID: "r1", EventType: eventlog.RoleStarted, TaskSequence: i, RunSequence: i,
		}))
	}

	first, err := repo.ListByTask(ctx, "t1", 0, 400)
	require.NoError(t, err)
	require.Len(t, first, 400)
	assert.Equal(t, uint64(1), first[0].TaskSequence)
	assert.Equal(t, uint64(400), first[len(first)-1].TaskSequence)

	second, err := repo.ListByTask(ctx, "t1", first[len(first)-1].TaskSequence, 400)
	require.NoError(t, err)
	require.Len(t, second, 400)
	assert.Equal(t, uint64(401), second[0].TaskSequence)
	assert.Equal(t, uint64(800), second[len(second)-1].TaskSequence)

	third, err := repo.ListByTask(ctx, "t1", second[len(second)-1].TaskSequence, 400)
	require.NoError(t, err)
	assert.Len(t, third, 200)
	assert.Equal(t, uint64(1000), third[len(third)-1].TaskSequence)
}

func TestListByTaskClampsLimit(t *testing.T) {
	repo := eventlog.NewMemoryRepository()
	ctx := context.Background()
	for i := uint64(1); i <= 1500; i++ {
		require.NoError(t, repo.Append(ctx, eventlog.Event{TaskID: "t1", RunID: "r1", TaskSequence: i, RunSequence: i}))
	}

	got, err := repo.ListByTask(ctx, "t1", 0, 5000)
	require.NoError(t, err)
	assert.Len(t, got, 1000)

	got, err = repo.ListByTask(ctx, "t1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestListByRunIsIndependentOfTaskIndex(t *testing.T) {
	repo := eventlog.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, eventlog.Event{TaskID: "child-a", RunID: "run1", TaskSequence: 1, RunSequence: 1}))
	require.NoError(t, repo.Append(ctx, eventlog.Event{TaskID: "child-b", RunID: "run1", TaskSequence: 1, RunSequence: 2}))

	got, err := repo.ListByRun(ctx, "run1", 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "child-a", got[0].TaskID)
	assert.Equal(t, "child-b", got[1].TaskID)
}

func TestListByTaskUnknownTaskReturnsEmpty(t *testing.T) {
	repo := eventlog.NewMemoryRepository()
	got, err := repo.ListByTask(context.Background(), "nope", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
