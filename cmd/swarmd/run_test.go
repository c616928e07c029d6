package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/swarmassistant/swarmtask"
)

func TestAwaitTerminalReturnsOnceStatusReachesDone(t *testing.T) {
	tasks := swarmtask.New(nil)
	ctx := context.Background()
	_, err := tasks.Submit(ctx, swarmtask.Snapshot{TaskID: "t1"})
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = tasks.Transition(ctx, "t1", swarmtask.StatusPlanning, "")
		_, _ = tasks.Transition(ctx, "t1", swarmtask.StatusBuilding, "")
		_, _ = tasks.Transition(ctx, "t1", swarmtask.StatusReviewing, "")
		_, _ = tasks.Transition(ctx, "t1", swarmtask.StatusDone, "")
	}()

	snap, err := awaitTerminal(ctx, tasks, "t1")
	require.NoError(t, err)
	assert.Equal(t, swarmtask.StatusDone, snap.Status)
}

func TestAwaitTerminalHonoursContextCancellation(t *testing.T) {
	tasks := swarmtask.New(nil)
	ctx := context.Background()
	_, err := tasks.Submit(ctx, swarmtask.Snapshot{TaskID: "t2"})
	require.NoError(t, err)

	timeoutCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	_, err = awaitTerminal(timeoutCtx, tasks, "t2")
	assert.Error(t, err)
}

func TestLoadConfigFallsBackToDefaultsWithoutAPath(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "hybrid", cfg.ExecutionMode)
}
