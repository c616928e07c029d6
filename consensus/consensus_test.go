package consensus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/swarmassistant/consensus"
	"goa.design/swarmassistant/eventlog"
)

func drain(t *testing.T, repo *eventlog.MemoryRepository, taskID string, want int) []eventlog.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := repo.ListByTask(context.Background(), taskID, 0, 1000)
		require.NoError(t, err)
		if len(got) >= want {
			return got
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events for task %s", want, taskID)
	return nil
}

func TestMajorityApprovesOnMoreApprovalsThanRejections(t *testing.T) {
	r := consensus.New(consensus.Options{})
	ctx := context.Background()

	r.Request(ctx, "run-1", "t1", "patch.diff", 3, consensus.ModeMajority)
	_, done := r.Vote(ctx, "t1", "patch.diff", consensus.Vote{VoterID: "a", Approved: true})
	assert.False(t, done)
	_, done = r.Vote(ctx, "t1", "patch.diff", consensus.Vote{VoterID: "b", Approved: true})
	assert.False(t, done)
	result, done := r.Vote(ctx, "t1", "patch.diff", consensus.Vote{VoterID: "c", Approved: false})
	require.True(t, done)
	assert.True(t, result.Approved)
	assert.Len(t, result.Votes, 3)
}

func TestMajorityTieFavorsRejection(t *testing.T) {
	r := consensus.New(consensus.Options{})
	ctx := context.Background()

	r.Request(ctx, "run-1", "t2", "patch.diff", 2, consensus.ModeMajority)
	r.Vote(ctx, "t2", "patch.diff", consensus.Vote{VoterID: "a", Approved: true})
	result, done := r.Vote(ctx, "t2", "patch.diff", consensus.Vote{VoterID: "b", Approved: false})
	require.True(t, done)
	assert.False(t, result.Approved, "a 1-1 tie must favor rejection")
}

func TestUnanimousRejectsOnAnySingleReject(t *testing.T) {
	r := consensus.New(consensus.Options{})
	ctx := context.Background()

	r.Request(ctx, "run-1", "t3", "patch.diff", 3, consensus.ModeUnanimous)
	r.Vote(ctx, "t3", "patch.diff", consensus.Vote{VoterID: "a", Approved: true})
	r.Vote(ctx, "t3", "patch.diff", consensus.Vote{VoterID: "b", Approved: false})
	result, done := r.Vote(ctx, "t3", "patch.diff", consensus.Vote{VoterID: "c", Approved: true})
	require.True(t, done)
	assert.False(t, result.Approved)
}

func TestWeightedApprovesOnHigherApprovingWeight(t *testing.T) {
	r := consensus.New(consensus.Options{})
	ctx := context.Background()

	r.Request(ctx, "run-1", "t4", "patch.diff", 2, consensus.ModeWeighted)
	r.Vote(ctx, "t4", "patch.diff", consensus.Vote{VoterID: "senior", Approved: true, Weight: 3})
	result, done := r.Vote(ctx, "t4", "patch.diff", consensus.Vote{VoterID: "junior", Approved: false, Weight: 1})
	require.True(t, done)
	assert.True(t, result.Approved)
}

func TestWeightedTieFavorsRejection(t *testing.T) {
	r := consensus.New(consensus.Options{})
	ctx := context.Background()

	r.Request(ctx, "run-1", "t5", "patch.diff", 2, consensus.ModeWeighted)
	r.Vote(ctx, "t5", "patch.diff", consensus.Vote{VoterID: "a", Approved: true, Weight: 2})
	result, done := r.Vote(ctx, "t5", "patch.diff", consensus.Vote{VoterID: "b", Approved: false, Weight: 2})
	require.True(t, done)
	assert.False(t, result.Approved)
}

func TestDuplicateVoterIsIgnored(t *testing.T) {
	r := consensus.New(consensus.Options{})
	ctx := context.Background()

	r.Request(ctx, "run-1", "t6", "patch.diff", 2, consensus.ModeMajority)
	_, done := r.Vote(ctx, "t6", "patch.diff", consensus.Vote{VoterID: "a", Approved: true})
	assert.False(t, done)
	_, done = r.Vote(ctx, "t6", "patch.diff", consensus.Vote{VoterID: "a", Approved: true})
	assert.False(t, done, "a repeat vote from the same voterId must not complete the request")
	assert.True(t, r.Pending("t6", "patch.diff"))
}

func TestRequestIsIdempotentByTaskAndArtifact(t *testing.T) {
	r := consensus.New(consensus.Options{})
	ctx := context.Background()

	r.Request(ctx, "run-1", "t7", "patch.diff", 1, consensus.ModeMajority)
	r.Request(ctx, "run-1", "t7", "patch.diff", 99, consensus.ModeUnanimous) // must not reset expectedVoters/mode

	result, done := r.Vote(ctx, "t7", "patch.diff", consensus.Vote{VoterID: "a", Approved: true})
	require.True(t, done, "the second Request call must not have raised expectedVoters to 99")
	assert.Equal(t, consensus.ModeMajority, result.Mode)
}

func TestVoteEmitsTelemetryConsensusOnCompletion(t *testing.T) {
	repo := eventlog.NewMemoryRepository()
	rec := eventlog.NewRecorder(repo, nil)
	defer rec.Close()

	r := consensus.New(consensus.Options{Events: rec})
	ctx := context.Background()

	r.Request(ctx, "run-1", "t8", "patch.diff", 1, consensus.ModeMajority)
	_, done := r.Vote(ctx, "t8", "patch.diff", consensus.Vote{VoterID: "a", Approved: true})
	require.True(t, done)

	events := drain(t, repo, "t8", 1)
	require.NotEmpty(t, events, "telemetry.consensus must be recorded once the request completes")
	assert.Equal(t, eventlog.TelemetryConsensus, events[0].EventType)
}
