package supervisor_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/swarmassistant/blackboard"
	"goa.design/swarmassistant/supervisor"
)

func TestReportFailureRetriesUpToMax(t *testing.T) {
	s := supervisor.New(supervisor.Options{MaxRetriesPerTask: 3})
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		decision := s.ReportFailure(ctx, supervisor.RoleFailureReport{TaskID: "t1", Message: "adapter timed out"})
		assert.True(t, decision.Retry)
		assert.Equal(t, "retry #"+strconv.Itoa(n), decision.Reason)
	}

	decision := s.ReportFailure(ctx, supervisor.RoleFailureReport{TaskID: "t1", Message: "adapter timed out"})
	assert.False(t, decision.Retry)
	assert.True(t, decision.RetryBlocked)
}

func TestSimulatedFailuresAreNeverRetried(t *testing.T) {
	s := supervisor.New(supervisor.Options{})
	ctx := context.Background()

	decision := s.ReportFailure(ctx, supervisor.RoleFailureReport{TaskID: "t1", Message: "simulated failure for test scenario 4"})
	assert.False(t, decision.Retry)
	assert.False(t, decision.RetryBlocked)
}

func TestCircuitOpensAtThresholdAndWritesBlackboard(t *testing.T) {
	bb := blackboard.New()
	s := supervisor.New(supervisor.Options{AdapterCircuitThreshold: 3, Blackboard: bb})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s.ReportFailure(ctx, supervisor.RoleFailureReport{TaskID: "t1", AdapterID: "adapter-a", Message: "boom"})
		assert.False(t, s.CircuitOpen("adapter-a"))
	}
	s.ReportFailure(ctx, supervisor.RoleFailureReport{TaskID: "t1", AdapterID: "adapter-a", Message: "boom"})

	assert.True(t, s.CircuitOpen("adapter-a"))
	v, ok := bb.Get(blackboard.GlobalNamespace, blackboard.AdapterCircuitKey("adapter-a"))
	require.True(t, ok)
	assert.Equal(t, "open", v)
}

func TestCircuitOpenInvokesOnCircuitOpenCallback(t *testing.T) {
	var opened []string
	s := supervisor.New(supervisor.Options{
		AdapterCircuitThreshold: 2,
		OnCircuitOpen:           func(_ context.Context, adapterID string) { opened = append(opened, adapterID) },
	})
	ctx := context.Background()

	s.ReportFailure(ctx, supervisor.RoleFailureReport{TaskID: "t1", AdapterID: "adapter-a", Message: "boom"})
	assert.Empty(t, opened)
	s.ReportFailure(ctx, supervisor.RoleFailureReport{TaskID: "t1", AdapterID: "adapter-a", Message: "boom"})
	assert.Equal(t, []string{"adapter-a"}, opened)
}

func TestSuccessResetsCircuit(t *testing.T) {
	bb := blackboard.New()
	s := supervisor.New(supervisor.Options{AdapterCircuitThreshold: 2, Blackboard: bb})
	ctx := context.Background()

	s.ReportFailure(ctx, supervisor.RoleFailureReport{TaskID: "t1", AdapterID: "adapter-a", Message: "boom"})
	s.ReportFailure(ctx, supervisor.RoleFailureReport{TaskID: "t1", AdapterID: "adapter-a", Message: "boom"})
	require.True(t, s.CircuitOpen("adapter-a"))

	s.ReportSuccess(ctx, "adapter-a")
	assert.False(t, s.CircuitOpen("adapter-a"))
	v, _ := bb.Get(blackboard.GlobalNamespace, blackboard.AdapterCircuitKey("adapter-a"))
	assert.Equal(t, "closed", v)
}

func TestCircuitClosesAfterCooldown(t *testing.T) {
	s := supervisor.New(supervisor.Options{AdapterCircuitThreshold: 1, AdapterCircuitCooldown: time.Millisecond})
	ctx := context.Background()

	s.ReportFailure(ctx, supervisor.RoleFailureReport{TaskID: "t1", AdapterID: "adapter-a", Message: "boom"})
	require.True(t, s.CircuitOpen("adapter-a"))

	time.Sleep(5 * time.Millisecond)
	assert.False(t, s.CircuitOpen("adapter-a"))
}

func TestLowConfidenceQualityConcernsContributeToCircuit(t *testing.T) {
	s := supervisor.New(supervisor.Options{AdapterCircuitThreshold: 2, LowConfidenceThreshold: 0.5})
	ctx := context.Background()

	s.ReportQualityConcern(ctx, supervisor.QualityConcern{TaskID: "t1", AdapterID: "adapter-a", Confidence: 0.2})
	s.ReportQualityConcern(ctx, supervisor.QualityConcern{TaskID: "t1", AdapterID: "adapter-a", Confidence: 0.1})

	assert.True(t, s.CircuitOpen("adapter-a"))
	assert.Len(t, s.QualityConcerns(), 2)
}

func TestSnapshotAggregatesCounters(t *testing.T) {
	s := supervisor.New(supervisor.Options{})
	ctx := context.Background()

	s.RecordStarted()
	s.RecordStarted()
	s.ReportSuccess(ctx, "")
	s.ReportFailure(ctx, supervisor.RoleFailureReport{TaskID: "t1", Message: "boom"})
	s.RecordEscalation()

	snap := s.GetSupervisorSnapshot()
	assert.Equal(t, 2, snap.Started)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Escalations)
}
