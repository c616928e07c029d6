package capability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/swarmassistant/capability"
)

type fixedBidder struct {
	bid   capability.Bid
	delay time.Duration
}

func (f fixedBidder) Bid(ctx context.Context, _, _, _ string) (capability.Bid, error) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return capability.Bid{}, ctx.Err()
	}
	return f.bid, nil
}

func TestCallForProposalsAwardsLowestCost(t *testing.T) {
	reg := capability.New(capability.Options{})
	bidders := map[string]capability.Bidder{
		"cheap":      fixedBidder{bid: capability.Bid{EstimatedCost: 1, EstimatedTimeMs: 100}},
		"expensive":  fixedBidder{bid: capability.Bid{EstimatedCost: 3, EstimatedTimeMs: 500}},
	}

	var announced capability.Award
	award := reg.CallForProposals(context.Background(), "task-cnp", "Builder", "desc", time.Second, bidders, func(a capability.Award) {
		announced = a
	})

	assert.Equal(t, "cheap", award.Winner)
	assert.Equal(t, "cheap", announced.Winner)
	require.Len(t, award.Bids, 2)
}

func TestCallForProposalsTieBreaksByEstimatedTime(t *testing.T) {
	reg := capability.New(capability.Options{})
	bidders := map[string]capability.Bidder{
		"fast": fixedBidder{bid: capability.Bid{EstimatedCost: 2, EstimatedTimeMs: 50}},
		"slow": fixedBidder{bid: capability.Bid{EstimatedCost: 2, EstimatedTimeMs: 900}},
	}

	award := reg.CallForProposals(context.Background(), "task-tie", "Builder", "desc", time.Second, bidders, nil)
	assert.Equal(t, "fast", award.Winner)
}

func TestCallForProposalsWindowExpiresWithoutAllBids(t *testing.T) {
	reg := capability.New(capability.Options{})
	bidders := map[string]capability.Bidder{
		"quick": fixedBidder{bid: capability.Bid{EstimatedCost: 1, EstimatedTimeMs: 10}},
		"slow":  fixedBidder{bid: capability.Bid{EstimatedCost: 1, EstimatedTimeMs: 10}, delay: time.Second},
	}

	award := reg.CallForProposals(context.Background(), "task-window", "Builder", "desc", 50*time.Millisecond, bidders, nil)
	assert.Equal(t, "quick", award.Winner)
	assert.Len(t, award.Bids, 1)
}
