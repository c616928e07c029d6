package capability

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Bid is one agent's proposal in a Contract-Net auction (spec.md §4.6).
type Bid struct {
	AgentID         string
	EstimatedCost   float64
	EstimatedTimeMs int64
	arrivedAt       time.Time
	seq             int
}

// Award announces the winner of a Contract-Net auction.
type Award struct {
	TaskID string
	Role   string
	Winner string
	Bids   []Bid
}

// Bidder lets an agent submit a ContractNetBid for a call for proposals.
// Production deployments implement this over the a2a peer transport;
// tests and in-process agents can implement it directly.
type Bidder interface {
	Bid(ctx context.Context, taskID, role, description string) (Bid, error)
}

// CallForProposals broadcasts a bid request to every agent advertising
// role, collects bids until window elapses or every solicited bidder has
// replied, and awards to the lowest EstimatedCost (ties broken by lowest
// EstimatedTimeMs, then earliest arrival). announce is invoked with the
// Award before CallForProposals returns, mirroring "emit ContractNetAward
// ... and announce on the event bus" (spec.md §4.6).
func (r *Registry) CallForProposals(ctx context.Context, taskID, role, description string, window time.Duration, bidders map[string]Bidder, announce func(Award)) Award {
	type result struct {
		bid Bid
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	results := make(chan result, len(bidders))
	var seqMu sync.Mutex
	seq := 0
	for agentID, bidder := range bidders {
		agentID, bidder := agentID, bidder
		go func() {
			b, err := bidder.Bid(ctx, taskID, role, description)
			b.AgentID = agentID
			b.arrivedAt = time.Now()
			seqMu.Lock()
			seq++
			b.seq = seq
			seqMu.Unlock()
			results <- result{bid: b, err: err}
		}()
	}

	var bids []Bid
	for i := 0; i < len(bidders); i++ {
		select {
		case res := <-results:
			if res.err == nil {
				bids = append(bids, res.bid)
			}
		case <-ctx.Done():
			i = len(bidders) // stop waiting once the window elapses
		}
	}

	sort.Slice(bids, func(i, j int) bool {
		if bids[i].EstimatedCost != bids[j].EstimatedCost {
			return bids[i].EstimatedCost < bids[j].EstimatedCost
		}
		if bids[i].EstimatedTimeMs != bids[j].EstimatedTimeMs {
			return bids[i].EstimatedTimeMs < bids[j].EstimatedTimeMs
		}
		return bids[i].seq < bids[j].seq
	})

	award := Award{TaskID: taskID, Role: role, Bids: bids}
	if len(bids) > 0 {
		award.Winner = bids[0].AgentID
	}
	if announce != nil {
		announce(award)
	}
	return award
}
