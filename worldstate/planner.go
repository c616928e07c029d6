package worldstate

import "container/heap"

// Plan is the outcome of GoapPlanner.Plan: an ordered recommended
// sequence of actions taking the supplied world state to the goal, or an
// indication that no such sequence exists.
type Plan struct {
	// Satisfied is true when the goal already held in the starting state;
	// RecommendedPlan is empty in that case.
	Satisfied bool
	// DeadEnd is true when the search frontier was exhausted without
	// reaching the goal.
	DeadEnd bool
	// RecommendedPlan is the lowest-cost sequence of actions from start to
	// goal. Nil when Satisfied or DeadEnd.
	RecommendedPlan []Action
}

// Planner implements A*-style forward search over the fixed Actions
// table. It is pure and side-effect-free: two calls with equal (start,
// goal) always return an equal Plan.
type Planner struct {
	actions []Action
}

// NewPlanner constructs a Planner over the global Actions table. A
// caller-supplied action list is accepted so tests can exercise the
// search algorithm over smaller synthetic tables.
func NewPlanner(actions ...Action) *Planner {
	if len(actions) == 0 {
		actions = Actions
	}
	return &Planner{actions: actions}
}

// Plan searches for the lowest-cost action sequence from start to a state
// satisfying every key/value pair in goal. Ties are broken first by total
// cost, then by preferring the action declared earliest in the action
// table at each step.
func (p *Planner) Plan(start State, goal map[Key]bool) Plan {
	if start.Satisfies(goal) {
		return Plan{Satisfied: true}
	}

	open := &nodeHeap{}
	heap.Init(open)
	startNode := &searchNode{state: start, gCost: 0, h: heuristic(start, goal)}
	heap.Push(open, startNode)

	best := map[string]int{start.hash(): 0}
	cameFrom := map[string]*searchNode{}
	actionTaken := map[string]Action{}

	for open.Len() > 0 {
		current := heap.Pop(open).(*searchNode)
		if current.state.Satisfies(goal) {
			return Plan{RecommendedPlan: reconstruct(current, cameFrom, actionTaken)}
		}
		currentHash := current.state.hash()
		if g, ok := best[currentHash]; ok && current.gCost > g {
			continue // stale heap entry
		}

		for _, a := range p.actions {
			if !a.Applicable(current.state) {
				continue
			}
			next := a.Apply(current.state)
			nextHash := next.hash()
			g := current.gCost + a.Cost
			if prev, ok := best[nextHash]; ok && g >= prev {
				continue
			}
			best[nextHash] = g
			cameFrom[nextHash] = current
			actionTaken[nextHash] = a
			heap.Push(open, &searchNode{state: next, gCost: g, h: heuristic(next, goal)})
		}
	}

	return Plan{DeadEnd: true}
}

// heuristic counts goal keys not yet satisfied in s — admissible because
// every action costs at least 1 and can set at most a handful of keys.
func heuristic(s State, goal map[Key]bool) int {
	n := 0
	for k, v := range goal {
		if s.Get(k) != v {
			n++
		}
	}
	return n
}

func reconstruct(end *searchNode, cameFrom map[string]*searchNode, actionTaken map[string]Action) []Action {
	var plan []Action
	h := end.state.hash()
	for {
		a, ok := actionTaken[h]
		if !ok {
			break
		}
		plan = append([]Action{a}, plan...)
		h = cameFrom[h].state.hash()
	}
	return plan
}

type searchNode struct {
	state State
	gCost int
	h     int
	index int
}

func (n *searchNode) fCost() int { return n.gCost + n.h }

// nodeHeap is a container/heap priority queue ordered by fCost, tie-broken
// by insertion order (stable push order approximates "earliest declared
// action" tie-breaking across equal-cost frontiers).
type nodeHeap []*searchNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].fCost() != h[j].fCost() {
		return h[i].fCost() < h[j].fCost()
	}
	return h[i].index < h[j].index
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *nodeHeap) Push(x any) {
	n := x.(*searchNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
