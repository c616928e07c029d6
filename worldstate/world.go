// Package worldstate models the facts a GoapPlanner reasons over: a
// purely functional WorldState mapping, the fixed action table for the
// software-engineering pipeline, and the A*-style planner itself.
package worldstate

import "sort"

// Key enumerates atomic task facts the planner and coordinators reason
// about. Every action's preconditions and effects are expressed in terms
// of these keys.
type Key string

const (
	TaskExists        Key = "TaskExists"
	PlanExists        Key = "PlanExists"
	BuildExists       Key = "BuildExists"
	ReviewCompleted   Key = "ReviewCompleted"
	ReviewApproved    Key = "ReviewApproved"
	ReviewRejected    Key = "ReviewRejected"
	RetryLimitReached Key = "RetryLimitReached"
	ReworkAttempted   Key = "ReworkAttempted"
	TaskCompleted     Key = "TaskCompleted"
	TaskBlocked       Key = "TaskBlocked"
	AdapterAvailable  Key = "AdapterAvailable"
	SubTasksSpawned   Key = "SubTasksSpawned"
	SubTasksCompleted Key = "SubTasksCompleted"
)

// State is an immutable WorldKey -> bool mapping. Construction is purely
// functional: With returns a new State and never mutates the receiver, so
// a State can be shared freely across goroutines and used as a search-node
// identity.
type State struct {
	facts map[Key]bool
}

// Empty returns a State with no facts set (every key reads false).
func Empty() State {
	return State{}
}

// NewState builds a State from the given facts, taking a defensive copy.
func NewState(facts map[Key]bool) State {
	s := State{facts: make(map[Key]bool, len(facts))}
	for k, v := range facts {
		s.facts[k] = v
	}
	return s
}

// Get reports the value of key k; unset keys read false.
func (s State) Get(k Key) bool {
	return s.facts[k]
}

// With returns a new State identical to s except that key k is set to v.
// s is never mutated.
func (s State) With(k Key, v bool) State {
	next := make(map[Key]bool, len(s.facts)+1)
	for kk, vv := range s.facts {
		next[kk] = vv
	}
	next[k] = v
	return State{facts: next}
}

// Satisfies reports whether s agrees with every key/value pair in want.
func (s State) Satisfies(want map[Key]bool) bool {
	for k, v := range want {
		if s.Get(k) != v {
			return false
		}
	}
	return true
}

// hash returns a stable, order-independent identity for s, used as the
// visited-set key during search. Memoizing this lets successor generation
// avoid re-deriving a canonical form for every expansion.
func (s State) hash() string {
	keys := make([]Key, 0, len(s.facts))
	for k, v := range s.facts {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	b := make([]byte, 0, 32*len(keys))
	for _, k := range keys {
		b = append(b, []byte(k)...)
		b = append(b, ';')
	}
	return string(b)
}
