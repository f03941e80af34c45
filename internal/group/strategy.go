package group

import (
	"math/rand"
	"sort"
	"sync/atomic"

	"hangar/internal/config"
)

// selector picks one member from an in-rotation set. All selectors operate
// on a slice already filtered to in-rotation members, and take their own
// lock where needed (members may be shared across concurrent calls).
type selector func(r *Router, candidates []*memberState) *memberState

func selectRoundRobin(r *Router, candidates []*memberState) *memberState {
	if len(candidates) == 0 {
		return nil
	}
	idx := atomic.AddUint32(&r.roundRobinCursor, 1) - 1
	return candidates[int(idx)%len(candidates)]
}

// selectWeightedRoundRobin implements the classic smooth weighted
// round-robin: every pick, each candidate's running currentWeight
// increments by its static weight; the candidate with the highest
// currentWeight is chosen and has its currentWeight reduced by the total
// weight of all candidates. Over many picks this converges each member's
// selection ratio to its weight ratio.
func selectWeightedRoundRobin(r *Router, candidates []*memberState) *memberState {
	if len(candidates) == 0 {
		return nil
	}
	r.weightedMu.Lock()
	defer r.weightedMu.Unlock()

	total := 0
	var best *memberState
	for _, c := range candidates {
		c.mu.Lock()
		c.currentWeight += c.weight
		if best == nil || c.currentWeight > best.currentWeight {
			best = c
		}
		total += c.weight
		c.mu.Unlock()
	}
	best.mu.Lock()
	best.currentWeight -= total
	best.mu.Unlock()
	return best
}

func selectLeastConnections(r *Router, candidates []*memberState) *memberState {
	if len(candidates) == 0 {
		return nil
	}
	sorted := append([]*memberState(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		sorted[i].mu.Lock()
		pi, li := sorted[i].pendingCount, sorted[i].lastUsed
		sorted[i].mu.Unlock()
		sorted[j].mu.Lock()
		pj, lj := sorted[j].pendingCount, sorted[j].lastUsed
		sorted[j].mu.Unlock()
		if pi != pj {
			return pi < pj
		}
		return li.Before(lj)
	})
	return sorted[0]
}

func selectRandom(r *Router, candidates []*memberState) *memberState {
	if len(candidates) == 0 {
		return nil
	}
	hasWeights := false
	total := 0
	for _, c := range candidates {
		c.mu.Lock()
		w := c.weight
		c.mu.Unlock()
		if w != 1 {
			hasWeights = true
		}
		total += w
	}
	if !hasWeights {
		return candidates[rand.Intn(len(candidates))]
	}
	pick := rand.Intn(total)
	for _, c := range candidates {
		c.mu.Lock()
		w := c.weight
		c.mu.Unlock()
		if pick < w {
			return c
		}
		pick -= w
	}
	return candidates[len(candidates)-1]
}

// selectPriority picks uniformly at random among the lowest-priority-number
// tier present in candidates, falling back to the next tier only when the
// lower tier is empty (which it never is here since candidates is already
// filtered, but ties within a tier are broken by random choice).
func selectPriority(r *Router, candidates []*memberState) *memberState {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0].priority
	for _, c := range candidates[1:] {
		c.mu.Lock()
		p := c.priority
		c.mu.Unlock()
		if p < best {
			best = p
		}
	}
	tier := make([]*memberState, 0, len(candidates))
	for _, c := range candidates {
		c.mu.Lock()
		p := c.priority
		c.mu.Unlock()
		if p == best {
			tier = append(tier, c)
		}
	}
	return tier[rand.Intn(len(tier))]
}

func selectorFor(strategy config.Strategy) selector {
	switch strategy {
	case config.StrategyWeightedRoundRobin:
		return selectWeightedRoundRobin
	case config.StrategyLeastConnections:
		return selectLeastConnections
	case config.StrategyRandom:
		return selectRandom
	case config.StrategyPriority:
		return selectPriority
	default:
		return selectRoundRobin
	}
}
