package mastery

import (
	"sort"

	"github.com/abhisek/masteryforge/internal/conceptgraph"
)

// Mastered returns the set of concept ids whose state has reached the
// mastery threshold.
func (e *Engine) Mastered(states map[string]State) map[string]bool {
	mastered := make(map[string]bool, len(states))
	for id, st := range states {
		if st.IsMastered(e.params) {
			mastered[id] = true
		}
	}
	return mastered
}

// SelectNextConcept recommends the concept the learner should work on next.
// states maps concept id to the learner's state; currentID is the concept the
// learner is working on now, or "" if none. The second return value is false
// when nothing is left to recommend.
//
// Only concepts whose prerequisites are all mastered are considered. When the
// learner is frustrated with currentID, that concept is set aside and, if any
// candidate is strictly easier than it, the choice is restricted to those.
// Candidates are ranked by difficulty, then untouched (no stored state)
// before attempted, then lowest mastery, then id. The result depends only on
// the inputs.
func (e *Engine) SelectNextConcept(g *conceptgraph.Graph, states map[string]State, currentID string) (conceptgraph.Concept, bool) {
	mastered := e.Mastered(states)

	var candidates []conceptgraph.Concept
	for _, c := range g.AvailableConcepts(mastered) {
		if st, ok := states[c.ID]; ok && st.IsMastered(e.params) {
			continue
		}
		candidates = append(candidates, c)
	}

	candidates = e.backOff(g, states, currentID, candidates)
	if len(candidates) == 0 {
		return conceptgraph.Concept{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return e.ranksBefore(candidates[i], candidates[j], states)
	})
	return candidates[0], true
}

// backOff applies frustration escalation for the current concept. If setting
// the current concept aside would leave nothing, it stays the only candidate.
func (e *Engine) backOff(g *conceptgraph.Graph, states map[string]State, currentID string, candidates []conceptgraph.Concept) []conceptgraph.Concept {
	if currentID == "" {
		return candidates
	}
	st, ok := states[currentID]
	if !ok || !st.IsFrustrated(e.params) {
		return candidates
	}

	var current *conceptgraph.Concept
	alternatives := make([]conceptgraph.Concept, 0, len(candidates))
	for i := range candidates {
		if candidates[i].ID == currentID {
			current = &candidates[i]
			continue
		}
		alternatives = append(alternatives, candidates[i])
	}
	if len(alternatives) == 0 {
		if current != nil {
			return []conceptgraph.Concept{*current}
		}
		return nil
	}

	cur, err := g.Get(currentID)
	if err != nil {
		return alternatives
	}
	var easier []conceptgraph.Concept
	for _, c := range alternatives {
		if c.Difficulty < cur.Difficulty {
			easier = append(easier, c)
		}
	}
	if len(easier) > 0 {
		return easier
	}
	return alternatives
}

func (e *Engine) ranksBefore(a, b conceptgraph.Concept, states map[string]State) bool {
	if a.Difficulty != b.Difficulty {
		return a.Difficulty < b.Difficulty
	}

	sa, aSeen := attempted(states, a.ID)
	sb, bSeen := attempted(states, b.ID)
	if aSeen != bSeen {
		return !aSeen
	}
	if aSeen && sa.MasteryScore != sb.MasteryScore {
		return sa.MasteryScore < sb.MasteryScore
	}
	return a.ID < b.ID
}

// attempted returns the state for id and whether one is stored. Any stored
// state counts as attempted, whatever its attempt count.
func attempted(states map[string]State, id string) (State, bool) {
	st, ok := states[id]
	return st, ok
}
