package conceptgraph

import "slices"

// visit marks used by the cycle search.
type visit uint8

const (
	unvisited visit = iota
	inProgress
	done
)

// validateConcepts performs the structural checks Build relies on.
// It returns the first problem found; checks run in a fixed order so the
// reported error is deterministic for a given input.
func validateConcepts(concepts []Concept) error {
	ids := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		if c.ID == "" {
			return &InvalidConceptError{ConceptID: c.ID, Reason: "empty id"}
		}
		if c.Difficulty < 0 {
			return &InvalidConceptError{ConceptID: c.ID, Reason: "difficulty must be >= 0"}
		}
		if ids[c.ID] {
			return &DuplicateConceptError{ConceptID: c.ID}
		}
		ids[c.ID] = true
	}

	for _, c := range concepts {
		for _, prereqID := range c.Prerequisites {
			if !ids[prereqID] {
				return &UnknownPrerequisiteError{ConceptID: c.ID, MissingID: prereqID}
			}
		}
	}

	return findCycle(concepts)
}

// findCycle runs a depth-first search over the prerequisite edges. Reaching a
// node that is still in progress means the current path loops back on itself.
func findCycle(concepts []Concept) error {
	prereqs := make(map[string][]string, len(concepts))
	order := make([]string, 0, len(concepts))
	for _, c := range concepts {
		prereqs[c.ID] = c.Prerequisites
		order = append(order, c.ID)
	}
	slices.Sort(order)

	marks := make(map[string]visit, len(concepts))
	var path []string

	var dfs func(id string) []string
	dfs = func(id string) []string {
		marks[id] = inProgress
		path = append(path, id)
		for _, next := range prereqs[id] {
			switch marks[next] {
			case inProgress:
				start := slices.Index(path, next)
				cycle := append(slices.Clone(path[start:]), next)
				return cycle
			case unvisited:
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		marks[id] = done
		return nil
	}

	for _, id := range order {
		if marks[id] != unvisited {
			continue
		}
		if cycle := dfs(id); cycle != nil {
			return &CyclicPrerequisiteError{Cycle: cycle}
		}
	}
	return nil
}
