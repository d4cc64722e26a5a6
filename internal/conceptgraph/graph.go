package conceptgraph

import (
	"slices"
	"sort"
)

// Graph is an immutable, validated prerequisite DAG with precomputed indices.
// A Graph is safe for concurrent use by any number of readers.
type Graph struct {
	concepts   []Concept
	byID       map[string]*Concept
	roots      []Concept
	dependents map[string][]string
	topoOrder  []Concept
	topoIndex  map[string]int
}

// Build validates the concept set and constructs a Graph from it.
// On any validation error no graph is returned; the set is rejected wholesale.
func Build(concepts []Concept) (*Graph, error) {
	if err := validateConcepts(concepts); err != nil {
		return nil, err
	}

	g := &Graph{
		concepts:   make([]Concept, len(concepts)),
		byID:       make(map[string]*Concept, len(concepts)),
		dependents: make(map[string][]string),
		topoIndex:  make(map[string]int, len(concepts)),
	}
	for i, c := range concepts {
		g.concepts[i] = c.clone()
	}

	for i := range g.concepts {
		g.byID[g.concepts[i].ID] = &g.concepts[i]
	}

	// Reverse edges: prerequisite -> concepts that list it.
	for i := range g.concepts {
		for _, prereqID := range g.concepts[i].Prerequisites {
			g.dependents[prereqID] = append(g.dependents[prereqID], g.concepts[i].ID)
		}
	}
	for id := range g.dependents {
		sort.Strings(g.dependents[id])
	}

	// Topological sort (Kahn's algorithm), ids sorted for deterministic order.
	inDegree := make(map[string]int, len(g.concepts))
	for i := range g.concepts {
		inDegree[g.concepts[i].ID] = len(g.concepts[i].Prerequisites)
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		g.topoIndex[id] = len(g.topoOrder)
		g.topoOrder = append(g.topoOrder, *g.byID[id])

		for _, depID := range g.dependents[id] {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	for _, c := range g.topoOrder {
		if len(c.Prerequisites) == 0 {
			g.roots = append(g.roots, c)
		}
	}

	return g, nil
}

// Len returns the number of concepts in the graph.
func (g *Graph) Len() int {
	return len(g.concepts)
}

// Contains reports whether id names a concept in the graph.
func (g *Graph) Contains(id string) bool {
	_, ok := g.byID[id]
	return ok
}

// Get returns a concept by ID, or a *NotFoundError.
func (g *Graph) Get(id string) (Concept, error) {
	c, ok := g.byID[id]
	if !ok {
		return Concept{}, &NotFoundError{ConceptID: id}
	}
	return c.clone(), nil
}

// Concepts returns all concepts in load order.
func (g *Graph) Concepts() []Concept {
	return cloneAll(g.concepts)
}

// Roots returns all concepts with no prerequisites, in topological order.
func (g *Graph) Roots() []Concept {
	return cloneAll(g.roots)
}

// TopologicalOrder returns all concepts such that every concept appears
// after all of its prerequisites.
func (g *Graph) TopologicalOrder() []Concept {
	return cloneAll(g.topoOrder)
}

// Prerequisites returns the direct prerequisite concepts for id.
func (g *Graph) Prerequisites(id string) ([]Concept, error) {
	c, ok := g.byID[id]
	if !ok {
		return nil, &NotFoundError{ConceptID: id}
	}
	result := make([]Concept, 0, len(c.Prerequisites))
	for _, prereqID := range c.Prerequisites {
		result = append(result, g.byID[prereqID].clone())
	}
	return result, nil
}

// Dependents returns concepts that directly list id as a prerequisite,
// sorted by id.
func (g *Graph) Dependents(id string) ([]Concept, error) {
	if _, ok := g.byID[id]; !ok {
		return nil, &NotFoundError{ConceptID: id}
	}
	depIDs := g.dependents[id]
	result := make([]Concept, 0, len(depIDs))
	for _, depID := range depIDs {
		result = append(result, g.byID[depID].clone())
	}
	return result, nil
}

// IsUnlocked returns true if all prerequisites of id are in the mastered set.
// Unknown ids are never unlocked.
func (g *Graph) IsUnlocked(id string, mastered map[string]bool) bool {
	c, ok := g.byID[id]
	if !ok {
		return false
	}
	for _, prereqID := range c.Prerequisites {
		if !mastered[prereqID] {
			return false
		}
	}
	return true
}

// AvailableConcepts returns every concept that is unlocked but not itself
// mastered, in topological order. Ids in mastered that are not part of the
// graph are ignored.
func (g *Graph) AvailableConcepts(mastered map[string]bool) []Concept {
	var result []Concept
	for _, c := range g.topoOrder {
		if !mastered[c.ID] && g.IsUnlocked(c.ID, mastered) {
			result = append(result, c.clone())
		}
	}
	return result
}

// TopoIndex returns the position of id in TopologicalOrder, or -1.
func (g *Graph) TopoIndex(id string) int {
	if i, ok := g.topoIndex[id]; ok {
		return i
	}
	return -1
}

func cloneAll(in []Concept) []Concept {
	out := slices.Clone(in)
	for i := range out {
		out[i] = out[i].clone()
	}
	return out
}
