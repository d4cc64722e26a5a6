package mastery

import "github.com/abhisek/masteryforge/internal/conceptgraph"

// ConceptProgress is the dashboard view of one concept for one learner.
type ConceptProgress struct {
	ConceptID        string
	MasteryScore     float64
	FrustrationScore float64
	Attempts         int
	Mastered         bool
	Available        bool
	Status           Status
}

// ProgressSummary combines graph availability with the learner's states for
// every concept in the graph. Concepts never attempted report zero scores.
// States for ids absent from the graph are ignored.
func (e *Engine) ProgressSummary(g *conceptgraph.Graph, states map[string]State) map[string]ConceptProgress {
	mastered := e.Mastered(states)

	available := make(map[string]bool)
	for _, c := range g.AvailableConcepts(mastered) {
		available[c.ID] = true
	}

	summary := make(map[string]ConceptProgress, g.Len())
	for _, c := range g.Concepts() {
		st := states[c.ID]
		summary[c.ID] = ConceptProgress{
			ConceptID:        c.ID,
			MasteryScore:     st.MasteryScore,
			FrustrationScore: st.FrustrationScore,
			Attempts:         st.Attempts,
			Mastered:         mastered[c.ID],
			Available:        available[c.ID],
			Status:           ResolveStatus(st, mastered[c.ID], available[c.ID], e.params),
		}
	}
	return summary
}
