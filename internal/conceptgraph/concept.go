package conceptgraph

// Concept is a single learnable unit in the curriculum.
type Concept struct {
	ID            string
	Title         string
	Description   string
	Difficulty    int
	Prerequisites []string
}

// HasPrerequisites reports whether the concept depends on any other concept.
func (c Concept) HasPrerequisites() bool {
	return len(c.Prerequisites) > 0
}

// clone returns a copy whose prerequisite slice is not shared with c.
func (c Concept) clone() Concept {
	out := c
	if c.Prerequisites != nil {
		out.Prerequisites = append([]string(nil), c.Prerequisites...)
	}
	return out
}
