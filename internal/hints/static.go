package hints

import (
	"context"
	"fmt"
)

// Thresholds used by Static to pick a hint style.
const (
	stepBackFrustration = 0.7
	foundationMastery   = 0.3
)

// Static builds hints from fixed templates, choosing the template from
// the learner's frustration and mastery. It never fails and serves as the
// fallback when an LLM provider errors out.
type Static struct{}

func (Static) GenerateHint(_ context.Context, conceptID string, lc LearnerContext) (string, error) {
	name := lc.Concept.Title
	if name == "" {
		name = conceptID
	}

	var hint string
	switch {
	case lc.FrustrationScore > stepBackFrustration:
		hint = fmt.Sprintf("Let's take a step back and review the basics of %s. You're doing great, this is challenging material!", name)
	case lc.MasteryScore < foundationMastery:
		hint = fmt.Sprintf("For %s, start with the foundational ideas. Break the problem into smaller steps.", name)
	default:
		hint = fmt.Sprintf("You're making good progress on %s! Try approaching it from a different angle.", name)
	}
	if lc.Concept.Description != "" {
		hint += " Remember: " + lc.Concept.Description
	}
	return hint, nil
}
