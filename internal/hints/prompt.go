package hints

import (
	"fmt"
	"strings"
)

const hintSystemPrompt = `You are a supportive tutor. Keep hints short and encouraging, and never reveal a complete solution.`

func buildHintUserMessage(conceptID string, lc LearnerContext) string {
	var b strings.Builder

	title := lc.Concept.Title
	if title == "" {
		title = conceptID
	}
	fmt.Fprintf(&b, "Concept: %s (%s)\n", title, conceptID)
	if lc.Concept.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", lc.Concept.Description)
	}
	fmt.Fprintf(&b, "Difficulty: %d\n", lc.Concept.Difficulty)
	fmt.Fprintf(&b, "Learner mastery score: %.2f\n", lc.MasteryScore)
	fmt.Fprintf(&b, "Learner frustration score: %.2f\n", lc.FrustrationScore)
	fmt.Fprintf(&b, "Attempts so far: %d\n", lc.Attempts)

	if len(lc.RecentResults) > 0 {
		marks := make([]string, len(lc.RecentResults))
		for i, ok := range lc.RecentResults {
			marks[i] = "wrong"
			if ok {
				marks[i] = "right"
			}
		}
		fmt.Fprintf(&b, "Recent answers (newest first): %s\n", strings.Join(marks, ", "))
	}

	b.WriteString(`
Instructions:
Write one hint for this concept.
- If frustration is high, suggest stepping back to the basics and reassure the learner.
- If mastery is low, point at the first small step.
- Otherwise suggest a different angle on the problem.
Use plain text only.`)

	return b.String()
}
