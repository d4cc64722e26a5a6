package session

import "time"

// Summary is the report shown for a session.
type Summary struct {
	ID             string
	Open           bool
	StartTime      time.Time
	Duration       time.Duration
	TotalQuestions int
	TotalCorrect   int
	Accuracy       float64
	AverageScore   float64
	Concepts       []string
}

// BuildSummary reports on s. An open session's duration runs to now.
func BuildSummary(s Session, now time.Time) Summary {
	end := s.EndTime
	if s.IsOpen() {
		end = now
	}

	var accuracy float64
	if s.TotalQuestions > 0 {
		accuracy = float64(s.TotalCorrect) / float64(s.TotalQuestions)
	}

	return Summary{
		ID:             s.ID,
		Open:           s.IsOpen(),
		StartTime:      s.StartTime,
		Duration:       end.Sub(s.StartTime),
		TotalQuestions: s.TotalQuestions,
		TotalCorrect:   s.TotalCorrect,
		Accuracy:       accuracy,
		AverageScore:   s.AverageScore,
		Concepts:       append([]string(nil), s.ConceptsCovered...),
	}
}
