package mastery

// Status is the label a progress view shows for one concept.
type Status string

const (
	StatusLocked     Status = "locked"
	StatusAvailable  Status = "available"
	StatusLearning   Status = "learning"
	StatusStruggling Status = "struggling"
	StatusMastered   Status = "mastered"
)

// ResolveStatus maps a learner's standing on a concept to its display
// status. Attempted concepts report learning progress even when a
// curriculum change has since locked them.
func ResolveStatus(st State, mastered, available bool, p Params) Status {
	switch {
	case mastered:
		return StatusMastered
	case st.Attempts > 0 && st.IsFrustrated(p):
		return StatusStruggling
	case st.Attempts > 0:
		return StatusLearning
	case available:
		return StatusAvailable
	default:
		return StatusLocked
	}
}
