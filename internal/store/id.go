package store

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// newAttemptID returns a lexicographically sortable attempt id.
func newAttemptID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

// withAttemptDefaults fills in the ID and timestamp of a new attempt.
func withAttemptDefaults(a Attempt) Attempt {
	if a.RecordedAt.IsZero() {
		a.RecordedAt = time.Now().UTC()
	}
	if a.ID == "" {
		a.ID = newAttemptID(a.RecordedAt)
	}
	return a
}
