package conceptgraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is matched by every error Build returns for a bad concept set.
	ErrValidation = errors.New("concept graph validation failed")

	// ErrNotFound is matched by lookups of ids absent from the graph.
	ErrNotFound = errors.New("concept not found")
)

// UnknownPrerequisiteError reports a prerequisite id that names no concept.
type UnknownPrerequisiteError struct {
	ConceptID string
	MissingID string
}

func (e *UnknownPrerequisiteError) Error() string {
	return fmt.Sprintf("concept %q references nonexistent prerequisite %q", e.ConceptID, e.MissingID)
}

func (e *UnknownPrerequisiteError) Unwrap() error { return ErrValidation }

// CyclicPrerequisiteError reports a cycle in the prerequisite relation.
// Cycle lists the ids along the cycle, starting and ending with the same id.
type CyclicPrerequisiteError struct {
	Cycle []string
}

func (e *CyclicPrerequisiteError) Error() string {
	return fmt.Sprintf("prerequisite cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CyclicPrerequisiteError) Unwrap() error { return ErrValidation }

// DuplicateConceptError reports two concepts sharing an id.
type DuplicateConceptError struct {
	ConceptID string
}

func (e *DuplicateConceptError) Error() string {
	return fmt.Sprintf("duplicate concept ID: %q", e.ConceptID)
}

func (e *DuplicateConceptError) Unwrap() error { return ErrValidation }

// InvalidConceptError reports a concept whose own fields are malformed.
type InvalidConceptError struct {
	ConceptID string
	Reason    string
}

func (e *InvalidConceptError) Error() string {
	return fmt.Sprintf("concept %q is invalid: %s", e.ConceptID, e.Reason)
}

func (e *InvalidConceptError) Unwrap() error { return ErrValidation }

// NotFoundError is returned when querying an id the graph does not contain.
type NotFoundError struct {
	ConceptID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("concept not found: %q", e.ConceptID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
