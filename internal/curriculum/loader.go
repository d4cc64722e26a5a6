// Package curriculum loads concept definitions and holds the active graph.
package curriculum

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/masteryforge/internal/conceptgraph"
)

// DefaultDifficulty is used for concept records that omit a difficulty.
const DefaultDifficulty = 1

// ErrMalformed is matched by errors for input that is not a valid curriculum
// document, as opposed to a well-formed document describing an invalid graph.
var ErrMalformed = errors.New("malformed curriculum")

// document is the on-disk shape of a curriculum file.
type document struct {
	Concepts []conceptRecord `yaml:"concepts"`
}

type conceptRecord struct {
	ID            string   `yaml:"id"`
	Title         string   `yaml:"title"`
	Description   string   `yaml:"description"`
	Difficulty    *int     `yaml:"difficulty"`
	Prerequisites []string `yaml:"prerequisites"`
}

// Parse decodes a curriculum document into concepts, in document order.
// Unknown keys and a missing top-level concepts list are rejected.
func Parse(r io.Reader) ([]conceptgraph.Concept, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Concepts == nil {
		return nil, fmt.Errorf("%w: document must contain a 'concepts' key", ErrMalformed)
	}

	concepts := make([]conceptgraph.Concept, 0, len(doc.Concepts))
	for i, rec := range doc.Concepts {
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: concept #%d has no id", ErrMalformed, i+1)
		}
		c := conceptgraph.Concept{
			ID:            rec.ID,
			Title:         rec.Title,
			Description:   rec.Description,
			Difficulty:    DefaultDifficulty,
			Prerequisites: rec.Prerequisites,
		}
		if c.Title == "" {
			c.Title = rec.ID
		}
		if rec.Difficulty != nil {
			c.Difficulty = *rec.Difficulty
		}
		concepts = append(concepts, c)
	}
	return concepts, nil
}

// Build parses a curriculum document and validates it into a graph.
func Build(r io.Reader) (*conceptgraph.Graph, error) {
	concepts, err := Parse(r)
	if err != nil {
		return nil, err
	}
	g, err := conceptgraph.Build(concepts)
	if err != nil {
		return nil, fmt.Errorf("build concept graph: %w", err)
	}
	return g, nil
}

// LoadFile reads and builds the curriculum at path.
func LoadFile(path string) (*conceptgraph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curriculum %s: %w", path, err)
	}
	g, err := Build(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load curriculum %s: %w", path, err)
	}
	return g, nil
}
