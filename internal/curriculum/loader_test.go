package curriculum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/masteryforge/internal/conceptgraph"
)

const arithmeticYAML = `
concepts:
  - id: counting
    title: Counting
    description: Count objects up to 20.
    difficulty: 0
  - id: addition
    title: Addition
    difficulty: 2
    prerequisites: [counting]
  - id: subtraction
    prerequisites:
      - counting
`

func TestParse(t *testing.T) {
	concepts, err := Parse(strings.NewReader(arithmeticYAML))
	require.NoError(t, err)
	require.Len(t, concepts, 3)

	assert.Equal(t, conceptgraph.Concept{
		ID:          "counting",
		Title:       "Counting",
		Description: "Count objects up to 20.",
		Difficulty:  0,
	}, concepts[0])
	assert.Equal(t, []string{"counting"}, concepts[1].Prerequisites)
	assert.Equal(t, 2, concepts[1].Difficulty)
}

func TestParse_Defaults(t *testing.T) {
	concepts, err := Parse(strings.NewReader(arithmeticYAML))
	require.NoError(t, err)

	sub := concepts[2]
	assert.Equal(t, "subtraction", sub.Title, "title defaults to id")
	assert.Equal(t, DefaultDifficulty, sub.Difficulty)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not yaml", "concepts: [unterminated"},
		{"missing concepts key", "lessons: []"},
		{"unknown field", "concepts:\n  - id: a\n    level: 3\n"},
		{"missing id", "concepts:\n  - title: Nameless\n"},
		{"wrong type", "concepts:\n  - id: a\n    difficulty: hard\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestBuild_RejectsInvalidGraph(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target any
	}{
		{
			"cycle",
			"concepts:\n  - id: a\n    prerequisites: [b]\n  - id: b\n    prerequisites: [a]\n",
			new(*conceptgraph.CyclicPrerequisiteError),
		},
		{
			"dangling",
			"concepts:\n  - id: a\n    prerequisites: [ghost]\n",
			new(*conceptgraph.UnknownPrerequisiteError),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Build(strings.NewReader(tt.input))
			assert.Nil(t, g)
			require.Error(t, err)
			assert.ErrorIs(t, err, conceptgraph.ErrValidation)
			assert.ErrorAs(t, err, tt.target)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := writeCurriculum(t, arithmeticYAML)

	g, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())

	_, err = LoadFile(path + ".missing")
	assert.Error(t, err)
}
