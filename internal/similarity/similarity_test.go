package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaccard_Similarity(t *testing.T) {
	scorer := Jaccard{}

	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{
			name:     "Both empty",
			a:        "",
			b:        "",
			expected: 0,
		},
		{
			name:     "One empty",
			a:        "book a call",
			b:        "",
			expected: 0,
		},
		{
			name:     "Identical",
			a:        "Add client testimonials",
			b:        "Add client testimonials",
			expected: 1,
		},
		{
			name:     "Case and spacing are ignored",
			a:        "Shorten   your BIO",
			b:        "shorten your bio",
			expected: 1,
		},
		{
			name:     "Partial overlap",
			a:        "Improve your bio",
			b:        "Improve your Bio text",
			expected: 0.75,
		},
		{
			name:     "No overlap",
			a:        "headline copy",
			b:        "testimonial order",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, scorer.Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestJaccard_StrictlyBetweenForSuperset(t *testing.T) {
	score := Jaccard{}.Similarity("book a call", "book a call now")
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestJaccard_Symmetric(t *testing.T) {
	scorer := Jaccard{}
	a := "Move testimonials above services"
	b := "Show testimonials first"
	assert.Equal(t, scorer.Similarity(a, b), scorer.Similarity(b, a))
}
