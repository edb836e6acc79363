package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  []string
	}{
		{
			name:  "drops stop words and punctuation",
			title: "Will the Fed cut rates in March?",
			want:  []string{"fed", "cut", "rates", "march"},
		},
		{
			name:  "collapses symbol runs",
			title: "BTC >= $100,000 -- by 2026??",
			want:  []string{"btc", "100", "000", "2026"},
		},
		{
			name:  "drops single characters and duplicates",
			title: "Candidate X vs. Candidate Y",
			want:  []string{"candidate", "vs"},
		},
		{
			name:  "empty",
			title: "  ?!  ",
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.title))
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	title := "Will Elon Musk tweet 100 times on Friday?"
	assert.Equal(t, Normalize(title), Normalize(title))
}
