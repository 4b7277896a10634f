package textnorm_test

import (
	"testing"

	"github.com/ilora-retreats/concierge/pkg/utils/textnorm"
	"github.com/m-mizutani/gt"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "lower-cases and strips punctuation",
			input:    "What's the Check-In time?",
			expected: "what s the check in time",
		},
		{
			name:     "collapses whitespace runs",
			input:    "  extra   towels \t please  ",
			expected: "extra towels please",
		},
		{
			name:     "keeps digits",
			input:    "Room #12, AC broken!!",
			expected: "room 12 ac broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.V(t, textnorm.Normalize(tt.input)).Equal(tt.expected)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"What time is check-in?",
		"  THE  ac -- is NOT working!! ",
		"café au lait ☕",
		"order 2 coffee x3",
	}

	for _, input := range inputs {
		once := textnorm.Normalize(input)
		gt.V(t, textnorm.Normalize(once)).Equal(once)
	}
}

func TestScoreBounds(t *testing.T) {
	pairs := [][2]string{
		{"", ""},
		{"check in time", ""},
		{"", "check in"},
		{"q what time is check in a check in is after 2 pm", "what time is check in"},
		{"completely different words here", "zebra quantum"},
		{"same text", "same text"},
	}

	for _, p := range pairs {
		score := textnorm.Score(p[0], p[1])
		gt.True(t, score >= 0.0)
		gt.True(t, score <= 1.0)
	}
}

func TestScoreEmptyInputs(t *testing.T) {
	gt.V(t, textnorm.Score("doc text", "")).Equal(0.0)
	gt.V(t, textnorm.Score("", "query")).Equal(0.0)
}

func TestScoreExactWeights(t *testing.T) {
	// doc "a b", query "a": overlap = 1/min(2,1) = 1.0 -> 0.6
	// LCS("a b", "a") = 1 -> seq = 2/(3+1) = 0.5 -> 0.15
	// token "a" appears in doc -> boost 0.15
	score := textnorm.Score("a b", "a")
	gt.V(t, score).Equal(0.9)
}

func TestScoreIdenticalCapped(t *testing.T) {
	// Identical strings: overlap 1.0, seq 1.0, boost 0.15 -> capped at 1.0.
	gt.V(t, textnorm.Score("spa opening hours", "spa opening hours")).Equal(1.0)
}

func TestScoreMonotonicity(t *testing.T) {
	// Appending a token shared by both sides must never decrease the score.
	docs := []string{
		"q what time is check in a after 2 pm",
		"breakfast buffet opens at 7",
		"spa hours",
	}
	queries := []string{
		"check in time",
		"breakfast",
		"when does the spa open",
	}

	for _, doc := range docs {
		for _, query := range queries {
			base := textnorm.Score(doc, query)
			extended := textnorm.Score(doc+" shared", query+" shared")
			gt.True(t, extended >= base)
		}
	}
}
