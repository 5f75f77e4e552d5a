package engine

import (
	"math"
	"sort"

	"github.com/preplens/preplens-api/models"
)

// seededShuffle permutes questions deterministically from a string
// seed. Each position is ranked by a sine of the seed, which gives a
// reproducible pseudo-random order without any platform random source;
// the same seed always yields the same permutation.
func seededShuffle(questions []models.Question, seedValue string) []models.Question {
	if seedValue == "" {
		seedValue = "seed"
	}
	seed := 0
	for _, c := range seedValue {
		seed += int(c)
	}

	type rankedQuestion struct {
		question models.Question
		rank     float64
	}
	ranked := make([]rankedQuestion, len(questions))
	for i, q := range questions {
		ranked[i] = rankedQuestion{question: q, rank: math.Sin(float64(seed) + float64(i)*13.37)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].rank < ranked[j].rank })

	out := make([]models.Question, len(ranked))
	for i, r := range ranked {
		out[i] = r.question
	}
	return out
}
