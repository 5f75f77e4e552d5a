package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preplens/preplens-api/models"
)

func numberedQuestions(n int) []models.Question {
	questions := make([]models.Question, n)
	for i := range questions {
		questions[i] = models.Question{
			QuestionID:    fmt.Sprintf("QB-%03d", i+1),
			Category:      "aptitude",
			Question:      fmt.Sprintf("question %d", i+1),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: 0,
		}
	}
	return questions
}

func questionIDs(questions []models.Question) []string {
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.QuestionID
	}
	return ids
}

func TestSeededShuffleIsDeterministic(t *testing.T) {
	questions := numberedQuestions(20)

	first := seededShuffle(questions, "student-1-test-abc")
	second := seededShuffle(questions, "student-1-test-abc")

	assert.Equal(t, questionIDs(first), questionIDs(second))
}

func TestSeededShufflePreservesTheSet(t *testing.T) {
	questions := numberedQuestions(20)
	shuffled := seededShuffle(questions, "student-2-test-abc")

	require.Len(t, shuffled, len(questions))
	seen := make(map[string]bool)
	for _, q := range shuffled {
		assert.False(t, seen[q.QuestionID])
		seen[q.QuestionID] = true
	}
}

func TestSeededShuffleVariesAcrossStudents(t *testing.T) {
	questions := numberedQuestions(20)

	a := seededShuffle(questions, "alice-test-abc")
	b := seededShuffle(questions, "bob-test-abc")

	differing := 0
	for i := range a {
		if a[i].QuestionID != b[i].QuestionID {
			differing++
		}
	}
	assert.GreaterOrEqual(t, differing, 8, "distinct students should see substantially different orders")
}

func TestSeededShuffleEmptySeedFallsBack(t *testing.T) {
	questions := numberedQuestions(5)

	withFallback := seededShuffle(questions, "")
	explicit := seededShuffle(questions, "seed")

	assert.Equal(t, questionIDs(explicit), questionIDs(withFallback))
}

func TestSeededShuffleEmptyInput(t *testing.T) {
	assert.Empty(t, seededShuffle(nil, "alice-test"))
}
