package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preplens/preplens-api/bank"
)

func testBank(t *testing.T) *bank.Bank {
	t.Helper()
	b, err := bank.Load()
	require.NoError(t, err)
	return b
}

func TestPickQuestionsDefaultCategories(t *testing.T) {
	b := testBank(t)

	picked := pickQuestions(b, nil, DefaultQuestionCount)

	require.Len(t, picked, DefaultQuestionCount)
	counts := make(map[string]int)
	seen := make(map[string]bool)
	for _, q := range picked {
		assert.False(t, seen[q.QuestionID], "duplicate question %s", q.QuestionID)
		seen[q.QuestionID] = true
		counts[q.Category]++
	}
	for _, category := range bank.Categories {
		assert.GreaterOrEqual(t, counts[category], 5, "category %s under quota", category)
	}
}

func TestPickQuestionsTwoCategories(t *testing.T) {
	b := testBank(t)

	picked := pickQuestions(b, []string{"aptitude", "technical"}, DefaultQuestionCount)

	require.Len(t, picked, DefaultQuestionCount)
	counts := make(map[string]int)
	for _, q := range picked {
		counts[q.Category]++
	}
	assert.Equal(t, 10, counts["aptitude"])
	assert.Equal(t, 10, counts["technical"])
}

func TestPickQuestionsTopsUpSmallCategory(t *testing.T) {
	b := testBank(t)

	// reasoning only holds 10 questions, so half the draw comes from the
	// unused pool
	picked := pickQuestions(b, []string{"reasoning"}, DefaultQuestionCount)

	require.Len(t, picked, DefaultQuestionCount)
	seen := make(map[string]bool)
	reasoning := 0
	for _, q := range picked {
		assert.False(t, seen[q.QuestionID], "duplicate question %s", q.QuestionID)
		seen[q.QuestionID] = true
		if q.Category == "reasoning" {
			reasoning++
		}
	}
	assert.Equal(t, 10, reasoning)
}

func TestPickQuestionsNeverExceedsRequested(t *testing.T) {
	b := testBank(t)

	picked := pickQuestions(b, bank.Categories, 6)
	assert.Len(t, picked, 6)
}
