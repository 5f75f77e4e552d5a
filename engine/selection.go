package engine

import (
	"math/rand"

	"github.com/preplens/preplens-api/bank"
	"github.com/preplens/preplens-api/models"
)

// DefaultQuestionCount is the fixed size of every generated test, and
// the fallback grading denominator when an attempt somehow carries no
// questions.
const DefaultQuestionCount = 20

// pickQuestions draws n questions with roughly even category coverage:
// an equal quota per category, then a random top-up from the unused
// pool when small categories or rounding leave the draw short. The
// result always has at most n questions and no duplicates, and reaches
// exactly n whenever the bank holds enough.
func pickQuestions(b *bank.Bank, categories []string, n int) []models.Question {
	if len(categories) == 0 {
		categories = bank.Categories
	}
	perCategory := n / len(categories)
	if perCategory < 1 {
		perCategory = 1
	}

	seen := make(map[string]bool, n)
	picked := make([]models.Question, 0, n)
	for _, category := range categories {
		pool := b.ByCategory(category)
		rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		taken := 0
		for _, q := range pool {
			if taken == perCategory {
				break
			}
			if seen[q.QuestionID] {
				continue
			}
			seen[q.QuestionID] = true
			picked = append(picked, q)
			taken++
		}
	}

	if len(picked) < n {
		var remaining []models.Question
		for _, q := range b.All() {
			if !seen[q.QuestionID] {
				remaining = append(remaining, q)
			}
		}
		rand.Shuffle(len(remaining), func(i, j int) { remaining[i], remaining[j] = remaining[j], remaining[i] })
		for _, q := range remaining {
			if len(picked) == n {
				break
			}
			seen[q.QuestionID] = true
			picked = append(picked, q)
		}
	}

	if len(picked) > n {
		picked = picked[:n]
	}
	return picked
}
