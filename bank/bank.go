// Package bank holds the static question bank. The bank is an immutable
// reference dataset: questions are loaded once from the embedded file
// and never written back.
package bank

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/preplens/preplens-api/models"
)

//go:embed questions.json
var rawBank []byte

// Categories lists the fixed category set in the order tests default to.
var Categories = []string{"aptitude", "technical", "reasoning", "verbal"}

type Bank struct {
	questions []models.Question
	byID      map[string]models.Question
}

// Load parses the embedded bank. Fails only if the embedded data is
// malformed, which is a build defect rather than a runtime condition.
func Load() (*Bank, error) {
	var questions []models.Question
	if err := json.Unmarshal(rawBank, &questions); err != nil {
		return nil, fmt.Errorf("parsing embedded question bank: %w", err)
	}

	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return nil, fmt.Errorf("question %s: correct answer index %d out of range", q.QuestionID, q.CorrectAnswer)
		}
		byID[q.QuestionID] = q
	}

	return &Bank{questions: questions, byID: byID}, nil
}

// All returns every question in the bank.
func (b *Bank) All() []models.Question {
	out := make([]models.Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// ByCategory returns the subset of the bank tagged with category.
func (b *Bank) ByCategory(category string) []models.Question {
	var out []models.Question
	for _, q := range b.questions {
		if q.Category == category {
			out = append(out, q)
		}
	}
	return out
}

// Resolve maps question ids to full questions, silently dropping ids the
// bank does not know. Order follows the input ids.
func (b *Bank) Resolve(ids []string) []models.Question {
	out := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := b.byID[id]; ok {
			out = append(out, q)
		}
	}
	return out
}

// Size returns the total question count.
func (b *Bank) Size() int {
	return len(b.questions)
}
