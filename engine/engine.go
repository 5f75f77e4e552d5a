// Package engine is the assessment pipeline: deterministic test
// creation, per-student question ordering, grading, report synthesis
// and follow-up dispatch, all over the backend-neutral store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/preplens/preplens-api/bank"
	"github.com/preplens/preplens-api/insight"
	"github.com/preplens/preplens-api/models"
	"github.com/preplens/preplens-api/store"
	"github.com/preplens/preplens-api/utils"
)

var (
	ErrTitleRequired     = errors.New("test title is required")
	ErrInvalidSubmission = errors.New("invalid test submission request")
	ErrAlreadySubmitted  = errors.New("this test was already submitted by this student")
	ErrTestNotFound      = errors.New("test not found")
)

// Notifier is the notification collaborator. Delivery is best-effort;
// the engine logs and absorbs its failures after grading.
type Notifier interface {
	Push(ctx context.Context, userID, title, message, msgType string) error
}

// TaskCreator is the task collaborator.
type TaskCreator interface {
	Create(ctx context.Context, userID, title, status string) (string, error)
}

type Engine struct {
	store         store.Store
	bank          *bank.Bank
	notifier      Notifier
	tasks         TaskCreator
	questionCount int
}

func New(s store.Store, b *bank.Bank, notifier Notifier, tasks TaskCreator) *Engine {
	return &Engine{
		store:         s,
		bank:          b,
		notifier:      notifier,
		tasks:         tasks,
		questionCount: DefaultQuestionCount,
	}
}

// CreateTestRequest describes a new assessment. Empty Categories means
// the full fixed set; empty AssignedTo means broadcast to all students.
type CreateTestRequest struct {
	Title      string   `json:"title"`
	CreatedBy  string   `json:"createdBy"`
	Categories []string `json:"categories"`
	AssignedTo []string `json:"assignedTo"`
	Deadline   int64    `json:"deadline"`
	Difficulty string   `json:"difficulty"`
}

// CreateTest validates the request, samples the question set and
// persists the test, then announces it to every explicit recipient.
// Broadcast tests do not fan out individual notifications.
func (e *Engine) CreateTest(ctx context.Context, req CreateTestRequest) (models.Test, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return models.Test{}, ErrTitleRequired
	}

	categories := req.Categories
	if len(categories) == 0 {
		categories = bank.Categories
	}
	assignedTo := req.AssignedTo
	if len(assignedTo) == 0 {
		assignedTo = []string{models.BroadcastScope}
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = "admin"
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = "medium"
	}

	chosen := pickQuestions(e.bank, categories, e.questionCount)
	questionIDs := make([]string, len(chosen))
	for i, q := range chosen {
		questionIDs[i] = q.QuestionID
	}

	test := models.Test{
		Title:       title,
		CreatedBy:   createdBy,
		Categories:  categories,
		AssignedTo:  assignedTo,
		Deadline:    req.Deadline,
		Difficulty:  difficulty,
		QuestionIDs: questionIDs,
		CreatedAt:   nowMillis(),
	}

	id, err := e.store.Create(ctx, models.CollectionTests, test)
	if err != nil {
		return models.Test{}, fmt.Errorf("persisting test: %w", err)
	}
	test.ID = id
	utils.LogEngine("Created test %s (%d questions, recipients: %d)", id, len(questionIDs), len(assignedTo))

	if !contains(assignedTo, models.BroadcastScope) {
		for _, studentID := range assignedTo {
			err := e.notifier.Push(ctx, studentID, "New test assigned", fmt.Sprintf("%s has been assigned.", title), "info")
			if err != nil {
				utils.LogError("Notifying %s about test %s failed: %v", studentID, id, err)
			}
		}
	}
	return test, nil
}

// OrderQuestionsFor resolves a test's questions and applies the
// per-student seeded shuffle. Pure: the same (student, test) pair
// always produces the same order, and nothing is persisted. Grading
// calls this too, so submitted answer positions always line up with
// the order the student saw.
func (e *Engine) OrderQuestionsFor(test models.Test, studentID string) []models.Question {
	questions := e.bank.Resolve(test.QuestionIDs)
	return seededShuffle(questions, studentID+"-"+test.ID)
}

// SubmitRequest carries one attempt. Answers are selected option
// indexes aligned with the student's question order; -1 or a missing
// trailing entry means unanswered.
type SubmitRequest struct {
	UID                  string
	Test                 models.Test
	Answers              []int
	TimeTaken            int
	StudyHoursByCategory map[string]float64
	MockInterviewAverage float64
}

// SubmitOutcome is what a successful submission always yields, even
// when a follow-up side effect failed.
type SubmitOutcome struct {
	ResultID          string          `json:"resultId"`
	Score             int             `json:"score"`
	CategoryWiseScore map[string]int  `json:"categoryWiseScore"`
	Report            models.Report   `json:"report"`
	Answers           []models.Answer `json:"answers"`
}

// SubmitAttempt grades the attempt against the re-derived question
// order, persists the result and its report, and dispatches follow-up
// tasks and a notification. Grading never fails on malformed answers;
// they count as incorrect. Failed side effects are logged and absorbed
// because the graded result is already recorded.
func (e *Engine) SubmitAttempt(ctx context.Context, req SubmitRequest) (*SubmitOutcome, error) {
	if req.UID == "" || req.Test.ID == "" {
		return nil, ErrInvalidSubmission
	}
	if err := e.checkNotSubmitted(ctx, req.UID, req.Test.ID); err != nil {
		return nil, err
	}

	questions := e.OrderQuestionsFor(req.Test, req.UID)
	byCategory := make(map[string]*categoryTally)
	correct := 0

	answers := make([]models.Answer, 0, len(questions))
	for i, q := range questions {
		selected := -1
		if i < len(req.Answers) {
			selected = req.Answers[i]
		}
		isCorrect := selected >= 0 && selected == q.CorrectAnswer
		if isCorrect {
			correct++
		}

		tally := byCategory[q.Category]
		if tally == nil {
			tally = &categoryTally{}
			byCategory[q.Category] = tally
		}
		tally.total++
		if isCorrect {
			tally.correct++
		}

		answers = append(answers, models.Answer{
			QuestionID:     q.QuestionID,
			SelectedAnswer: selected,
			CorrectAnswer:  q.CorrectAnswer,
			IsCorrect:      isCorrect,
			Category:       q.Category,
		})
	}

	total := len(questions)
	if total == 0 {
		total = e.questionCount
	}
	score := percent(correct, total)
	categoryWiseScore := make(map[string]int, len(byCategory))
	for category, tally := range byCategory {
		categoryWiseScore[category] = percent(tally.correct, tally.total)
	}

	result := models.TestResult{
		UID:               req.UID,
		TestID:            req.Test.ID,
		Answers:           answers,
		Score:             score,
		CategoryWiseScore: categoryWiseScore,
		TimeTaken:         req.TimeTaken,
		SubmittedAt:       nowMillis(),
	}
	resultID, err := e.store.Create(ctx, models.CollectionResults, result)
	if err != nil {
		return nil, fmt.Errorf("persisting result: %w", err)
	}
	utils.LogEngine("Graded test %s for %s: score=%d (%d/%d)", req.Test.ID, req.UID, score, correct, total)

	report := insight.BuildReport(insight.ReportInput{
		UID:                  req.UID,
		TestID:               req.Test.ID,
		CategoryWiseScore:    categoryWiseScore,
		StudyHoursByCategory: req.StudyHoursByCategory,
		MockInterviewAverage: req.MockInterviewAverage,
	})
	report.GeneratedAt = nowMillis()
	reportID, err := e.store.Create(ctx, models.CollectionReports, report)
	if err != nil {
		return nil, fmt.Errorf("persisting report: %w", err)
	}
	report.ID = reportID

	e.dispatchFollowUps(ctx, req.UID, report)

	return &SubmitOutcome{
		ResultID:          resultID,
		Score:             score,
		CategoryWiseScore: categoryWiseScore,
		Report:            report,
		Answers:           answers,
	}, nil
}

// dispatchFollowUps creates one task per improvement-plan item and
// pushes the analysis notification. Best-effort only: the result and
// report are already durable, so a failure here must never surface as
// a failed submission.
func (e *Engine) dispatchFollowUps(ctx context.Context, userID string, report models.Report) {
	for _, item := range report.ImprovementPlan {
		if _, err := e.tasks.Create(ctx, userID, "[AI] "+item, "pending"); err != nil {
			utils.LogError("Creating follow-up task for %s failed: %v", userID, err)
		}
	}
	err := e.notifier.Push(ctx, userID, "AI analysis ready", insight.WeakAreaMessage(report.WeakestCategory), "insight")
	if err != nil {
		utils.LogError("Pushing analysis notification to %s failed: %v", userID, err)
	}
}

func (e *Engine) checkNotSubmitted(ctx context.Context, uid, testID string) error {
	existing, err := e.store.GetAll(ctx, models.CollectionResults, store.Query{
		Conds: []store.Cond{
			{Field: "uid", Op: store.OpEqual, Value: uid},
			{Field: "testId", Op: store.OpEqual, Value: testID},
		},
	})
	if err != nil {
		return fmt.Errorf("checking prior submissions: %w", err)
	}
	if len(existing) > 0 {
		return ErrAlreadySubmitted
	}
	return nil
}

type categoryTally struct {
	correct int
	total   int
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
