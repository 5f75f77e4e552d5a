package models

// BroadcastScope is the reserved recipient marker meaning "every student".
const BroadcastScope = "__all_students__"

// Collection names shared by both storage backends.
const (
	CollectionTests          = "tests"
	CollectionResults        = "testResults"
	CollectionReports        = "aiReports"
	CollectionNotifications  = "notifications"
	CollectionTasks          = "tasks"
	CollectionActivities     = "activities"
	CollectionMockInterviews = "mockInterviews"
)

// Question is a bank entry. The bank is read-only; questions are never
// created or mutated at runtime.
type Question struct {
	QuestionID    string   `json:"questionId"`
	Category      string   `json:"category"`
	Difficulty    string   `json:"difficulty"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Test is an assessment definition. Immutable after creation.
type Test struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	CreatedBy   string   `json:"createdBy"`
	Categories  []string `json:"categories"`
	AssignedTo  []string `json:"assignedTo"`
	Deadline    int64    `json:"deadline,omitempty"` // unix millis, 0 = no deadline
	Difficulty  string   `json:"difficulty"`
	QuestionIDs []string `json:"questionIds"`
	CreatedAt   int64    `json:"createdAt"` // unix millis
}

// Answer records one graded position of an attempt.
type Answer struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer int    `json:"selectedAnswer"` // -1 = unanswered
	CorrectAnswer  int    `json:"correctAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
	Category       string `json:"category"`
}

// TestResult is the graded record of one attempt. Immutable.
type TestResult struct {
	ID                string         `json:"id"`
	UID               string         `json:"uid"`
	TestID            string         `json:"testId"`
	Answers           []Answer       `json:"answers"`
	Score             int            `json:"score"`
	CategoryWiseScore map[string]int `json:"categoryWiseScore"`
	TimeTaken         int            `json:"timeTaken"` // seconds
	SubmittedAt       int64          `json:"submittedAt"`
}

// CategoryAnalysis is one row of a report's per-category breakdown.
type CategoryAnalysis struct {
	Category       string `json:"category"`
	Label          string `json:"label"`
	Score          int    `json:"score"`
	Level          string `json:"level"`
	GapTo80        int    `json:"gapTo80"`
	Recommendation string `json:"recommendation"`
}

// Report is the generated improvement report for one attempt. A re-grade
// yields a new Report, never a patch of an old one.
type Report struct {
	ID               string             `json:"id"`
	UID              string             `json:"uid"`
	TestID           string             `json:"testId"`
	Strengths        []string           `json:"strengths"`
	Weaknesses       []string           `json:"weaknesses"`
	ImprovementPlan  []string           `json:"improvementPlan"`
	DetailedAnalysis []CategoryAnalysis `json:"detailedAnalysis"`
	LackingAreas     []string           `json:"lackingAreas"`
	Summary          string             `json:"summary"`
	WeakestCategory  string             `json:"weakestCategory"`
	GeneratedAt      int64              `json:"generatedAt"`
}

// Notification as written by the notification collaborator.
type Notification struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Read      bool   `json:"read"`
	CreatedAt int64  `json:"createdAt"`
}

// Task as written by the task collaborator. Auto-generated tasks carry
// an "[AI] " title prefix.
type Task struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	CreatedBy string `json:"createdBy"`
	CreatedAt int64  `json:"createdAt"`
}

// Activity is one logged study session.
type Activity struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	Day       string  `json:"day"` // short weekday name
	Topic     string  `json:"topic"`
	Category  string  `json:"category"`
	Hours     float64 `json:"hours"`
	CreatedAt int64   `json:"createdAt"`
}

// MockInterview is one logged mock interview session.
type MockInterview struct {
	ID            string   `json:"id"`
	UID           string   `json:"uid"`
	InterviewDate int64    `json:"interviewDate"`
	FeedbackScore int      `json:"feedbackScore"` // 0-100
	WeakAreas     []string `json:"weakAreas"`
	Notes         string   `json:"notes"`
	CreatedAt     int64    `json:"createdAt"`
}
