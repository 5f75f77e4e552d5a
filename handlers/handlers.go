// Package handlers is the thin JSON surface over the engine. It does
// no authentication of its own: caller identity arrives as an opaque
// id supplied by the authentication collaborator upstream.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/preplens/preplens-api/activity"
	"github.com/preplens/preplens-api/engine"
	"github.com/preplens/preplens-api/mock"
	"github.com/preplens/preplens-api/models"
	"github.com/preplens/preplens-api/notify"
	"github.com/preplens/preplens-api/tasks"
	"github.com/preplens/preplens-api/utils"
)

type API struct {
	engine        *engine.Engine
	activities    *activity.Service
	mocks         *mock.Service
	notifications *notify.Service
	tasks         *tasks.Service
}

func NewRouter(e *engine.Engine, activities *activity.Service, mocks *mock.Service, notifications *notify.Service, taskService *tasks.Service) http.Handler {
	api := &API{
		engine:        e,
		activities:    activities,
		mocks:         mocks,
		notifications: notifications,
		tasks:         taskService,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", api.healthCheck)

	// Test routes
	mux.HandleFunc("/tests", api.handleTests)
	mux.HandleFunc("/tests/stream", api.streamTests)
	mux.HandleFunc("/tests/", api.handleTestSubroutes)

	// Result and report routes
	mux.HandleFunc("/results", api.getResults)
	mux.HandleFunc("/reports", api.getReports)
	mux.HandleFunc("/readiness", api.getReadiness)

	// Auxiliary signal routes
	mux.HandleFunc("/activities", api.handleActivities)
	mux.HandleFunc("/mock-interviews", api.handleMockInterviews)
	mux.HandleFunc("/notifications", api.getNotifications)
	mux.HandleFunc("/tasks", api.handleTasks)

	return corsMiddleware(mux)
}

// CORS middleware to allow web requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (api *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

func (api *API) handleTests(w http.ResponseWriter, r *http.Request) {
	utils.LogHTTP("%s /tests", r.Method)
	switch r.Method {
	case http.MethodGet:
		api.getTests(w, r)
	case http.MethodPost:
		api.createTest(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (api *API) getTests(w http.ResponseWriter, r *http.Request) {
	student := r.URL.Query().Get("student")
	if student == "" {
		http.Error(w, "Missing student parameter", http.StatusBadRequest)
		return
	}
	tests, err := api.engine.ListTestsForStudent(r.Context(), student)
	if err != nil {
		utils.LogError("Listing tests for %s failed: %v", student, err)
		http.Error(w, "Failed to fetch tests", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tests": tests})
}

func (api *API) createTest(w http.ResponseWriter, r *http.Request) {
	var req engine.CreateTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	test, err := api.engine.CreateTest(r.Context(), req)
	if err != nil {
		if errors.Is(err, engine.ErrTitleRequired) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.LogError("Creating test failed: %v", err)
		http.Error(w, "Failed to create test", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, test)
}

// handleTestSubroutes covers /tests/{id}/questions and
// /tests/{id}/submit.
func (api *API) handleTestSubroutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/tests/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	testID, action := parts[0], parts[1]
	utils.LogHTTP("%s /tests/%s/%s", r.Method, testID, action)

	switch action {
	case "questions":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		api.getOrderedQuestions(w, r, testID)
	case "submit":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		api.submitAttempt(w, r, testID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// presentedQuestion is a bank question with the correct answer
// stripped, safe to hand to a student mid-test.
type presentedQuestion struct {
	QuestionID string   `json:"questionId"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
}

func (api *API) getOrderedQuestions(w http.ResponseWriter, r *http.Request, testID string) {
	student := r.URL.Query().Get("student")
	if student == "" {
		http.Error(w, "Missing student parameter", http.StatusBadRequest)
		return
	}
	test, err := api.engine.GetTest(r.Context(), testID)
	if err != nil {
		if errors.Is(err, engine.ErrTestNotFound) {
			http.Error(w, "Test not found", http.StatusNotFound)
			return
		}
		utils.LogError("Fetching test %s failed: %v", testID, err)
		http.Error(w, "Failed to fetch test", http.StatusInternalServerError)
		return
	}

	ordered := api.engine.OrderQuestionsFor(test, student)
	presented := make([]presentedQuestion, len(ordered))
	for i, q := range ordered {
		presented[i] = presentedQuestion{
			QuestionID: q.QuestionID,
			Category:   q.Category,
			Difficulty: q.Difficulty,
			Question:   q.Question,
			Options:    q.Options,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": presented})
}

type submitRequest struct {
	UID       string `json:"uid"`
	Answers   []int  `json:"answers"`
	TimeTaken int    `json:"timeTaken"`
}

func (api *API) submitAttempt(w http.ResponseWriter, r *http.Request, testID string) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	test, err := api.engine.GetTest(r.Context(), testID)
	if err != nil {
		if errors.Is(err, engine.ErrTestNotFound) {
			http.Error(w, "Test not found", http.StatusNotFound)
			return
		}
		utils.LogError("Fetching test %s failed: %v", testID, err)
		http.Error(w, "Failed to fetch test", http.StatusInternalServerError)
		return
	}

	// Auxiliary signals are best-effort inputs; a failed read just
	// means the report is computed without them.
	studyHours, err := api.activities.CategoryHours(r.Context(), req.UID)
	if err != nil {
		utils.LogError("Reading study hours for %s failed: %v", req.UID, err)
	}
	mockAverage, err := api.mocks.AverageScore(r.Context(), req.UID)
	if err != nil {
		utils.LogError("Reading mock interview average for %s failed: %v", req.UID, err)
	}

	outcome, err := api.engine.SubmitAttempt(r.Context(), engine.SubmitRequest{
		UID:                  req.UID,
		Test:                 test,
		Answers:              req.Answers,
		TimeTaken:            req.TimeTaken,
		StudyHoursByCategory: studyHours,
		MockInterviewAverage: mockAverage,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidSubmission):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, engine.ErrAlreadySubmitted):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			utils.LogError("Submitting test %s for %s failed: %v", testID, req.UID, err)
			http.Error(w, "Failed to submit test", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (api *API) getResults(w http.ResponseWriter, r *http.Request) {
	utils.LogHTTP("%s /results", r.Method)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	results, err := api.engine.ListResults(r.Context())
	if err != nil {
		utils.LogError("Listing results failed: %v", err)
		http.Error(w, "Failed to fetch results", http.StatusInternalServerError)
		return
	}
	if uid := r.URL.Query().Get("uid"); uid != "" {
		filtered := results[:0]
		for _, res := range results {
			if res.UID == uid {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (api *API) getReports(w http.ResponseWriter, r *http.Request) {
	utils.LogHTTP("%s /reports", r.Method)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid := r.URL.Query().Get("uid")

	// One-shot read through the subscription contract: take the initial
	// snapshot and unsubscribe.
	var reports []models.Report
	var subErr error
	var unsub func()
	var err error
	collect := func(items []models.Report) { reports = items }
	fail := func(e error) { subErr = e }
	if uid != "" {
		unsub, err = api.engine.SubscribeReportsByUser(uid, collect, fail)
	} else {
		unsub, err = api.engine.SubscribeReportsForAdmin(collect, fail)
	}
	if err != nil || subErr != nil {
		if err == nil {
			err = subErr
		}
		utils.LogError("Listing reports failed: %v", err)
		http.Error(w, "Failed to fetch reports", http.StatusInternalServerError)
		return
	}
	unsub()
	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

func (api *API) handleActivities(w http.ResponseWriter, r *http.Request) {
	utils.LogHTTP("%s /activities", r.Method)
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var entry activity.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	logged, err := api.activities.Log(r.Context(), entry)
	if err != nil {
		if errors.Is(err, activity.ErrInvalidHours) || errors.Is(err, activity.ErrUserRequired) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.LogError("Logging activity failed: %v", err)
		http.Error(w, "Failed to log activity", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, logged)
}

func (api *API) handleMockInterviews(w http.ResponseWriter, r *http.Request) {
	utils.LogHTTP("%s /mock-interviews", r.Method)
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var entry mock.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	logged, err := api.mocks.Log(r.Context(), entry)
	if err != nil {
		if errors.Is(err, mock.ErrUserRequired) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.LogError("Logging mock interview failed: %v", err)
		http.Error(w, "Failed to log mock interview", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, logged)
}

func (api *API) getNotifications(w http.ResponseWriter, r *http.Request) {
	utils.LogHTTP("%s /notifications", r.Method)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		http.Error(w, "Missing uid parameter", http.StatusBadRequest)
		return
	}
	items, err := api.notifications.List(r.Context(), uid)
	if err != nil {
		utils.LogError("Listing notifications for %s failed: %v", uid, err)
		http.Error(w, "Failed to fetch notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": items})
}

func (api *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	utils.LogHTTP("%s /tasks", r.Method)
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		UserID string `json:"userId"`
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	id, err := api.tasks.Create(r.Context(), req.UserID, req.Title, req.Status)
	if err != nil {
		if errors.Is(err, tasks.ErrStudentRequired) || errors.Is(err, tasks.ErrTitleRequired) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.LogError("Creating task failed: %v", err)
		http.Error(w, "Failed to create task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
