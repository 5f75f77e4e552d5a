package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/preplens/preplens-api/insight"
	"github.com/preplens/preplens-api/models"
	"github.com/preplens/preplens-api/utils"
)

// streamTests pushes the merged test stream for one student over SSE.
// Every change to the tests collection re-sends the full filtered
// snapshot, mirroring what the subscription contract delivers.
func (api *API) streamTests(w http.ResponseWriter, r *http.Request) {
	utils.LogHTTP("%s /tests/stream", r.Method)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	student := r.URL.Query().Get("student")
	if student == "" {
		http.Error(w, "Missing student parameter", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates := make(chan []models.Test, 8)
	failures := make(chan error, 1)
	unsub, err := api.engine.SubscribeTestsForStudent(student,
		func(tests []models.Test) {
			select {
			case updates <- tests:
			default:
			}
		},
		func(err error) {
			select {
			case failures <- err:
			default:
			}
		},
	)
	if err != nil {
		utils.LogError("Subscribing tests for %s failed: %v", student, err)
		http.Error(w, "Failed to subscribe", http.StatusInternalServerError)
		return
	}
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-r.Context().Done():
			return
		case err := <-failures:
			utils.LogError("Test stream for %s ended: %v", student, err)
			fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
			flusher.Flush()
			return
		case tests := <-updates:
			data, err := json.Marshal(tests)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// getReadiness blends a student's stored signals into the placement
// readiness index and consistency tier.
func (api *API) getReadiness(w http.ResponseWriter, r *http.Request) {
	utils.LogHTTP("%s /readiness", r.Method)
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		http.Error(w, "Missing uid parameter", http.StatusBadRequest)
		return
	}

	results, err := api.engine.ListResults(r.Context())
	if err != nil {
		utils.LogError("Listing results for readiness of %s failed: %v", uid, err)
		http.Error(w, "Failed to compute readiness", http.StatusInternalServerError)
		return
	}

	categoryAverages := make(map[string]float64)
	categoryCounts := make(map[string]int)
	testTotal, testCount := 0, 0
	for _, res := range results {
		if res.UID != uid {
			continue
		}
		testTotal += res.Score
		testCount++
		for category, score := range res.CategoryWiseScore {
			categoryAverages[category] += float64(score)
			categoryCounts[category]++
		}
	}
	for category, count := range categoryCounts {
		categoryAverages[category] /= float64(count)
	}
	testAverage := 0.0
	if testCount > 0 {
		testAverage = float64(testTotal) / float64(testCount)
	}

	streak, err := api.activities.Streak(r.Context(), uid)
	if err != nil {
		utils.LogError("Reading streak for %s failed: %v", uid, err)
	}
	hours, err := api.activities.CategoryHours(r.Context(), uid)
	if err != nil {
		utils.LogError("Reading activity hours for %s failed: %v", uid, err)
	}
	activityCount := 0
	for _, h := range hours {
		if h > 0 {
			activityCount++
		}
	}

	softSkills := categoryAverages["softskills"]
	if softSkills == 0 {
		if avg, err := api.mocks.AverageScore(r.Context(), uid); err == nil {
			softSkills = avg
		}
	}

	readiness := insight.PredictPlacementReadiness(insight.ReadinessInputs{
		Coding:     categoryAverages["technical"],
		Aptitude:   categoryAverages["aptitude"],
		Technical:  (categoryAverages["reasoning"] + categoryAverages["verbal"]) / 2,
		SoftSkills: softSkills,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"readiness":       readiness,
		"consistencyTier": insight.ConsistencyTier(streak, activityCount, testAverage),
		"testAverage":     testAverage,
		"streakDays":      streak,
	})
}
