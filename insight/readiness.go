package insight

import (
	"math"
	"sort"
)

// ReadinessInputs are the four 0-100 signals behind the placement
// readiness index.
type ReadinessInputs struct {
	Coding     float64
	Aptitude   float64
	Technical  float64
	SoftSkills float64
}

// Readiness is the blended index with its band.
type Readiness struct {
	Score     int    `json:"score"`
	Indicator string `json:"indicator"`
}

// PredictPlacementReadiness blends the four signals 0.4/0.3/0.2/0.1
// into a 0-100 index.
func PredictPlacementReadiness(in ReadinessInputs) Readiness {
	score := in.Coding*0.4 + in.Aptitude*0.3 + in.Technical*0.2 + in.SoftSkills*0.1
	rounded := int(math.Round(score))
	switch {
	case score >= 75:
		return Readiness{Score: rounded, Indicator: "Placement Ready"}
	case score >= 45:
		return Readiness{Score: rounded, Indicator: "Improving"}
	default:
		return Readiness{Score: rounded, Indicator: "Not Ready"}
	}
}

// ConsistencyTier bands streak length, activity volume and test average
// into a discrete tier.
func ConsistencyTier(streakDays, activityCount int, testAverage float64) string {
	weighted := float64(streakDays)*0.45 + float64(activityCount)*0.25 + testAverage*0.3
	switch {
	case weighted >= 70:
		return "Placement Ready"
	case weighted >= 45:
		return "Dedicated"
	case weighted >= 20:
		return "Regular"
	default:
		return "Beginner"
	}
}

// FindWeakCategory returns the lowest-scoring category, or fallback for
// an empty map. Ties resolve alphabetically so the answer is stable.
func FindWeakCategory(categoryScores map[string]int, fallback string) string {
	if fallback == "" {
		fallback = defaultCategory
	}
	if len(categoryScores) == 0 {
		return fallback
	}
	names := make([]string, 0, len(categoryScores))
	for category := range categoryScores {
		names = append(names, category)
	}
	sort.Strings(names)
	weakest := names[0]
	for _, category := range names[1:] {
		if categoryScores[category] < categoryScores[weakest] {
			weakest = category
		}
	}
	return weakest
}

// ActivityCounts are raw activity tallies feeding the activity-based
// readiness score.
type ActivityCounts struct {
	CodingProblemsSolved float64
	AptitudeHours        float64
	CoreTopicsCovered    float64
	SoftSkillsPractice   float64
}

// ActivityReadinessScore blends raw activity counts with a streak bonus
// into a clamped 0-100 score.
func ActivityReadinessScore(counts ActivityCounts, streak int) float64 {
	score := counts.CodingProblemsSolved*0.4 +
		counts.AptitudeHours*0.3 +
		counts.CoreTopicsCovered*0.2 +
		counts.SoftSkillsPractice*0.1
	if streak > 5 {
		score += 10
	}
	score = math.Max(0, math.Min(100, score))
	return math.Round(score*100) / 100
}

// TaskReadiness scores task completion (60%) against logged hours
// (8 points per hour, capped at 40).
func TaskReadiness(hoursStudied float64, completedTasks, totalTasks int) int {
	if totalTasks == 0 {
		totalTasks = 1
	}
	taskScore := float64(completedTasks) / float64(totalTasks) * 60
	hourScore := math.Min(hoursStudied*8, 40)
	return int(math.Round(math.Min(taskScore+hourScore, 100)))
}
