// Package insight turns category scores and auxiliary signals into
// improvement reports and readiness indicators. Everything here is a
// pure function: same input, same output, no storage access.
package insight

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/preplens/preplens-api/models"
)

// improvementLibrary maps each category to its canned action template.
// The first entry doubles as the category's single recommended action.
var improvementLibrary = map[string][]string{
	"aptitude":   {"Practice percentages and ratio questions", "Solve 20 probability problems", "Take a timed aptitude drill"},
	"technical":  {"Revise DSA basics for 45 minutes daily", "Solve 3 coding problems per day", "Review system design fundamentals"},
	"reasoning":  {"Solve logical puzzle sets", "Practice seating arrangement questions", "Attempt mixed reasoning mock test"},
	"verbal":     {"Read and summarize one passage daily", "Practice grammar error spotting", "Attempt vocabulary quiz of 25 words"},
	"softskills": {"Practice interview storytelling", "Record a mock answer and review", "Prepare STAR format examples"},
}

const (
	defaultCategory  = "aptitude"
	planLength       = 3
	studyBonusCap    = 15
	targetScore      = 80
	lackingThreshold = 50
)

// ReportInput carries one attempt's category scores plus the auxiliary
// signals blended into them.
type ReportInput struct {
	UID                  string
	TestID               string
	CategoryWiseScore    map[string]int
	StudyHoursByCategory map[string]float64
	MockInterviewAverage float64
}

// BuildReport synthesizes the improvement report for one attempt.
// Recent study hours boost a category by up to 15 points (total capped
// at 100), and the mock interview average blends into softskills as a
// simple running average. The returned report has no ID or timestamp;
// the caller assigns those when persisting.
func BuildReport(in ReportInput) models.Report {
	merged := make(map[string]float64, len(in.CategoryWiseScore))
	for category, score := range in.CategoryWiseScore {
		merged[category] = float64(score)
	}

	for category, hours := range in.StudyHoursByCategory {
		bonus := math.Min(studyBonusCap, math.Max(0, hours))
		merged[category] = math.Min(100, merged[category]+bonus)
	}

	if in.MockInterviewAverage > 0 {
		existing := merged["softskills"]
		if existing > 0 {
			merged["softskills"] = math.Round((existing + in.MockInterviewAverage) / 2)
		} else {
			merged["softskills"] = math.Round(in.MockInterviewAverage)
		}
	}

	ranked := rankCategories(merged)

	report := models.Report{
		UID:             in.UID,
		TestID:          in.TestID,
		WeakestCategory: defaultCategory,
	}

	for _, entry := range ranked[:minInt(2, len(ranked))] {
		report.Strengths = append(report.Strengths, fmt.Sprintf("%s (%d%%)", Label(entry.category), entry.score))
	}
	// weakest first
	for i := len(ranked) - 1; i >= maxInt(0, len(ranked)-2); i-- {
		report.Weaknesses = append(report.Weaknesses, fmt.Sprintf("%s (%d%%)", Label(ranked[i].category), ranked[i].score))
	}

	if len(ranked) > 0 {
		report.WeakestCategory = ranked[len(ranked)-1].category
	}
	report.ImprovementPlan = planFor(report.WeakestCategory)

	var focus []string
	for _, entry := range ranked {
		gap := maxInt(0, targetScore-entry.score)
		analysis := models.CategoryAnalysis{
			Category:       entry.category,
			Label:          Label(entry.category),
			Score:          entry.score,
			Level:          band(entry.score),
			GapTo80:        gap,
			Recommendation: planFor(entry.category)[0],
		}
		report.DetailedAnalysis = append(report.DetailedAnalysis, analysis)
		if entry.score < lackingThreshold {
			report.LackingAreas = append(report.LackingAreas,
				fmt.Sprintf("%s: %d%% (Need +%d%% to reach target)", analysis.Label, analysis.Score, gap))
			focus = append(focus, analysis.Label)
		}
	}

	if len(focus) > 0 {
		report.Summary = fmt.Sprintf("Focus required in %s.", strings.Join(focus, ", "))
	} else {
		report.Summary = "Performance is balanced across categories."
	}
	return report
}

// WeakAreaMessage is the canned notification text for a weakest
// category.
func WeakAreaMessage(category string) string {
	messages := map[string]string{
		"aptitude":   "You need to focus on Aptitude - practice percentages and probability.",
		"technical":  "You need to focus on Technical - strengthen DSA and coding speed.",
		"reasoning":  "You need to focus on Reasoning - solve logic and puzzle based sets.",
		"verbal":     "You need to focus on Verbal - improve comprehension and grammar.",
		"softskills": "You need to focus on Soft Skills - improve interview communication.",
	}
	if msg, ok := messages[category]; ok {
		return msg
	}
	return messages[defaultCategory]
}

// Label renders a category id for display.
func Label(category string) string {
	key := strings.ToLower(category)
	if key == "softskills" {
		return "Soft Skills"
	}
	if key == "" {
		return "General"
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

type rankedCategory struct {
	category string
	score    int
}

// rankCategories orders categories by score descending. Categories are
// walked alphabetically first so ties resolve the same way every call;
// report generation must be idempotent for identical input.
func rankCategories(merged map[string]float64) []rankedCategory {
	names := make([]string, 0, len(merged))
	for category := range merged {
		names = append(names, category)
	}
	sort.Strings(names)

	ranked := make([]rankedCategory, 0, len(names))
	for _, category := range names {
		score := int(math.Round(math.Max(0, math.Min(100, merged[category]))))
		ranked = append(ranked, rankedCategory{category: category, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked
}

func planFor(category string) []string {
	plan, ok := improvementLibrary[category]
	if !ok {
		plan = improvementLibrary[defaultCategory]
	}
	if len(plan) > planLength {
		plan = plan[:planLength]
	}
	out := make([]string, len(plan))
	copy(out, plan)
	return out
}

func band(score int) string {
	switch {
	case score >= 75:
		return "Strong"
	case score >= 45:
		return "Moderate"
	default:
		return "Needs Improvement"
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
