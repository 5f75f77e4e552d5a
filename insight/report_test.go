package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preplens/preplens-api/models"
)

func TestBuildReportRanksStrengthsAndWeaknesses(t *testing.T) {
	report := BuildReport(ReportInput{
		UID:    "alice",
		TestID: "tests-1",
		CategoryWiseScore: map[string]int{
			"aptitude":   30,
			"technical":  85,
			"verbal":     60,
			"softskills": 40,
		},
	})

	assert.Equal(t, []string{"Technical (85%)", "Verbal (60%)"}, report.Strengths)
	assert.Equal(t, []string{"Aptitude (30%)", "Soft Skills (40%)"}, report.Weaknesses, "weakest listed first")
	assert.Equal(t, "aptitude", report.WeakestCategory)
	assert.Equal(t, improvementLibrary["aptitude"], report.ImprovementPlan)
	assert.Equal(t, "Focus required in Soft Skills, Aptitude.", report.Summary)

	require.Len(t, report.DetailedAnalysis, 4)
	byCategory := make(map[string]models.CategoryAnalysis)
	for _, a := range report.DetailedAnalysis {
		byCategory[a.Category] = a
	}
	assert.Equal(t, "Strong", byCategory["technical"].Level)
	assert.Equal(t, "Moderate", byCategory["verbal"].Level)
	assert.Equal(t, "Needs Improvement", byCategory["aptitude"].Level)
	assert.Equal(t, 50, byCategory["aptitude"].GapTo80)
	assert.Equal(t, 0, byCategory["technical"].GapTo80)

	assert.Equal(t, []string{
		"Soft Skills: 40% (Need +40% to reach target)",
		"Aptitude: 30% (Need +50% to reach target)",
	}, report.LackingAreas)
}

func TestBuildReportIsIdempotent(t *testing.T) {
	in := ReportInput{
		UID:    "alice",
		TestID: "tests-1",
		CategoryWiseScore: map[string]int{
			"aptitude": 55, "technical": 55, "verbal": 55, "reasoning": 55,
		},
	}

	first := BuildReport(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildReport(in), "tied scores must rank the same way every call")
	}
}

func TestBuildReportStudyBonusIsCapped(t *testing.T) {
	report := BuildReport(ReportInput{
		CategoryWiseScore:    map[string]int{"aptitude": 90, "technical": 50},
		StudyHoursByCategory: map[string]float64{"aptitude": 40, "technical": 7},
	})

	byCategory := make(map[string]models.CategoryAnalysis)
	for _, a := range report.DetailedAnalysis {
		byCategory[a.Category] = a
	}
	assert.Equal(t, 100, byCategory["aptitude"].Score, "bonus and total both capped")
	assert.Equal(t, 57, byCategory["technical"].Score)
}

func TestBuildReportBlendsMockAverage(t *testing.T) {
	blended := BuildReport(ReportInput{
		CategoryWiseScore:    map[string]int{"softskills": 60, "aptitude": 80},
		MockInterviewAverage: 40,
	})
	fresh := BuildReport(ReportInput{
		CategoryWiseScore:    map[string]int{"aptitude": 80},
		MockInterviewAverage: 70,
	})
	untouched := BuildReport(ReportInput{
		CategoryWiseScore: map[string]int{"softskills": 60, "aptitude": 80},
	})

	score := func(r models.Report, category string) int {
		for _, a := range r.DetailedAnalysis {
			if a.Category == category {
				return a.Score
			}
		}
		return -1
	}
	assert.Equal(t, 50, score(blended, "softskills"), "existing score averages with the mock signal")
	assert.Equal(t, 70, score(fresh, "softskills"), "mock signal stands alone when no softskills score exists")
	assert.Equal(t, 60, score(untouched, "softskills"), "zero mock average leaves softskills alone")
}

func TestBuildReportBalancedSummary(t *testing.T) {
	report := BuildReport(ReportInput{
		CategoryWiseScore: map[string]int{"aptitude": 70, "technical": 65, "verbal": 80},
	})
	assert.Equal(t, "Performance is balanced across categories.", report.Summary)
	assert.Empty(t, report.LackingAreas)
}

func TestBuildReportEmptyInput(t *testing.T) {
	report := BuildReport(ReportInput{UID: "alice", TestID: "tests-1"})

	assert.Equal(t, "aptitude", report.WeakestCategory)
	assert.Equal(t, improvementLibrary["aptitude"], report.ImprovementPlan)
	assert.Empty(t, report.Strengths)
	assert.Empty(t, report.Weaknesses)
}

func TestWeakAreaMessage(t *testing.T) {
	assert.Contains(t, WeakAreaMessage("technical"), "Technical")
	assert.Contains(t, WeakAreaMessage("softskills"), "Soft Skills")
	assert.Equal(t, WeakAreaMessage("aptitude"), WeakAreaMessage("unknown"), "unknown categories fall back")
}

func TestLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aptitude", "Aptitude"},
		{"softskills", "Soft Skills"},
		{"TECHNICAL", "Technical"},
		{"", "General"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.in))
	}
}
