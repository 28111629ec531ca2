package service

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/config"
	appErrors "github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/errors"
)

func defaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Preset:             config.PresetDefault,
		GPAWeight:          0.35,
		InterestWeight:     0.30,
		TimeWeight:         0.20,
		YearFitWeight:      0.10,
		PrerequisiteWeight: 0.05,
		TimeDecayHours:     168,
		MaxTimeBonus:       1.0,
	}
}

func newTestScorer(t *testing.T) *ScoringService {
	scorer, err := NewScoringService(defaultScoringConfig(), nil)
	require.NoError(t, err)
	return scorer
}

func TestComputeScoreBreakdown(t *testing.T) {
	scorer := newTestScorer(t)

	student := &models.Student{
		StudentID:        "S1",
		GPA:              3.5,
		Year:             3,
		Interests:        []string{"machine-learning", "ai", "python"},
		CompletedCourses: []string{"CS101", "CS201"},
	}
	course := &models.Course{
		CourseID:       "ML301",
		MinGPA:         3.0,
		PreferredYears: []int{3, 4},
		Prerequisites:  []string{"CS101", "CS201"},
		Tags:           []string{"machine-learning", "ai", "python", "data-science"},
	}

	appliedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scorer.SetBookingOpensAt("ML301", appliedAt.Add(-1*time.Hour))

	app := scorer.ComputeScore(student, course, appliedAt, 1)

	assert.InDelta(t, 0.900, app.GPAScore, 1e-9)
	assert.InDelta(t, 0.750, app.InterestScore, 1e-9)
	assert.InDelta(t, math.Exp(-math.Ln2/168), app.TimeScore, 1e-9)
	assert.InDelta(t, 1.0, app.YearScore, 1e-9)
	assert.InDelta(t, 1.0, app.PrereqScore, 1e-9)
	assert.InDelta(t, 0.8892, app.CompositeScore, 0.0005)

	assert.Equal(t, models.StatusWaitlisted, app.Status)
	assert.NotEmpty(t, app.ApplicationID)
	assert.Equal(t, 1, app.PriorityRank)
}

func TestTimeScoreHalvesAtDecayHorizon(t *testing.T) {
	scorer := newTestScorer(t)

	opened := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	scorer.SetBookingOpensAt("C1", opened)

	student := &models.Student{StudentID: "S1", GPA: 3.0}
	course := &models.Course{CourseID: "C1"}

	app := scorer.ComputeScore(student, course, opened.Add(168*time.Hour), 1)
	assert.InDelta(t, 0.5, app.TimeScore, 1e-9)
}

func TestTimeScoreUnknownOpenCountsAsZeroHours(t *testing.T) {
	scorer := newTestScorer(t)

	student := &models.Student{StudentID: "S1", GPA: 3.0}
	course := &models.Course{CourseID: "never-opened"}

	app := scorer.ComputeScore(student, course, time.Now(), 1)
	assert.InDelta(t, 1.0, app.TimeScore, 1e-9)
}

func TestCompositeIsExactWeightedSum(t *testing.T) {
	scorer := newTestScorer(t)

	student := &models.Student{
		StudentID:        "S1",
		GPA:              3.1,
		Year:             2,
		Interests:        []string{"databases"},
		CompletedCourses: []string{"CS101"},
	}
	course := &models.Course{
		CourseID:       "DB200",
		MinGPA:         2.5,
		PreferredYears: []int{3},
		Prerequisites:  []string{"CS101", "CS110"},
		Tags:           []string{"databases", "sql"},
	}

	app := scorer.ComputeScore(student, course, time.Now(), 1)

	w := scorer.Weights()
	expected := w.GPA*app.GPAScore + w.Interest*app.InterestScore +
		w.Time*app.TimeScore + w.YearFit*app.YearScore + w.Prerequisite*app.PrereqScore
	assert.InDelta(t, expected, app.CompositeScore, 1e-9)
}

func TestScoringIsDeterministic(t *testing.T) {
	scorer := newTestScorer(t)

	student := &models.Student{StudentID: "S1", GPA: 3.7, Year: 4, Interests: []string{"ai"}}
	course := &models.Course{CourseID: "C1", MinGPA: 3.0, Tags: []string{"ai", "ml"}, PreferredYears: []int{4}}
	appliedAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	scorer.SetBookingOpensAt("C1", appliedAt.Add(-3*time.Hour))

	first := scorer.ComputeScore(student, course, appliedAt, 2)
	second := scorer.ComputeScore(student, course, appliedAt, 2)
	assert.Equal(t, first.CompositeScore, second.CompositeScore)
}

func TestGPAScoreBelowMinimumIsZero(t *testing.T) {
	scorer := newTestScorer(t)

	student := &models.Student{StudentID: "S1", GPA: 2.4}
	course := &models.Course{CourseID: "C1", MinGPA: 2.5}

	app := scorer.ComputeScore(student, course, time.Now(), 1)
	assert.Zero(t, app.GPAScore)
}

func TestInterestScoreNeutralWhenEitherSideEmpty(t *testing.T) {
	scorer := newTestScorer(t)

	student := &models.Student{StudentID: "S1", GPA: 3.0}
	course := &models.Course{CourseID: "C1", Tags: []string{"ai"}}

	app := scorer.ComputeScore(student, course, time.Now(), 1)
	assert.InDelta(t, 0.5, app.InterestScore, 1e-9)

	student.Interests = []string{"AI"}
	app = scorer.ComputeScore(student, course, time.Now(), 1)
	assert.InDelta(t, 1.0, app.InterestScore, 1e-9, "matching is case-insensitive")
}

func TestYearScoreTiers(t *testing.T) {
	scorer := newTestScorer(t)
	course := &models.Course{CourseID: "C1", PreferredYears: []int{3}}

	cases := []struct {
		year     int
		expected float64
	}{
		{3, 1.0},
		{2, 0.5},
		{4, 0.5},
		{1, 0.25},
	}
	for _, tc := range cases {
		app := scorer.ComputeScore(&models.Student{StudentID: "S1", GPA: 3.0, Year: tc.year}, course, time.Now(), 1)
		assert.InDelta(t, tc.expected, app.YearScore, 1e-9)
	}

	// No preferred years means the student's year can never match.
	noPref := &models.Course{CourseID: "C2"}
	app := scorer.ComputeScore(&models.Student{StudentID: "S1", GPA: 3.0, Year: 3}, noPref, time.Now(), 1)
	assert.InDelta(t, 0.25, app.YearScore, 1e-9)
}

func TestPrereqScorePartialCompletion(t *testing.T) {
	scorer := newTestScorer(t)

	student := &models.Student{StudentID: "S1", GPA: 3.0, CompletedCourses: []string{"CS101"}}
	course := &models.Course{CourseID: "C1", Prerequisites: []string{"CS101", "CS201"}}

	app := scorer.ComputeScore(student, course, time.Now(), 1)
	assert.InDelta(t, 0.5, app.PrereqScore, 1e-9)

	course.Prerequisites = nil
	app = scorer.ComputeScore(student, course, time.Now(), 1)
	assert.InDelta(t, 1.0, app.PrereqScore, 1e-9)
}

func TestWeightsFromConfigPresets(t *testing.T) {
	cases := []struct {
		preset   string
		expected ScoringWeights
	}{
		{config.PresetCompetitive, CompetitiveWeights()},
		{config.PresetInterestFocused, InterestFocusedWeights()},
		{config.PresetFCFSLeaning, FCFSLeaningWeights()},
	}
	for _, tc := range cases {
		weights, err := WeightsFromConfig(config.ScoringConfig{Preset: tc.preset})
		require.NoError(t, err)
		assert.Equal(t, tc.expected, weights)
	}
}

func TestNewScoringServiceRejectsBadWeights(t *testing.T) {
	cfg := defaultScoringConfig()
	cfg.GPAWeight = 0.9

	_, err := NewScoringService(cfg, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)

	cfg = defaultScoringConfig()
	cfg.InterestWeight = -0.1
	_, err = NewScoringService(cfg, nil)
	require.Error(t, err)
}

func TestRecomputeScoresPreservesIdentityAndStatus(t *testing.T) {
	scorer := newTestScorer(t)

	students := map[string]*models.Student{
		"S1": {StudentID: "S1", GPA: 3.0},
	}
	courses := map[string]*models.Course{
		"C1": {CourseID: "C1", MinGPA: 2.0},
	}

	original := scorer.ComputeScore(students["S1"], courses["C1"], time.Now(), 1)
	original.Status = models.StatusRegistered

	students["S1"].GPA = 3.8
	updated := scorer.RecomputeScores([]*models.CourseApplication{original}, students, courses)
	require.Len(t, updated, 1)
	assert.Equal(t, original.ApplicationID, updated[0].ApplicationID)
	assert.Equal(t, models.StatusRegistered, updated[0].Status)
	assert.Greater(t, updated[0].CompositeScore, original.CompositeScore)

	// Unknown course leaves the stale application untouched.
	orphan := scorer.ComputeScore(students["S1"], courses["C1"], time.Now(), 1)
	orphan.CourseID = "gone"
	kept := scorer.RecomputeScores([]*models.CourseApplication{orphan}, students, courses)
	require.Len(t, kept, 1)
	assert.Same(t, orphan, kept[0])
}
