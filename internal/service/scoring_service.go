package service

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/config"
	appErrors "github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/errors"
)

const (
	defaultTimeDecayHours = 168.0
	defaultMaxTimeBonus   = 1.0
	weightSumTolerance    = 0.01
)

// ScoringWeights holds the five component weights of the composite score.
type ScoringWeights struct {
	GPA          float64 `json:"gpa_weight"`
	Interest     float64 `json:"interest_weight"`
	Time         float64 `json:"time_weight"`
	YearFit      float64 `json:"year_fit_weight"`
	Prerequisite float64 `json:"prerequisite_weight"`
}

// Validate checks that the weights are non-negative and sum to 1.0 within
// tolerance.
func (w ScoringWeights) Validate() error {
	if w.GPA < 0 || w.Interest < 0 || w.Time < 0 || w.YearFit < 0 || w.Prerequisite < 0 {
		return appErrors.Clone(appErrors.ErrInvalidWeights, "scoring weights must be non-negative")
	}
	sum := w.GPA + w.Interest + w.Time + w.YearFit + w.Prerequisite
	if math.Abs(sum-1.0) > weightSumTolerance {
		return appErrors.ErrInvalidWeights
	}
	return nil
}

// DefaultWeights is the balanced preset.
func DefaultWeights() ScoringWeights {
	return ScoringWeights{GPA: 0.35, Interest: 0.30, Time: 0.20, YearFit: 0.10, Prerequisite: 0.05}
}

// CompetitiveWeights favors academic standing.
func CompetitiveWeights() ScoringWeights {
	return ScoringWeights{GPA: 0.45, Interest: 0.25, Time: 0.15, YearFit: 0.10, Prerequisite: 0.05}
}

// InterestFocusedWeights favors topical overlap.
func InterestFocusedWeights() ScoringWeights {
	return ScoringWeights{GPA: 0.25, Interest: 0.45, Time: 0.15, YearFit: 0.10, Prerequisite: 0.05}
}

// FCFSLeaningWeights favors early applicants.
func FCFSLeaningWeights() ScoringWeights {
	return ScoringWeights{GPA: 0.25, Interest: 0.20, Time: 0.40, YearFit: 0.10, Prerequisite: 0.05}
}

// WeightsFromConfig resolves the configured preset, falling back to the
// explicit weight fields when the preset is DEFAULT or empty.
func WeightsFromConfig(cfg config.ScoringConfig) (ScoringWeights, error) {
	switch cfg.Preset {
	case config.PresetCompetitive:
		return CompetitiveWeights(), nil
	case config.PresetInterestFocused:
		return InterestFocusedWeights(), nil
	case config.PresetFCFSLeaning:
		return FCFSLeaningWeights(), nil
	case config.PresetDefault, "":
		w := ScoringWeights{
			GPA:          cfg.GPAWeight,
			Interest:     cfg.InterestWeight,
			Time:         cfg.TimeWeight,
			YearFit:      cfg.YearFitWeight,
			Prerequisite: cfg.PrerequisiteWeight,
		}
		if err := w.Validate(); err != nil {
			return ScoringWeights{}, err
		}
		return w, nil
	default:
		return ScoringWeights{}, appErrors.Clone(appErrors.ErrValidation, "unknown scoring preset "+cfg.Preset)
	}
}

// ScoringService computes composite fit scores for (student, course)
// applications. Compute paths are pure; the only mutable state is the
// course booking-open timestamps propagated by the registration service.
type ScoringService struct {
	weights        ScoringWeights
	timeDecayHours float64
	maxTimeBonus   float64
	logger         *zap.Logger

	mu           sync.RWMutex
	bookingOpens map[string]time.Time
}

// NewScoringService validates the configuration and builds a scorer.
func NewScoringService(cfg config.ScoringConfig, logger *zap.Logger) (*ScoringService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	weights, err := WeightsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	decay := cfg.TimeDecayHours
	if decay <= 0 {
		decay = defaultTimeDecayHours
	}
	maxBonus := cfg.MaxTimeBonus
	if maxBonus <= 0 {
		maxBonus = defaultMaxTimeBonus
	}

	return &ScoringService{
		weights:        weights,
		timeDecayHours: decay,
		maxTimeBonus:   maxBonus,
		logger:         logger,
		bookingOpens:   make(map[string]time.Time),
	}, nil
}

// Weights returns the active weight set.
func (s *ScoringService) Weights() ScoringWeights {
	return s.weights
}

// SetBookingOpensAt records when booking opened for a course. Time scores
// decay relative to this instant.
func (s *ScoringService) SetBookingOpensAt(courseID string, openedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookingOpens[courseID] = openedAt
}

// BookingOpensAt returns the recorded booking-open instant for a course.
func (s *ScoringService) BookingOpensAt(courseID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	openedAt, ok := s.bookingOpens[courseID]
	return openedAt, ok
}

// ComputeScore scores one application. Missing data never fails; it
// produces the documented neutral component values instead.
func (s *ScoringService) ComputeScore(student *models.Student, course *models.Course, appliedAt time.Time, priorityRank int) *models.CourseApplication {
	app := &models.CourseApplication{
		ApplicationID: uuid.NewString(),
		StudentID:     student.StudentID,
		CourseID:      course.CourseID,
		PriorityRank:  priorityRank,
		AppliedAt:     appliedAt,
		Status:        models.StatusWaitlisted,
	}

	app.GPAScore = s.gpaScore(student, course)
	app.InterestScore = s.interestScore(student, course)
	app.TimeScore = s.timeScore(course.CourseID, appliedAt)
	app.YearScore = s.yearScore(student, course)
	app.PrereqScore = s.prereqScore(student, course)

	app.CompositeScore = s.weights.GPA*app.GPAScore +
		s.weights.Interest*app.InterestScore +
		s.weights.Time*app.TimeScore +
		s.weights.YearFit*app.YearScore +
		s.weights.Prerequisite*app.PrereqScore

	return app
}

// RecomputeScores rescores existing applications in place of their stale
// copies, preserving identity and status. Applications whose student or
// course is unknown are returned unchanged.
func (s *ScoringService) RecomputeScores(apps []*models.CourseApplication, students map[string]*models.Student, courses map[string]*models.Course) []*models.CourseApplication {
	updated := make([]*models.CourseApplication, 0, len(apps))
	for _, app := range apps {
		student, okS := students[app.StudentID]
		course, okC := courses[app.CourseID]
		if !okS || !okC {
			updated = append(updated, app)
			continue
		}

		fresh := s.ComputeScore(student, course, app.AppliedAt, app.PriorityRank)
		fresh.ApplicationID = app.ApplicationID
		fresh.Status = app.Status
		updated = append(updated, fresh)
	}
	return updated
}

// gpaScore maps GPA onto [0,1] with a small bonus for clearing the course
// minimum. Below-minimum students score zero.
func (s *ScoringService) gpaScore(student *models.Student, course *models.Course) float64 {
	if student.GPA < course.MinGPA {
		return 0
	}
	base := student.GPA / 4.0
	bonus := math.Min(0.1, (student.GPA-course.MinGPA)*0.05)
	return math.Min(1.0, base+bonus)
}

// interestScore is the Jaccard similarity of lowercased interest and tag
// sets. An empty side is neutral.
func (s *ScoringService) interestScore(student *models.Student, course *models.Course) float64 {
	interests := lowerSet(student.Interests)
	tags := lowerSet(course.Tags)
	if len(interests) == 0 || len(tags) == 0 {
		return 0.5
	}

	intersection := 0
	for tag := range tags {
		if _, ok := interests[tag]; ok {
			intersection++
		}
	}
	union := len(interests) + len(tags) - intersection
	return float64(intersection) / float64(union)
}

// timeScore decays exponentially with hours since booking opened, halving
// every timeDecayHours. Unknown booking-open time counts as zero hours.
func (s *ScoringService) timeScore(courseID string, appliedAt time.Time) float64 {
	openedAt, known := s.BookingOpensAt(courseID)
	hours := 0.0
	if known {
		hours = appliedAt.Sub(openedAt).Hours()
		if hours < 0 {
			hours = 0
		}
	}

	lambda := math.Ln2 / s.timeDecayHours
	return s.maxTimeBonus * math.Exp(-lambda*hours)
}

func (s *ScoringService) yearScore(student *models.Student, course *models.Course) float64 {
	adjacent := false
	for _, year := range course.PreferredYears {
		distance := student.Year - year
		if distance < 0 {
			distance = -distance
		}
		if distance == 0 {
			return 1.0
		}
		if distance == 1 {
			adjacent = true
		}
	}
	if adjacent {
		return 0.5
	}
	return 0.25
}

func (s *ScoringService) prereqScore(student *models.Student, course *models.Course) float64 {
	if len(course.Prerequisites) == 0 {
		return 1.0
	}

	completed := 0
	for _, prereq := range course.Prerequisites {
		if student.HasCompleted(prereq) {
			completed++
		}
	}
	return float64(completed) / float64(len(course.Prerequisites))
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}
