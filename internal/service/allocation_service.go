package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/repository"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/config"
)

const defaultLockTTL = 30 * time.Second

// AllocationService translates applications into registration outcomes,
// runs batch allocations, fills vacancies and owns the enrollment maps.
// All apply traffic funnels through the waitlist; seats are granted by
// batch runs, vacancy fills or manual registration only.
type AllocationService struct {
	waitlist repository.WaitlistStore
	scorer   *ScoringService
	cfg      config.AllocationConfig
	lockTTL  time.Duration
	logger   *zap.Logger

	// batchMu serializes batch runs; only one batch may hold write rights
	// to the enrollment maps at a time.
	batchMu sync.Mutex

	mu                sync.RWMutex
	courseEnrollments map[string]map[string]struct{}
	studentCourses    map[string]map[string]struct{}
	applications      map[string]map[string]*models.CourseApplication
}

// NewAllocationService constructs the engine.
func NewAllocationService(waitlist repository.WaitlistStore, scorer *ScoringService, cfg config.AllocationConfig, lockTTL time.Duration, logger *zap.Logger) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	if cfg.MaxCoursesPerStudent <= 0 {
		cfg.MaxCoursesPerStudent = 5
	}
	if cfg.Strategy == "" {
		cfg.Strategy = config.StrategyBalanced
	}

	return &AllocationService{
		waitlist:          waitlist,
		scorer:            scorer,
		cfg:               cfg,
		lockTTL:           lockTTL,
		logger:            logger,
		courseEnrollments: make(map[string]map[string]struct{}),
		studentCourses:    make(map[string]map[string]struct{}),
		applications:      make(map[string]map[string]*models.CourseApplication),
	}
}

// Apply processes one application. Gating rejects outright; everything
// else lands on the waitlist and waits for a batch run.
func (s *AllocationService) Apply(ctx context.Context, student *models.Student, course *models.Course, prefs *models.StudentCoursePreferences, appliedAt time.Time) (*models.AllocationResult, error) {
	if appliedAt.IsZero() {
		appliedAt = time.Now().UTC()
	}
	priority := prefs.GetPriority(course.CourseID)

	app := s.scorer.ComputeScore(student, course, appliedAt, priority)

	if s.IsEnrolled(student.StudentID, course.CourseID) {
		return rejected(student.StudentID, course.CourseID, "Already enrolled in this course.", app.CompositeScore), nil
	}

	if student.GPA < course.MinGPA {
		msg := fmt.Sprintf("GPA %.2f below minimum %.2f", student.GPA, course.MinGPA)
		return rejected(student.StudentID, course.CourseID, msg, app.CompositeScore), nil
	}

	if !s.meetsPrerequisites(student, course) {
		return rejected(student.StudentID, course.CourseID, "Prerequisites not met.", app.CompositeScore), nil
	}

	var message string
	switch course.BookingState {
	case models.BookingClosed:
		message = "Added to waitlist. Booking not yet open."
	case models.BookingOpen:
		if s.hasVacancy(course) {
			message = "Application received. Allocation will be processed in next batch."
		} else {
			message = "Course full. Added to waitlist."
		}
	case models.CourseStarted:
		if s.hasVacancy(course) {
			message = "Added to waitlist for late enrollment."
		} else {
			message = "Course full and started. Added to waitlist for dropout fill."
		}
	default:
		return rejected(student.StudentID, course.CourseID, "Course registration is closed.", app.CompositeScore), nil
	}

	if err := s.waitlist.Add(ctx, course.CourseID, student.StudentID, app.CompositeScore); err != nil {
		return nil, err
	}
	if err := s.waitlist.SaveApplication(ctx, app); err != nil {
		return nil, err
	}
	s.recordApplication(app)

	position, err := s.waitlist.Position(ctx, course.CourseID, student.StudentID)
	if err != nil {
		return nil, err
	}

	return &models.AllocationResult{
		StudentID:        student.StudentID,
		CourseID:         course.CourseID,
		Success:          true,
		Status:           models.StatusWaitlisted,
		Message:          message,
		WaitlistPosition: position,
		Score:            app.CompositeScore,
	}, nil
}

// ManualRegister attempts an immediate enrollment, bypassing the batch.
// Admissible only while booking is open and a seat is free.
func (s *AllocationService) ManualRegister(ctx context.Context, student *models.Student, course *models.Course) (*models.AllocationResult, error) {
	if course.BookingState != models.BookingOpen {
		return rejected(student.StudentID, course.CourseID, "Manual registration not available. Use apply instead.", 0), nil
	}
	if !s.hasVacancy(course) {
		return rejected(student.StudentID, course.CourseID, "No vacancy available for manual registration.", 0), nil
	}
	if s.IsEnrolled(student.StudentID, course.CourseID) {
		return rejected(student.StudentID, course.CourseID, "Already enrolled in this course.", 0), nil
	}

	app := s.scorer.ComputeScore(student, course, time.Now().UTC(), models.UnrankedPriority)

	if student.GPA < course.MinGPA {
		msg := fmt.Sprintf("GPA %.2f below minimum %.2f", student.GPA, course.MinGPA)
		return rejected(student.StudentID, course.CourseID, msg, app.CompositeScore), nil
	}
	if !s.meetsPrerequisites(student, course) {
		return rejected(student.StudentID, course.CourseID, "Prerequisites not met.", app.CompositeScore), nil
	}

	acquired, err := s.waitlist.AcquireLock(ctx, course.CourseID, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return &models.AllocationResult{
			StudentID: student.StudentID,
			CourseID:  course.CourseID,
			Success:   false,
			Status:    models.StatusWaitlisted,
			Message:   "System busy. Please try again.",
			Score:     app.CompositeScore,
		}, nil
	}
	defer func() {
		if relErr := s.waitlist.ReleaseLock(ctx, course.CourseID); relErr != nil {
			s.logger.Warn("release course lock failed", zap.String("course_id", course.CourseID), zap.Error(relErr))
		}
	}()

	s.mu.Lock()
	if course.AvailableSeats() <= 0 {
		s.mu.Unlock()
		// Lost the race; queue for the next batch instead.
		if err := s.waitlist.Add(ctx, course.CourseID, student.StudentID, app.CompositeScore); err != nil {
			return nil, err
		}
		if err := s.waitlist.SaveApplication(ctx, app); err != nil {
			return nil, err
		}
		s.recordApplication(app)
		position, err := s.waitlist.Position(ctx, course.CourseID, student.StudentID)
		if err != nil {
			return nil, err
		}
		return &models.AllocationResult{
			StudentID:        student.StudentID,
			CourseID:         course.CourseID,
			Success:          false,
			Status:           models.StatusWaitlisted,
			Message:          "Vacancy filled while processing. Added to waitlist.",
			WaitlistPosition: position,
			Score:            app.CompositeScore,
		}, nil
	}

	s.enrollLocked(student.StudentID, course.CourseID)
	course.CurrentEnrollment++
	s.mu.Unlock()
	s.markRegistered(course.CourseID, student.StudentID)

	if err := s.waitlist.Remove(ctx, course.CourseID, student.StudentID); err != nil {
		return nil, err
	}

	s.logger.Info("manual registration",
		zap.String("student_id", student.StudentID),
		zap.String("course_id", course.CourseID),
	)

	return &models.AllocationResult{
		StudentID: student.StudentID,
		CourseID:  course.CourseID,
		Success:   true,
		Status:    models.StatusRegistered,
		Message:   "Successfully registered!",
		Score:     app.CompositeScore,
	}, nil
}

// FillVacancy promotes the top waitlisted student into a free seat. A nil
// result with nil error means no seat or no waiter was available.
func (s *AllocationService) FillVacancy(ctx context.Context, course *models.Course) (*models.AllocationResult, error) {
	if !s.hasVacancy(course) {
		return nil, nil
	}

	acquired, err := s.waitlist.AcquireLock(ctx, course.CourseID, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		s.logger.Warn("could not acquire lock for vacancy fill", zap.String("course_id", course.CourseID))
		return nil, nil
	}
	defer func() {
		if relErr := s.waitlist.ReleaseLock(ctx, course.CourseID); relErr != nil {
			s.logger.Warn("release course lock failed", zap.String("course_id", course.CourseID), zap.Error(relErr))
		}
	}()

	top, err := s.waitlist.PopTop(ctx, course.CourseID)
	if err != nil {
		return nil, err
	}
	if top == nil {
		s.logger.Debug("no waitlist candidates for vacancy", zap.String("course_id", course.CourseID))
		return nil, nil
	}

	s.mu.Lock()
	s.enrollLocked(top.StudentID, course.CourseID)
	course.CurrentEnrollment++
	s.mu.Unlock()
	s.markRegistered(course.CourseID, top.StudentID)

	s.logger.Info("vacancy filled",
		zap.String("course_id", course.CourseID),
		zap.String("student_id", top.StudentID),
		zap.Float64("score", top.Score),
	)

	return &models.AllocationResult{
		StudentID: top.StudentID,
		CourseID:  course.CourseID,
		Success:   true,
		Status:    models.StatusRegistered,
		Message:   "Auto-registered from waitlist!",
		Score:     top.Score,
	}, nil
}

// ProcessDropout removes an enrollment and backfills the seat from the
// waitlist. A nil result means either the student was not enrolled or no
// waiter was available; neither is an error.
func (s *AllocationService) ProcessDropout(ctx context.Context, studentID string, course *models.Course) (*models.AllocationResult, error) {
	s.mu.Lock()
	enrolled := s.courseEnrollments[course.CourseID]
	if _, ok := enrolled[studentID]; !ok {
		s.mu.Unlock()
		return nil, nil
	}
	delete(enrolled, studentID)
	delete(s.studentCourses[studentID], course.CourseID)
	course.CurrentEnrollment--
	if app := s.applications[course.CourseID][studentID]; app != nil {
		app.Status = models.StatusDropped
	}
	s.mu.Unlock()

	s.logger.Info("student dropped course",
		zap.String("student_id", studentID),
		zap.String("course_id", course.CourseID),
	)

	return s.FillVacancy(ctx, course)
}

// IsEnrolled reports whether the student currently holds a seat in the
// course.
func (s *AllocationService) IsEnrolled(studentID, courseID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.courseEnrollments[courseID][studentID]
	return ok
}

// EnrolledStudents returns the students enrolled in a course, sorted.
func (s *AllocationService) EnrolledStudents(courseID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.courseEnrollments[courseID])
}

// EnrolledCourses returns the courses a student is enrolled in, sorted.
func (s *AllocationService) EnrolledCourses(studentID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.studentCourses[studentID])
}

// CurrentEnrollment reads the course's enrollment counter under the
// enrollment lock. Seat grants mutate the counter holding the same
// lock, so every read outside it must come through here.
func (s *AllocationService) CurrentEnrollment(course *models.Course) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return course.CurrentEnrollment
}

// AvailableSeats reads the course's free-seat count under the
// enrollment lock.
func (s *AllocationService) AvailableSeats(course *models.Course) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return course.AvailableSeats()
}

func (s *AllocationService) hasVacancy(course *models.Course) bool {
	return s.AvailableSeats(course) > 0
}

// RecomputeScores rescores every tracked application and re-ranks the
// waitlist entries still pending. Returns the number of re-ranked
// entries. Useful after a weight change or to refresh stale time decay.
func (s *AllocationService) RecomputeScores(ctx context.Context, students map[string]*models.Student, courses map[string]*models.Course) (int, error) {
	s.mu.RLock()
	apps := make([]*models.CourseApplication, 0)
	for _, byStudent := range s.applications {
		for _, app := range byStudent {
			apps = append(apps, app)
		}
	}
	s.mu.RUnlock()

	sort.Slice(apps, func(i, j int) bool {
		if apps[i].CourseID != apps[j].CourseID {
			return apps[i].CourseID < apps[j].CourseID
		}
		return apps[i].StudentID < apps[j].StudentID
	})

	updated := s.scorer.RecomputeScores(apps, students, courses)

	reranked := 0
	for _, app := range updated {
		s.recordApplication(app)
		if err := s.waitlist.SaveApplication(ctx, app); err != nil {
			return reranked, err
		}

		if app.Status != models.StatusWaitlisted {
			continue
		}
		_, present, err := s.waitlist.Score(ctx, app.CourseID, app.StudentID)
		if err != nil {
			return reranked, err
		}
		if !present {
			continue
		}
		if err := s.waitlist.UpdateScore(ctx, app.CourseID, app.StudentID, app.CompositeScore); err != nil {
			return reranked, err
		}
		reranked++
	}

	return reranked, nil
}

// markRegistered flips the tracked application status after a seat is
// granted.
func (s *AllocationService) markRegistered(courseID, studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app := s.applications[courseID][studentID]; app != nil {
		app.Status = models.StatusRegistered
	}
}

// recordApplication tracks the latest application per (course, student).
func (s *AllocationService) recordApplication(app *models.CourseApplication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applications[app.CourseID] == nil {
		s.applications[app.CourseID] = make(map[string]*models.CourseApplication)
	}
	s.applications[app.CourseID][app.StudentID] = app
}

func (s *AllocationService) meetsPrerequisites(student *models.Student, course *models.Course) bool {
	for _, prereq := range course.Prerequisites {
		if !student.HasCompleted(prereq) {
			return false
		}
	}
	return true
}

// enrollLocked records an enrollment. Callers must hold s.mu.
func (s *AllocationService) enrollLocked(studentID, courseID string) {
	if s.courseEnrollments[courseID] == nil {
		s.courseEnrollments[courseID] = make(map[string]struct{})
	}
	if s.studentCourses[studentID] == nil {
		s.studentCourses[studentID] = make(map[string]struct{})
	}
	s.courseEnrollments[courseID][studentID] = struct{}{}
	s.studentCourses[studentID][courseID] = struct{}{}
}

func rejected(studentID, courseID, message string, score float64) *models.AllocationResult {
	return &models.AllocationResult{
		StudentID: studentID,
		CourseID:  courseID,
		Success:   false,
		Status:    models.StatusRejected,
		Message:   message,
		Score:     score,
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
