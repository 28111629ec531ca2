package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/dto"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/repository"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/config"
	appErrors "github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/errors"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/jobs"
)

type studentStore interface {
	Upsert(ctx context.Context, student *models.Student) error
	List(ctx context.Context) ([]*models.Student, error)
}

type courseStore interface {
	Upsert(ctx context.Context, course *models.Course) error
	List(ctx context.Context) ([]*models.Course, error)
}

type preferenceStore interface {
	Upsert(ctx context.Context, prefs *models.StudentCoursePreferences) error
	List(ctx context.Context) ([]*models.StudentCoursePreferences, error)
}

// RegistrationService is the orchestrator the outside world talks to. It
// owns the entity registries, drives the allocation engine, manages course
// lifecycle transitions and runs the periodic batch worker.
type RegistrationService struct {
	scorer    *ScoringService
	allocator *AllocationService
	waitlist  repository.WaitlistStore
	batchCfg  config.BatchConfig
	validator *validator.Validate
	logger    *zap.Logger

	// Optional persistence. Nil stores mean memory-only registries.
	studentRepo studentStore
	courseRepo  courseStore
	prefRepo    preferenceStore

	metrics *MetricsService

	mu          sync.RWMutex
	students    map[string]*models.Student
	courses     map[string]*models.Course
	preferences map[string]*models.StudentCoursePreferences

	batchMu sync.Mutex
	batch   *jobs.Periodic
}

// NewRegistrationService wires the orchestrator.
func NewRegistrationService(
	scorer *ScoringService,
	allocator *AllocationService,
	waitlist repository.WaitlistStore,
	batchCfg config.BatchConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchCfg.Interval <= 0 {
		batchCfg.Interval = 5 * time.Minute
	}

	return &RegistrationService{
		scorer:      scorer,
		allocator:   allocator,
		waitlist:    waitlist,
		batchCfg:    batchCfg,
		validator:   validate,
		logger:      logger,
		students:    make(map[string]*models.Student),
		courses:     make(map[string]*models.Course),
		preferences: make(map[string]*models.StudentCoursePreferences),
	}
}

// WithPersistence attaches entity stores; registries hydrate from and
// write through to them.
func (s *RegistrationService) WithPersistence(students studentStore, courses courseStore, prefs preferenceStore) *RegistrationService {
	s.studentRepo = students
	s.courseRepo = courses
	s.prefRepo = prefs
	return s
}

// WithMetrics attaches domain instrumentation.
func (s *RegistrationService) WithMetrics(metrics *MetricsService) *RegistrationService {
	s.metrics = metrics
	return s
}

// Hydrate loads all persisted entities into the in-memory registries.
func (s *RegistrationService) Hydrate(ctx context.Context) error {
	if s.studentRepo == nil {
		return nil
	}

	students, err := s.studentRepo.List(ctx)
	if err != nil {
		return err
	}
	courses, err := s.courseRepo.List(ctx)
	if err != nil {
		return err
	}
	prefs, err := s.prefRepo.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, student := range students {
		s.students[student.StudentID] = student
	}
	for _, course := range courses {
		s.courses[course.CourseID] = course
		if course.BookingOpensAt != nil {
			s.scorer.SetBookingOpensAt(course.CourseID, *course.BookingOpensAt)
		}
	}
	for _, pref := range prefs {
		s.preferences[pref.StudentID] = pref
	}
	s.mu.Unlock()

	s.logger.Info("registries hydrated",
		zap.Int("students", len(students)),
		zap.Int("courses", len(courses)),
		zap.Int("preferences", len(prefs)),
	)
	return nil
}

// AddStudent registers or updates a student.
func (s *RegistrationService) AddStudent(ctx context.Context, req dto.AddStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student := &models.Student{
		StudentID:        req.StudentID,
		Name:             req.Name,
		Email:            req.Email,
		GPA:              req.GPA,
		Year:             req.Year,
		Interests:        req.Interests,
		CompletedCourses: req.CompletedCourses,
	}

	s.mu.Lock()
	s.students[student.StudentID] = student
	s.mu.Unlock()

	if s.studentRepo != nil {
		if err := s.studentRepo.Upsert(ctx, student); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("student added", zap.String("student_id", student.StudentID))
	return student, nil
}

// AddCourse registers or updates a course. New courses start with booking
// closed.
func (s *RegistrationService) AddCourse(ctx context.Context, req dto.AddCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		CourseID:       req.CourseID,
		Name:           req.Name,
		Capacity:       req.Capacity,
		Prerequisites:  req.Prerequisites,
		Tags:           req.Tags,
		MinGPA:         req.MinGPA,
		PreferredYears: req.PreferredYears,
		BookingState:   models.BookingClosed,
	}

	s.mu.Lock()
	if existing, ok := s.courses[course.CourseID]; ok {
		course.CurrentEnrollment = s.allocator.CurrentEnrollment(existing)
		course.BookingState = existing.BookingState
		course.BookingOpensAt = existing.BookingOpensAt
	}
	s.courses[course.CourseID] = course
	s.mu.Unlock()

	if course.BookingOpensAt != nil {
		s.scorer.SetBookingOpensAt(course.CourseID, *course.BookingOpensAt)
	}

	if s.courseRepo != nil {
		if err := s.courseRepo.Upsert(ctx, course); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("course added", zap.String("course_id", course.CourseID))
	return course, nil
}

// SetPreferences replaces a student's ordered course preference list.
func (s *RegistrationService) SetPreferences(ctx context.Context, req dto.SetPreferencesRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preferences payload")
	}

	prefs := &models.StudentCoursePreferences{StudentID: req.StudentID, CourseIDs: req.CourseIDs}

	s.mu.Lock()
	s.preferences[prefs.StudentID] = prefs
	s.mu.Unlock()

	if s.prefRepo != nil {
		if err := s.prefRepo.Upsert(ctx, prefs); err != nil {
			return err
		}
	}

	s.logger.Debug("preferences set", zap.String("student_id", prefs.StudentID), zap.Int("courses", len(prefs.CourseIDs)))
	return nil
}

// GetStudent looks up one student.
func (s *RegistrationService) GetStudent(studentID string) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.students[studentID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return student, nil
}

// GetCourse looks up one course.
func (s *RegistrationService) GetCourse(courseID string) (*models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	course, ok := s.courses[courseID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}

// Apply submits one application. Unknown entities reject rather than
// error; the outcome is always an AllocationResult.
func (s *RegistrationService) Apply(ctx context.Context, studentID, courseID string, appliedAt time.Time) (*models.AllocationResult, error) {
	s.mu.RLock()
	student, okStudent := s.students[studentID]
	course, okCourse := s.courses[courseID]
	prefs := s.preferences[studentID]
	s.mu.RUnlock()

	if !okStudent {
		return rejected(studentID, courseID, "Student not found", 0), nil
	}
	if !okCourse {
		return rejected(studentID, courseID, "Course not found", 0), nil
	}
	if prefs == nil {
		prefs = &models.StudentCoursePreferences{StudentID: studentID, CourseIDs: []string{courseID}}
	}

	result, err := s.allocator.Apply(ctx, student, course, prefs, appliedAt)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordApplication(result.Status)
	return result, nil
}

// ApplyAll applies to every course in the student's preference list, in
// order.
func (s *RegistrationService) ApplyAll(ctx context.Context, studentID string, appliedAt time.Time) ([]*models.AllocationResult, error) {
	s.mu.RLock()
	prefs := s.preferences[studentID]
	s.mu.RUnlock()

	if prefs == nil {
		return []*models.AllocationResult{rejected(studentID, "", "No preferences set for student", 0)}, nil
	}

	results := make([]*models.AllocationResult, 0, len(prefs.CourseIDs))
	for _, courseID := range prefs.CourseIDs {
		result, err := s.Apply(ctx, studentID, courseID, appliedAt)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// ManualRegister attempts an immediate enrollment.
func (s *RegistrationService) ManualRegister(ctx context.Context, studentID, courseID string) (*models.AllocationResult, error) {
	s.mu.RLock()
	student, okStudent := s.students[studentID]
	course, okCourse := s.courses[courseID]
	s.mu.RUnlock()

	if !okStudent {
		return rejected(studentID, courseID, "Student not found", 0), nil
	}
	if !okCourse {
		return rejected(studentID, courseID, "Course not found", 0), nil
	}

	return s.allocator.ManualRegister(ctx, student, course)
}

// ProcessDropout drops the student and backfills the seat. A nil result
// means no waiter filled the vacancy.
func (s *RegistrationService) ProcessDropout(ctx context.Context, studentID, courseID string) (*models.AllocationResult, error) {
	s.mu.RLock()
	course, ok := s.courses[courseID]
	s.mu.RUnlock()

	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	result, err := s.allocator.ProcessDropout(ctx, studentID, course)
	if err != nil {
		return nil, err
	}
	if result != nil {
		s.metrics.RecordVacancyFill()
		s.logger.Info("vacancy backfilled",
			zap.String("course_id", courseID),
			zap.String("student_id", result.StudentID),
		)
	}
	return result, nil
}

// RunAllocation runs one batch over the named courses, or all courses
// when none are given.
func (s *RegistrationService) RunAllocation(ctx context.Context, courseIDs []string) (map[string][]*models.AllocationResult, *dto.BatchRunSummary, error) {
	s.mu.RLock()
	var courses []*models.Course
	if len(courseIDs) > 0 {
		courses = make([]*models.Course, 0, len(courseIDs))
		for _, id := range courseIDs {
			if course, ok := s.courses[id]; ok {
				courses = append(courses, course)
			}
		}
	} else {
		courses = make([]*models.Course, 0, len(s.courses))
		for _, course := range s.courses {
			courses = append(courses, course)
		}
	}

	students := make(map[string]*models.Student, len(s.students))
	for id, student := range s.students {
		students[id] = student
	}
	prefs := make(map[string]*models.StudentCoursePreferences, len(s.preferences))
	for id, pref := range s.preferences {
		prefs[id] = pref
	}
	s.mu.RUnlock()

	s.logger.Info("running batch allocation", zap.Int("courses", len(courses)))

	start := time.Now()
	results, err := s.allocator.RunBatchAllocation(ctx, courses, prefs, students)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.RecordBatchRun(s.allocator.cfg.Strategy, time.Since(start))

	summary := &dto.BatchRunSummary{
		StudentsAllocated: len(results),
		CoursesConsidered: len(courses),
	}
	s.logger.Info("batch allocation complete",
		zap.Int("students_allocated", summary.StudentsAllocated),
		zap.Int("courses_considered", summary.CoursesConsidered),
	)
	return results, summary, nil
}

// RecomputeScores rescores all tracked applications against the current
// registries and re-ranks pending waitlist entries.
func (s *RegistrationService) RecomputeScores(ctx context.Context) (int, error) {
	s.mu.RLock()
	students := make(map[string]*models.Student, len(s.students))
	for id, student := range s.students {
		students[id] = student
	}
	courses := make(map[string]*models.Course, len(s.courses))
	for id, course := range s.courses {
		courses[id] = course
	}
	s.mu.RUnlock()

	return s.allocator.RecomputeScores(ctx, students, courses)
}

// StartAutoBatch launches the periodic batch worker. Calling it while a
// worker runs is a no-op.
func (s *RegistrationService) StartAutoBatch(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	if s.batch != nil {
		s.logger.Warn("auto-batch already running")
		return
	}

	s.batch = jobs.NewPeriodic("batch-allocation", func(ctx context.Context) error {
		_, _, err := s.RunAllocation(ctx, nil)
		return err
	}, jobs.PeriodicConfig{Interval: s.batchCfg.Interval, Logger: s.logger})
	s.batch.Start(ctx)
}

// StopAutoBatch stops the periodic batch worker and waits for the current
// iteration to finish.
func (s *RegistrationService) StopAutoBatch() {
	s.batchMu.Lock()
	batch := s.batch
	s.batch = nil
	s.batchMu.Unlock()

	if batch != nil {
		batch.Stop()
	}
}

// WaitlistStatus reports a student's standing on one course waitlist.
func (s *RegistrationService) WaitlistStatus(ctx context.Context, studentID, courseID string) (*dto.WaitlistStatus, error) {
	position, err := s.waitlist.Position(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}
	score, present, err := s.waitlist.Score(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}
	size, err := s.waitlist.Size(ctx, courseID)
	if err != nil {
		return nil, err
	}
	s.metrics.SetWaitlistSize(courseID, size)

	status := &dto.WaitlistStatus{
		StudentID:    studentID,
		CourseID:     courseID,
		Position:     position,
		WaitlistSize: size,
		IsEnrolled:   s.allocator.IsEnrolled(studentID, courseID),
	}
	if present {
		status.Score = &score
	}

	s.mu.RLock()
	course := s.courses[courseID]
	s.mu.RUnlock()
	if course != nil {
		status.AvailableSeats = s.allocator.AvailableSeats(course)
	}

	return status, nil
}

// StudentStatus aggregates enrollments, waitlist positions and
// preferences for one student.
func (s *RegistrationService) StudentStatus(ctx context.Context, studentID string) (*dto.StudentStatus, error) {
	enrolled := s.allocator.EnrolledCourses(studentID)
	enrolledSet := make(map[string]struct{}, len(enrolled))
	for _, courseID := range enrolled {
		enrolledSet[courseID] = struct{}{}
	}

	s.mu.RLock()
	prefs := s.preferences[studentID]
	s.mu.RUnlock()

	positions := make(map[string]int)
	var prefIDs []string
	if prefs != nil {
		prefIDs = prefs.CourseIDs
		for _, courseID := range prefs.CourseIDs {
			if _, isEnrolled := enrolledSet[courseID]; isEnrolled {
				continue
			}
			position, err := s.waitlist.Position(ctx, courseID, studentID)
			if err != nil {
				return nil, err
			}
			if position > 0 {
				positions[courseID] = position
			}
		}
	}

	return &dto.StudentStatus{
		StudentID:         studentID,
		EnrolledCourses:   enrolled,
		WaitlistPositions: positions,
		Preferences:       prefIDs,
	}, nil
}

// CourseStatus aggregates enrollment and waitlist state for one course,
// including the top ten waitlisted students.
func (s *RegistrationService) CourseStatus(ctx context.Context, courseID string) (*dto.CourseStatus, error) {
	s.mu.RLock()
	course, ok := s.courses[courseID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	size, err := s.waitlist.Size(ctx, courseID)
	if err != nil {
		return nil, err
	}
	top, err := s.waitlist.TopK(ctx, courseID, 10)
	if err != nil {
		return nil, err
	}

	return &dto.CourseStatus{
		CourseID:          course.CourseID,
		CourseName:        course.Name,
		Capacity:          course.Capacity,
		CurrentEnrollment: s.allocator.CurrentEnrollment(course),
		AvailableSeats:    s.allocator.AvailableSeats(course),
		BookingState:      string(course.BookingState),
		WaitlistSize:      size,
		TopWaitlisted:     top,
		EnrolledStudents:  s.allocator.EnrolledStudents(courseID),
	}, nil
}

// FullWaitlist returns every waitlist entry for a course in rank order.
func (s *RegistrationService) FullWaitlist(ctx context.Context, courseID string) ([]repository.WaitlistEntry, error) {
	size, err := s.waitlist.Size(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	return s.waitlist.TopK(ctx, courseID, size)
}

// OpenBooking transitions a course to BOOKING_OPEN and records the
// booking-open instant for time scoring.
func (s *RegistrationService) OpenBooking(ctx context.Context, courseID string) bool {
	s.mu.Lock()
	course, ok := s.courses[courseID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	now := time.Now().UTC()
	course.BookingState = models.BookingOpen
	course.BookingOpensAt = &now
	s.mu.Unlock()

	s.scorer.SetBookingOpensAt(courseID, now)
	s.persistCourse(ctx, course)
	s.logger.Info("booking opened", zap.String("course_id", courseID))
	return true
}

// CloseBooking transitions a course to COURSE_STARTED.
func (s *RegistrationService) CloseBooking(ctx context.Context, courseID string) bool {
	return s.transition(ctx, courseID, models.CourseStarted, "booking closed")
}

// CompleteCourse transitions a course to COURSE_COMPLETED. Later applies
// are rejected.
func (s *RegistrationService) CompleteCourse(ctx context.Context, courseID string) bool {
	return s.transition(ctx, courseID, models.CourseCompleted, "course completed")
}

func (s *RegistrationService) transition(ctx context.Context, courseID string, state models.CourseBookingState, event string) bool {
	s.mu.Lock()
	course, ok := s.courses[courseID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	course.BookingState = state
	s.mu.Unlock()

	s.persistCourse(ctx, course)
	s.logger.Info(event, zap.String("course_id", courseID))
	return true
}

func (s *RegistrationService) persistCourse(ctx context.Context, course *models.Course) {
	if s.courseRepo == nil {
		return
	}
	if err := s.courseRepo.Upsert(ctx, course); err != nil {
		s.logger.Warn("persist course failed", zap.String("course_id", course.CourseID), zap.Error(err))
	}
}
