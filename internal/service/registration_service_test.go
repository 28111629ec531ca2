package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/dto"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/repository"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/config"
	appErrors "github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/errors"
)

func newTestRegistrationService(t *testing.T) (*RegistrationService, *repository.MemoryWaitlistStore) {
	store := repository.NewMemoryWaitlistStore()
	scorer := newTestScorer(t)
	allocator := NewAllocationService(store, scorer, config.AllocationConfig{Strategy: config.StrategyBalanced}, time.Second, nil)
	svc := NewRegistrationService(scorer, allocator, store, config.BatchConfig{Interval: 50 * time.Millisecond}, nil, nil)
	return svc, store
}

func addStudent(t *testing.T, svc *RegistrationService, id string, gpa float64) {
	_, err := svc.AddStudent(context.Background(), dto.AddStudentRequest{
		StudentID: id,
		Name:      "Student " + id,
		GPA:       gpa,
		Year:      2,
	})
	require.NoError(t, err)
}

func addCourse(t *testing.T, svc *RegistrationService, id string, capacity int) {
	_, err := svc.AddCourse(context.Background(), dto.AddCourseRequest{
		CourseID: id,
		Name:     "Course " + id,
		Capacity: capacity,
	})
	require.NoError(t, err)
}

func TestAddStudentValidation(t *testing.T) {
	svc, _ := newTestRegistrationService(t)

	_, err := svc.AddStudent(context.Background(), dto.AddStudentRequest{Name: "No ID", Year: 2})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.AddStudent(context.Background(), dto.AddStudentRequest{StudentID: "S1", Name: "Bad GPA", GPA: 4.5, Year: 2})
	require.Error(t, err)
}

func TestAddCoursePreservesLifecycleOnUpdate(t *testing.T) {
	svc, _ := newTestRegistrationService(t)
	ctx := context.Background()

	addCourse(t, svc, "C1", 10)

	course, err := svc.GetCourse("C1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingClosed, course.BookingState)

	require.True(t, svc.OpenBooking(ctx, "C1"))

	// Re-registering the course must not reset its state or enrollment.
	_, err = svc.AddCourse(ctx, dto.AddCourseRequest{CourseID: "C1", Name: "Renamed", Capacity: 20})
	require.NoError(t, err)

	course, err = svc.GetCourse("C1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingOpen, course.BookingState)
	assert.NotNil(t, course.BookingOpensAt)
	assert.Equal(t, 20, course.Capacity)
	assert.Equal(t, "Renamed", course.Name)
}

func TestGetUnknownEntities(t *testing.T) {
	svc, _ := newTestRegistrationService(t)

	_, err := svc.GetStudent("ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.GetCourse("ghost")
	require.Error(t, err)
}

func TestApplyUnknownEntitiesRejectWithoutError(t *testing.T) {
	svc, _ := newTestRegistrationService(t)
	ctx := context.Background()

	result, err := svc.Apply(ctx, "ghost", "C1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, result.Status)
	assert.Equal(t, "Student not found", result.Message)

	addStudent(t, svc, "S1", 3.0)
	result, err = svc.Apply(ctx, "S1", "ghost", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, result.Status)
	assert.Equal(t, "Course not found", result.Message)
}

func TestApplyWaitlistsAgainstOpenCourse(t *testing.T) {
	svc, store := newTestRegistrationService(t)
	ctx := context.Background()

	addStudent(t, svc, "S1", 3.4)
	addCourse(t, svc, "C1", 5)
	require.True(t, svc.OpenBooking(ctx, "C1"))

	result, err := svc.Apply(ctx, "S1", "C1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitlisted, result.Status)
	assert.Equal(t, 1, result.WaitlistPosition)
	assert.Greater(t, result.Score, 0.0)

	size, err := store.Size(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestApplyAllFollowsPreferenceOrder(t *testing.T) {
	svc, _ := newTestRegistrationService(t)
	ctx := context.Background()

	addStudent(t, svc, "S1", 3.4)
	addCourse(t, svc, "C1", 5)
	addCourse(t, svc, "C2", 5)
	require.NoError(t, svc.SetPreferences(ctx, dto.SetPreferencesRequest{StudentID: "S1", CourseIDs: []string{"C2", "C1"}}))

	results, err := svc.ApplyAll(ctx, "S1", time.Now())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "C2", results[0].CourseID)
	assert.Equal(t, "C1", results[1].CourseID)
}

func TestApplyAllWithoutPreferences(t *testing.T) {
	svc, _ := newTestRegistrationService(t)

	addStudent(t, svc, "S1", 3.4)
	results, err := svc.ApplyAll(context.Background(), "S1", time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusRejected, results[0].Status)
	assert.Equal(t, "No preferences set for student", results[0].Message)
}

func TestEndToEndAllocationAndDropout(t *testing.T) {
	svc, _ := newTestRegistrationService(t)
	ctx := context.Background()

	addCourse(t, svc, "C1", 1)
	require.True(t, svc.OpenBooking(ctx, "C1"))

	addStudent(t, svc, "S1", 3.8)
	addStudent(t, svc, "S2", 2.8)

	appliedAt := time.Now()
	for _, id := range []string{"S1", "S2"} {
		result, err := svc.Apply(ctx, id, "C1", appliedAt)
		require.NoError(t, err)
		require.Equal(t, models.StatusWaitlisted, result.Status)
	}

	results, summary, err := svc.RunAllocation(ctx, nil)
	require.NoError(t, err)
	require.Len(t, results["S1"], 1)
	assert.Equal(t, models.StatusRegistered, results["S1"][0].Status)
	require.Len(t, results["S2"], 1)
	assert.Equal(t, models.StatusWaitlisted, results["S2"][0].Status)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.StudentsAllocated)
	assert.Equal(t, 1, summary.CoursesConsidered)

	// S1 drops; S2 backfills from the waitlist.
	filled, err := svc.ProcessDropout(ctx, "S1", "C1")
	require.NoError(t, err)
	require.NotNil(t, filled)
	assert.Equal(t, "S2", filled.StudentID)
	assert.Equal(t, models.StatusRegistered, filled.Status)

	status, err := svc.StudentStatus(ctx, "S2")
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, status.EnrolledCourses)
}

func TestProcessDropoutUnknownCourse(t *testing.T) {
	svc, _ := newTestRegistrationService(t)

	_, err := svc.ProcessDropout(context.Background(), "S1", "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRunAllocationScopedToCourses(t *testing.T) {
	svc, store := newTestRegistrationService(t)
	ctx := context.Background()

	addCourse(t, svc, "C1", 5)
	addCourse(t, svc, "C2", 5)
	require.True(t, svc.OpenBooking(ctx, "C1"))
	require.True(t, svc.OpenBooking(ctx, "C2"))

	addStudent(t, svc, "S1", 3.4)
	_, err := svc.Apply(ctx, "S1", "C1", time.Now())
	require.NoError(t, err)
	_, err = svc.Apply(ctx, "S1", "C2", time.Now())
	require.NoError(t, err)

	results, summary, err := svc.RunAllocation(ctx, []string{"C2"})
	require.NoError(t, err)
	require.Len(t, results["S1"], 1)
	assert.Equal(t, "C2", results["S1"][0].CourseID)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.CoursesConsidered)

	// The out-of-scope waitlist is untouched.
	size, err := store.Size(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestWaitlistStatusReportsPositionAndScore(t *testing.T) {
	svc, _ := newTestRegistrationService(t)
	ctx := context.Background()

	addCourse(t, svc, "C1", 5)
	require.True(t, svc.OpenBooking(ctx, "C1"))
	addStudent(t, svc, "S1", 3.4)

	_, err := svc.Apply(ctx, "S1", "C1", time.Now())
	require.NoError(t, err)

	status, err := svc.WaitlistStatus(ctx, "S1", "C1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Position)
	assert.Equal(t, 1, status.WaitlistSize)
	require.NotNil(t, status.Score)
	assert.Greater(t, *status.Score, 0.0)
	assert.False(t, status.IsEnrolled)
	assert.Equal(t, 5, status.AvailableSeats)

	// A student not on the waitlist reports position 0 and no score.
	status, err = svc.WaitlistStatus(ctx, "ghost", "C1")
	require.NoError(t, err)
	assert.Zero(t, status.Position)
	assert.Nil(t, status.Score)
}

func TestCourseStatusAggregates(t *testing.T) {
	svc, _ := newTestRegistrationService(t)
	ctx := context.Background()

	addCourse(t, svc, "C1", 1)
	require.True(t, svc.OpenBooking(ctx, "C1"))
	addStudent(t, svc, "S1", 3.8)
	addStudent(t, svc, "S2", 2.9)

	for _, id := range []string{"S1", "S2"} {
		_, err := svc.Apply(ctx, id, "C1", time.Now())
		require.NoError(t, err)
	}
	_, _, err := svc.RunAllocation(ctx, nil)
	require.NoError(t, err)

	status, err := svc.CourseStatus(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.CurrentEnrollment)
	assert.Zero(t, status.AvailableSeats)
	assert.Equal(t, string(models.BookingOpen), status.BookingState)
	assert.Equal(t, 1, status.WaitlistSize)
	require.Len(t, status.TopWaitlisted, 1)
	assert.Equal(t, "S2", status.TopWaitlisted[0].StudentID)
	assert.Equal(t, []string{"S1"}, status.EnrolledStudents)

	_, err = svc.CourseStatus(ctx, "ghost")
	require.Error(t, err)
}

func TestLifecycleTransitions(t *testing.T) {
	svc, _ := newTestRegistrationService(t)
	ctx := context.Background()

	addCourse(t, svc, "C1", 5)

	assert.False(t, svc.OpenBooking(ctx, "ghost"))
	assert.True(t, svc.OpenBooking(ctx, "C1"))

	course, err := svc.GetCourse("C1")
	require.NoError(t, err)
	require.NotNil(t, course.BookingOpensAt)

	openedAt, known := svc.scorer.BookingOpensAt("C1")
	assert.True(t, known)
	assert.Equal(t, *course.BookingOpensAt, openedAt)

	assert.True(t, svc.CloseBooking(ctx, "C1"))
	course, _ = svc.GetCourse("C1")
	assert.Equal(t, models.CourseStarted, course.BookingState)

	assert.True(t, svc.CompleteCourse(ctx, "C1"))
	course, _ = svc.GetCourse("C1")
	assert.Equal(t, models.CourseCompleted, course.BookingState)

	// Completed courses reject new applications.
	addStudent(t, svc, "S1", 3.4)
	result, err := svc.Apply(ctx, "S1", "C1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, result.Status)
}

func TestRecomputeScoresRerankWaitlist(t *testing.T) {
	svc, store := newTestRegistrationService(t)
	ctx := context.Background()

	addCourse(t, svc, "C1", 1)
	require.True(t, svc.OpenBooking(ctx, "C1"))

	addStudent(t, svc, "S1", 3.0)
	addStudent(t, svc, "S2", 3.2)

	appliedAt := time.Now()
	for _, id := range []string{"S1", "S2"} {
		_, err := svc.Apply(ctx, id, "C1", appliedAt)
		require.NoError(t, err)
	}

	pos, err := store.Position(ctx, "C1", "S2")
	require.NoError(t, err)
	require.Equal(t, 1, pos)

	// S1's profile improves past S2; recompute flips the ranking.
	addStudent(t, svc, "S1", 4.0)
	reranked, err := svc.RecomputeScores(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, reranked)

	pos, err = store.Position(ctx, "C1", "S1")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestAutoBatchStartStop(t *testing.T) {
	svc, _ := newTestRegistrationService(t)
	ctx := context.Background()

	addCourse(t, svc, "C1", 5)
	require.True(t, svc.OpenBooking(ctx, "C1"))
	addStudent(t, svc, "S1", 3.4)
	_, err := svc.Apply(ctx, "S1", "C1", time.Now())
	require.NoError(t, err)

	svc.StartAutoBatch(ctx)
	svc.StartAutoBatch(ctx) // second start is a no-op

	assert.Eventually(t, func() bool {
		status, err := svc.StudentStatus(ctx, "S1")
		return err == nil && len(status.EnrolledCourses) == 1
	}, 2*time.Second, 20*time.Millisecond)

	svc.StopAutoBatch()
	svc.StopAutoBatch() // idempotent

	// The worker can be restarted after a stop.
	svc.StartAutoBatch(ctx)
	svc.StopAutoBatch()
}
