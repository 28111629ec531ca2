package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
)

func TestCourseRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	opened := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"course_id", "name", "capacity", "current_enrollment", "prerequisites", "tags", "min_gpa", "preferred_years", "booking_state", "booking_opens_at"}).
		AddRow("ML301", "Machine Learning", 30, 12, "{CS101,CS201}", "{ml,ai}", 3.0, "{3,4}", "BOOKING_OPEN", opened)
	mock.ExpectQuery("SELECT course_id, name, capacity, current_enrollment, prerequisites, tags, min_gpa, preferred_years, booking_state, booking_opens_at FROM courses WHERE course_id").
		WithArgs("ML301").
		WillReturnRows(rows)

	course, err := repo.GetByID(context.Background(), "ML301")
	require.NoError(t, err)
	assert.Equal(t, 30, course.Capacity)
	assert.Equal(t, 12, course.CurrentEnrollment)
	assert.Equal(t, []int{3, 4}, course.PreferredYears)
	assert.Equal(t, models.BookingOpen, course.BookingState)
	require.NotNil(t, course.BookingOpensAt)
	assert.Equal(t, opened, *course.BookingOpensAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").
		WithArgs("ML301", "Machine Learning", 30, 0, sqlmock.AnyArg(), sqlmock.AnyArg(), 3.0, sqlmock.AnyArg(), "BOOKING_CLOSED", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.Course{
		CourseID:     "ML301",
		Name:         "Machine Learning",
		Capacity:     30,
		MinGPA:       3.0,
		BookingState: models.BookingClosed,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("UPDATE courses SET current_enrollment").
		WithArgs("ML301", 13).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateEnrollment(context.Background(), "ML301", 13))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepositoryRoundTrip(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPreferenceRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "course_ids"}).
		AddRow("S1", "{ML301,DB200}")
	mock.ExpectQuery("SELECT student_id, course_ids FROM student_preferences WHERE student_id").
		WithArgs("S1").
		WillReturnRows(rows)

	prefs, err := repo.GetByStudent(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ML301", "DB200"}, prefs.CourseIDs)

	mock.ExpectExec("INSERT INTO student_preferences").
		WithArgs("S1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), prefs))
	assert.NoError(t, mock.ExpectationsWereMet())
}
