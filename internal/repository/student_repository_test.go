package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "name", "email", "gpa", "year", "interests", "completed_courses"}).
		AddRow("S1", "Ada", "ada@example.edu", 3.9, 3, "{ai,ml}", "{CS101}")
	mock.ExpectQuery("SELECT student_id, name, email, gpa, year, interests, completed_courses FROM students WHERE student_id").
		WithArgs("S1").
		WillReturnRows(rows)

	student, err := repo.GetByID(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", student.Name)
	assert.Equal(t, []string{"ai", "ml"}, student.Interests)
	assert.Equal(t, []string{"CS101"}, student.CompletedCourses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "name", "email", "gpa", "year", "interests", "completed_courses"}).
		AddRow("S1", "Ada", "", 3.9, 3, "{}", "{}").
		AddRow("S2", "Grace", "", 3.5, 2, "{systems}", "{}")
	mock.ExpectQuery("SELECT student_id, name, email, gpa, year, interests, completed_courses FROM students ORDER BY student_id").
		WillReturnRows(rows)

	students, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "S2", students[1].StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs("S1", "Ada", "ada@example.edu", 3.9, 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.Student{
		StudentID: "S1",
		Name:      "Ada",
		Email:     "ada@example.edu",
		GPA:       3.9,
		Year:      3,
		Interests: []string{"ai"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
