package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
)

// StudentRepository persists student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

type studentRow struct {
	StudentID        string         `db:"student_id"`
	Name             string         `db:"name"`
	Email            string         `db:"email"`
	GPA              float64        `db:"gpa"`
	Year             int            `db:"year"`
	Interests        pq.StringArray `db:"interests"`
	CompletedCourses pq.StringArray `db:"completed_courses"`
}

func (r studentRow) toModel() *models.Student {
	return &models.Student{
		StudentID:        r.StudentID,
		Name:             r.Name,
		Email:            r.Email,
		GPA:              r.GPA,
		Year:             r.Year,
		Interests:        []string(r.Interests),
		CompletedCourses: []string(r.CompletedCourses),
	}
}

// GetByID returns one student profile.
func (r *StudentRepository) GetByID(ctx context.Context, studentID string) (*models.Student, error) {
	const query = `SELECT student_id, name, email, gpa, year, interests, completed_courses FROM students WHERE student_id = $1`
	var row studentRow
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// List returns every stored student profile.
func (r *StudentRepository) List(ctx context.Context) ([]*models.Student, error) {
	const query = `SELECT student_id, name, email, gpa, year, interests, completed_courses FROM students ORDER BY student_id`
	var rows []studentRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	students := make([]*models.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toModel())
	}
	return students, nil
}

// Upsert creates or replaces a student profile.
func (r *StudentRepository) Upsert(ctx context.Context, student *models.Student) error {
	const query = `INSERT INTO students (student_id, name, email, gpa, year, interests, completed_courses)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    gpa = EXCLUDED.gpa,
		    year = EXCLUDED.year,
		    interests = EXCLUDED.interests,
		    completed_courses = EXCLUDED.completed_courses`
	if _, err := r.db.ExecContext(ctx, query,
		student.StudentID,
		student.Name,
		student.Email,
		student.GPA,
		student.Year,
		pq.Array(student.Interests),
		pq.Array(student.CompletedCourses),
	); err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}
