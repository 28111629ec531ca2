package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
)

// CourseRepository persists course definitions.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

type courseRow struct {
	CourseID          string         `db:"course_id"`
	Name              string         `db:"name"`
	Capacity          int            `db:"capacity"`
	CurrentEnrollment int            `db:"current_enrollment"`
	Prerequisites     pq.StringArray `db:"prerequisites"`
	Tags              pq.StringArray `db:"tags"`
	MinGPA            float64        `db:"min_gpa"`
	PreferredYears    pq.Int64Array  `db:"preferred_years"`
	BookingState      string         `db:"booking_state"`
	BookingOpensAt    *time.Time     `db:"booking_opens_at"`
}

func (r courseRow) toModel() *models.Course {
	years := make([]int, 0, len(r.PreferredYears))
	for _, y := range r.PreferredYears {
		years = append(years, int(y))
	}
	return &models.Course{
		CourseID:          r.CourseID,
		Name:              r.Name,
		Capacity:          r.Capacity,
		CurrentEnrollment: r.CurrentEnrollment,
		Prerequisites:     []string(r.Prerequisites),
		Tags:              []string(r.Tags),
		MinGPA:            r.MinGPA,
		PreferredYears:    years,
		BookingState:      models.CourseBookingState(r.BookingState),
		BookingOpensAt:    r.BookingOpensAt,
	}
}

// GetByID returns one course definition.
func (r *CourseRepository) GetByID(ctx context.Context, courseID string) (*models.Course, error) {
	const query = `SELECT course_id, name, capacity, current_enrollment, prerequisites, tags, min_gpa, preferred_years, booking_state, booking_opens_at FROM courses WHERE course_id = $1`
	var row courseRow
	if err := r.db.GetContext(ctx, &row, query, courseID); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// List returns every stored course definition.
func (r *CourseRepository) List(ctx context.Context) ([]*models.Course, error) {
	const query = `SELECT course_id, name, capacity, current_enrollment, prerequisites, tags, min_gpa, preferred_years, booking_state, booking_opens_at FROM courses ORDER BY course_id`
	var rows []courseRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	courses := make([]*models.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toModel())
	}
	return courses, nil
}

// Upsert creates or replaces a course definition.
func (r *CourseRepository) Upsert(ctx context.Context, course *models.Course) error {
	years := make(pq.Int64Array, 0, len(course.PreferredYears))
	for _, y := range course.PreferredYears {
		years = append(years, int64(y))
	}

	const query = `INSERT INTO courses (course_id, name, capacity, current_enrollment, prerequisites, tags, min_gpa, preferred_years, booking_state, booking_opens_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (course_id) DO UPDATE
		SET name = EXCLUDED.name,
		    capacity = EXCLUDED.capacity,
		    current_enrollment = EXCLUDED.current_enrollment,
		    prerequisites = EXCLUDED.prerequisites,
		    tags = EXCLUDED.tags,
		    min_gpa = EXCLUDED.min_gpa,
		    preferred_years = EXCLUDED.preferred_years,
		    booking_state = EXCLUDED.booking_state,
		    booking_opens_at = EXCLUDED.booking_opens_at`
	if _, err := r.db.ExecContext(ctx, query,
		course.CourseID,
		course.Name,
		course.Capacity,
		course.CurrentEnrollment,
		pq.Array(course.Prerequisites),
		pq.Array(course.Tags),
		course.MinGPA,
		years,
		string(course.BookingState),
		course.BookingOpensAt,
	); err != nil {
		return fmt.Errorf("upsert course: %w", err)
	}
	return nil
}

// UpdateEnrollment stores the current enrollment counter for a course.
func (r *CourseRepository) UpdateEnrollment(ctx context.Context, courseID string, enrollment int) error {
	const query = `UPDATE courses SET current_enrollment = $2 WHERE course_id = $1`
	if _, err := r.db.ExecContext(ctx, query, courseID, enrollment); err != nil {
		return fmt.Errorf("update course enrollment: %w", err)
	}
	return nil
}
