package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
)

// PreferenceRepository persists student course preference lists.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository constructs the repository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

type preferenceRow struct {
	StudentID string         `db:"student_id"`
	CourseIDs pq.StringArray `db:"course_ids"`
}

// GetByStudent returns the ordered preference list for one student.
func (r *PreferenceRepository) GetByStudent(ctx context.Context, studentID string) (*models.StudentCoursePreferences, error) {
	const query = `SELECT student_id, course_ids FROM student_preferences WHERE student_id = $1`
	var row preferenceRow
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		return nil, err
	}
	return &models.StudentCoursePreferences{StudentID: row.StudentID, CourseIDs: []string(row.CourseIDs)}, nil
}

// List returns every stored preference list.
func (r *PreferenceRepository) List(ctx context.Context) ([]*models.StudentCoursePreferences, error) {
	const query = `SELECT student_id, course_ids FROM student_preferences ORDER BY student_id`
	var rows []preferenceRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	prefs := make([]*models.StudentCoursePreferences, 0, len(rows))
	for _, row := range rows {
		prefs = append(prefs, &models.StudentCoursePreferences{StudentID: row.StudentID, CourseIDs: []string(row.CourseIDs)})
	}
	return prefs, nil
}

// Upsert creates or replaces a student's preference list.
func (r *PreferenceRepository) Upsert(ctx context.Context, prefs *models.StudentCoursePreferences) error {
	const query = `INSERT INTO student_preferences (student_id, course_ids)
		VALUES ($1, $2)
		ON CONFLICT (student_id) DO UPDATE
		SET course_ids = EXCLUDED.course_ids`
	if _, err := r.db.ExecContext(ctx, query, prefs.StudentID, pq.Array(prefs.CourseIDs)); err != nil {
		return fmt.Errorf("upsert student preferences: %w", err)
	}
	return nil
}
