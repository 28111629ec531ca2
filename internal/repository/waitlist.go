package repository

import (
	"context"
	"time"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
)

// WaitlistEntry is one ranked member of a course waitlist.
type WaitlistEntry struct {
	StudentID string  `json:"student_id"`
	Score     float64 `json:"score"`
}

// WaitlistStore maintains one priority-ordered waitlist per course plus the
// scored application records behind the entries. Positions are 1-based and
// ordered by descending score. An advisory per-course lock guards
// check-then-act sequences such as vacancy filling.
type WaitlistStore interface {
	// Add inserts or updates the student on the course waitlist.
	Add(ctx context.Context, courseID, studentID string, score float64) error
	// Remove deletes the student from the waitlist. Removing an absent
	// student is not an error.
	Remove(ctx context.Context, courseID, studentID string) error
	// UpdateScore re-ranks an existing entry. Absent students are left
	// absent.
	UpdateScore(ctx context.Context, courseID, studentID string, score float64) error
	// Score returns the student's current score and whether they are
	// present.
	Score(ctx context.Context, courseID, studentID string) (float64, bool, error)
	// Position returns the student's 1-based rank, or 0 when absent.
	Position(ctx context.Context, courseID, studentID string) (int, error)
	// TopK returns up to k entries in rank order.
	TopK(ctx context.Context, courseID string, k int) ([]WaitlistEntry, error)
	// PopTop atomically removes and returns the best-ranked entry, or nil
	// when the waitlist is empty.
	PopTop(ctx context.Context, courseID string) (*WaitlistEntry, error)
	// Size returns the number of waitlisted students.
	Size(ctx context.Context, courseID string) (int, error)

	// SaveApplication persists a scored application record.
	SaveApplication(ctx context.Context, app *models.CourseApplication) error
	// Application loads a previously saved record. Returns ErrNotFound
	// when no record exists.
	Application(ctx context.Context, applicationID string) (*models.CourseApplication, error)

	// AcquireLock takes the per-course advisory lock. Returns false when
	// another holder has it. The lock expires after ttl regardless of
	// release.
	AcquireLock(ctx context.Context, courseID string, ttl time.Duration) (bool, error)
	// ReleaseLock drops the per-course advisory lock.
	ReleaseLock(ctx context.Context, courseID string) error
}
