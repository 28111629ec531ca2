package models

import (
	"math"
	"time"
)

// CourseBookingState represents the registration lifecycle of a course.
type CourseBookingState string

// Course lifecycle states.
const (
	BookingClosed   CourseBookingState = "BOOKING_CLOSED"
	BookingOpen     CourseBookingState = "BOOKING_OPEN"
	CourseStarted   CourseBookingState = "COURSE_STARTED"
	CourseCompleted CourseBookingState = "COURSE_COMPLETED"
)

// Course is a registrable offering with capacity-bounded enrollment.
// CurrentEnrollment is mutated only under the course lock or during a batch
// allocation pass.
type Course struct {
	CourseID          string             `db:"course_id" json:"course_id"`
	Name              string             `db:"name" json:"name"`
	Capacity          int                `db:"capacity" json:"capacity"`
	CurrentEnrollment int                `db:"current_enrollment" json:"current_enrollment"`
	Prerequisites     []string           `db:"-" json:"prerequisites"`
	Tags              []string           `db:"-" json:"tags"`
	MinGPA            float64            `db:"min_gpa" json:"min_gpa"`
	PreferredYears    []int              `db:"-" json:"preferred_years"`
	BookingState      CourseBookingState `db:"booking_state" json:"booking_state"`
	BookingOpensAt    *time.Time         `db:"booking_opens_at" json:"booking_opens_at,omitempty"`
}

// AvailableSeats returns the number of unfilled seats.
func (c *Course) AvailableSeats() int {
	seats := c.Capacity - c.CurrentEnrollment
	if seats < 0 {
		return 0
	}
	return seats
}

// HasVacancy reports whether at least one seat is free.
func (c *Course) HasVacancy() bool {
	return c.AvailableSeats() > 0
}

// EffectiveCapacity is the admission bound including the oversubscription
// allowance: floor(capacity * (1 + oversubscription)).
func (c *Course) EffectiveCapacity(oversubscription float64) int {
	return int(math.Floor(float64(c.Capacity) * (1 + oversubscription)))
}
