package dto

import "github.com/HarshBti1805/Einstein-Academic-Concierge/internal/repository"

// WaitlistStatus describes one student's standing on one course waitlist.
type WaitlistStatus struct {
	StudentID      string   `json:"student_id"`
	CourseID       string   `json:"course_id"`
	Position       int      `json:"position"`
	Score          *float64 `json:"score"`
	WaitlistSize   int      `json:"waitlist_size"`
	AvailableSeats int      `json:"available_seats"`
	IsEnrolled     bool     `json:"is_enrolled"`
}

// StudentStatus aggregates a student's enrollments and waitlist standings.
type StudentStatus struct {
	StudentID         string         `json:"student_id"`
	EnrolledCourses   []string       `json:"enrolled_courses"`
	WaitlistPositions map[string]int `json:"waitlist_positions"`
	Preferences       []string       `json:"preferences"`
}

// CourseStatus aggregates a course's enrollment and waitlist state.
type CourseStatus struct {
	CourseID          string                     `json:"course_id"`
	CourseName        string                     `json:"course_name"`
	Capacity          int                        `json:"capacity"`
	CurrentEnrollment int                        `json:"current_enrollment"`
	AvailableSeats    int                        `json:"available_seats"`
	BookingState      string                     `json:"booking_state"`
	WaitlistSize      int                        `json:"waitlist_size"`
	TopWaitlisted     []repository.WaitlistEntry `json:"top_waitlisted"`
	EnrolledStudents  []string                   `json:"enrolled_students"`
}

// BatchRunSummary reports the outcome of one allocation run.
type BatchRunSummary struct {
	StudentsAllocated int `json:"students_allocated"`
	CoursesConsidered int `json:"courses_considered"`
}
