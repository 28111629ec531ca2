package models

import "time"

// RegistrationStatus is the outcome class of a registration operation.
type RegistrationStatus string

// Possible registration statuses.
const (
	StatusRegistered RegistrationStatus = "REGISTERED"
	StatusWaitlisted RegistrationStatus = "WAITLISTED"
	StatusRejected   RegistrationStatus = "REJECTED"
	StatusDropped    RegistrationStatus = "DROPPED"
)

// CourseApplication is the scored record for one (student, course) pair.
// Component scores and the composite are all in [0, 1].
type CourseApplication struct {
	ApplicationID  string             `json:"application_id"`
	StudentID      string             `json:"student_id"`
	CourseID       string             `json:"course_id"`
	PriorityRank   int                `json:"priority_rank"`
	AppliedAt      time.Time          `json:"applied_at"`
	GPAScore       float64            `json:"gpa_score"`
	InterestScore  float64            `json:"interest_score"`
	TimeScore      float64            `json:"time_score"`
	YearScore      float64            `json:"year_score"`
	PrereqScore    float64            `json:"prereq_score"`
	CompositeScore float64            `json:"composite_score"`
	Status         RegistrationStatus `json:"status"`
}

// AllocationResult is the tagged outcome returned to callers for every
// registration operation. WaitlistPosition is 1-based; zero means not
// applicable.
type AllocationResult struct {
	StudentID        string             `json:"student_id"`
	CourseID         string             `json:"course_id"`
	Success          bool               `json:"success"`
	Status           RegistrationStatus `json:"status"`
	Message          string             `json:"message"`
	WaitlistPosition int                `json:"waitlist_position,omitempty"`
	Score            float64            `json:"score,omitempty"`
}
