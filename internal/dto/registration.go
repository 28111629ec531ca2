package dto

import "time"

// AddStudentRequest registers or updates a student profile.
type AddStudentRequest struct {
	StudentID        string   `json:"studentId" validate:"required"`
	Name             string   `json:"name" validate:"required"`
	Email            string   `json:"email" validate:"omitempty,email"`
	GPA              float64  `json:"gpa" validate:"min=0,max=4"`
	Year             int      `json:"year" validate:"required,min=1,max=8"`
	Interests        []string `json:"interests"`
	CompletedCourses []string `json:"completedCourses"`
}

// AddCourseRequest registers or updates a course definition.
type AddCourseRequest struct {
	CourseID       string   `json:"courseId" validate:"required"`
	Name           string   `json:"name" validate:"required"`
	Capacity       int      `json:"capacity" validate:"required,min=1"`
	Prerequisites  []string `json:"prerequisites"`
	Tags           []string `json:"tags"`
	MinGPA         float64  `json:"minGpa" validate:"min=0,max=4"`
	PreferredYears []int    `json:"preferredYears" validate:"omitempty,dive,min=1,max=8"`
}

// SetPreferencesRequest replaces a student's ordered preference list.
type SetPreferencesRequest struct {
	StudentID string   `json:"studentId" validate:"required"`
	CourseIDs []string `json:"courseIds" validate:"required,min=1,dive,required"`
}

// ApplyRequest submits one course application.
type ApplyRequest struct {
	StudentID string     `json:"studentId" validate:"required"`
	CourseID  string     `json:"courseId" validate:"required"`
	AppliedAt *time.Time `json:"appliedAt"`
}

// ApplyAllRequest applies to every course in the student's preferences.
type ApplyAllRequest struct {
	StudentID string     `json:"studentId" validate:"required"`
	AppliedAt *time.Time `json:"appliedAt"`
}

// ManualRegisterRequest attempts an immediate enrollment.
type ManualRegisterRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
}

// DropoutRequest drops an enrolled student from a course.
type DropoutRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
}

// RunAllocationRequest triggers a batch allocation, optionally scoped to
// a subset of courses.
type RunAllocationRequest struct {
	CourseIDs []string `json:"courseIds"`
}
