package models

// Student is an applicant profile. Fields relevant to scoring are GPA, Year,
// Interests and CompletedCourses; the rest is descriptive.
type Student struct {
	StudentID        string   `db:"student_id" json:"student_id"`
	Name             string   `db:"name" json:"name"`
	Email            string   `db:"email" json:"email,omitempty"`
	GPA              float64  `db:"gpa" json:"gpa"`
	Year             int      `db:"year" json:"year"`
	Interests        []string `db:"-" json:"interests"`
	CompletedCourses []string `db:"-" json:"completed_courses"`
}

// HasCompleted reports whether the student finished the given course.
func (s *Student) HasCompleted(courseID string) bool {
	for _, id := range s.CompletedCourses {
		if id == courseID {
			return true
		}
	}
	return false
}
