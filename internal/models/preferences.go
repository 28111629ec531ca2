package models

// UnrankedPriority is returned for courses missing from a preference list.
const UnrankedPriority = 999

// StudentCoursePreferences is an ordered preference list for one student.
// Index 0 is the student's top choice. Lists are produced by an external
// recommender and registered through the registration service.
type StudentCoursePreferences struct {
	StudentID string   `json:"student_id"`
	CourseIDs []string `json:"course_ids"`
}

// GetPriority returns the 1-based rank of the course in the list, or
// UnrankedPriority when the course is not listed.
func (p *StudentCoursePreferences) GetPriority(courseID string) int {
	if p == nil {
		return UnrankedPriority
	}
	for i, id := range p.CourseIDs {
		if id == courseID {
			return i + 1
		}
	}
	return UnrankedPriority
}
