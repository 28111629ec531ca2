package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/repository"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/config"
)

type batchCandidate struct {
	studentID string
	courseID  string
	score     float64
	priority  int
}

// RunBatchAllocation converts waitlist entries into enrollments under the
// configured strategy. Batches are serialized; capacity accounting inside
// one batch is shared so earlier commits are visible to later candidates.
func (s *AllocationService) RunBatchAllocation(ctx context.Context, courses []*models.Course, prefs map[string]*models.StudentCoursePreferences, students map[string]*models.Student) (map[string][]*models.AllocationResult, error) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	switch s.cfg.Strategy {
	case config.StrategyStudentOptimal:
		return s.studentOptimalAllocation(ctx, courses, prefs)
	case config.StrategyCourseOptimal:
		return s.courseOptimalAllocation(ctx, courses, prefs)
	default:
		// BALANCED and GREEDY share one implementation.
		return s.balancedAllocation(ctx, courses, prefs)
	}
}

// balancedAllocation processes all waitlisted candidates globally by
// descending score, tie-broken by better student priority. Each student
// receives at most one seat per batch.
func (s *AllocationService) balancedAllocation(ctx context.Context, courses []*models.Course, prefs map[string]*models.StudentCoursePreferences) (map[string][]*models.AllocationResult, error) {
	results := make(map[string][]*models.AllocationResult)

	courseMap := make(map[string]*models.Course, len(courses))
	baseEnrollment := make(map[string]int, len(courses))
	fills := make(map[string]int, len(courses))

	candidates := make([]batchCandidate, 0)
	for _, course := range sortCourses(courses) {
		courseMap[course.CourseID] = course
		baseEnrollment[course.CourseID] = s.CurrentEnrollment(course)

		if !batchEligible(course) {
			continue
		}

		entries, err := s.allWaitlisted(ctx, course.CourseID)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			candidates = append(candidates, batchCandidate{
				studentID: entry.StudentID,
				courseID:  course.CourseID,
				score:     entry.Score,
				priority:  prefs[entry.StudentID].GetPriority(course.CourseID),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].priority < candidates[j].priority
	})

	allocated := make(map[string]string)

	for _, cand := range candidates {
		if _, done := allocated[cand.studentID]; done {
			continue
		}

		course := courseMap[cand.courseID]
		if s.IsEnrolled(cand.studentID, cand.courseID) {
			// Stale entry from before the seat was granted.
			if err := s.waitlist.Remove(ctx, cand.courseID, cand.studentID); err != nil {
				return nil, err
			}
			continue
		}

		effectiveCap := course.EffectiveCapacity(s.cfg.AllowOversubscription)
		if baseEnrollment[cand.courseID]+fills[cand.courseID] >= effectiveCap {
			position, err := s.waitlist.Position(ctx, cand.courseID, cand.studentID)
			if err != nil {
				return nil, err
			}
			results[cand.studentID] = append(results[cand.studentID], &models.AllocationResult{
				StudentID:        cand.studentID,
				CourseID:         cand.courseID,
				Success:          false,
				Status:           models.StatusWaitlisted,
				Message:          "Course capacity reached. Remaining on waitlist.",
				WaitlistPosition: position,
				Score:            cand.score,
			})
			continue
		}

		allocated[cand.studentID] = cand.courseID
		fills[cand.courseID]++

		if err := s.commitAllocation(ctx, cand.studentID, course); err != nil {
			return nil, err
		}

		results[cand.studentID] = append(results[cand.studentID], registeredResult(cand.studentID, cand.courseID, cand.score, cand.priority))

		s.logger.Info("batch allocation",
			zap.String("student_id", cand.studentID),
			zap.String("course_id", cand.courseID),
			zap.Float64("score", cand.score),
			zap.Int("priority", cand.priority),
		)
	}

	return results, nil
}

// studentOptimalAllocation runs student-proposing deferred acceptance.
// Students propose down their preference lists; courses tentatively hold
// the best proposers up to their free capacity and reject the rest, who
// propose again in the next round.
func (s *AllocationService) studentOptimalAllocation(ctx context.Context, courses []*models.Course, prefs map[string]*models.StudentCoursePreferences) (map[string][]*models.AllocationResult, error) {
	results := make(map[string][]*models.AllocationResult)

	courseMap := make(map[string]*models.Course, len(courses))
	slots := make(map[string]int, len(courses))
	scores := make(map[string]map[string]float64)

	for _, course := range sortCourses(courses) {
		courseMap[course.CourseID] = course
		if !batchEligible(course) {
			continue
		}

		free := course.EffectiveCapacity(s.cfg.AllowOversubscription) - s.CurrentEnrollment(course)
		if free < 0 {
			free = 0
		}
		slots[course.CourseID] = free

		entries, err := s.allWaitlisted(ctx, course.CourseID)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if scores[entry.StudentID] == nil {
				scores[entry.StudentID] = make(map[string]float64)
			}
			scores[entry.StudentID][course.CourseID] = entry.Score
		}
	}

	nextIdx := make(map[string]int)
	tentative := make(map[string][]batchCandidate)

	active := make(map[string]struct{})
	for studentID := range prefs {
		active[studentID] = struct{}{}
	}

	for len(active) > 0 {
		nextActive := make(map[string]struct{})

		for _, studentID := range sortedKeys(active) {
			pref := prefs[studentID]
			if pref == nil {
				continue
			}

			// Propose to the next preferred course that actually has a
			// scored application from this student.
			proposed := false
			for !proposed && nextIdx[studentID] < len(pref.CourseIDs) {
				courseID := pref.CourseIDs[nextIdx[studentID]]
				nextIdx[studentID]++

				score, ok := scores[studentID][courseID]
				if !ok {
					continue
				}
				if _, known := courseMap[courseID]; !known {
					continue
				}
				if s.IsEnrolled(studentID, courseID) {
					if err := s.waitlist.Remove(ctx, courseID, studentID); err != nil {
						return nil, err
					}
					continue
				}

				tentative[courseID] = append(tentative[courseID], batchCandidate{
					studentID: studentID,
					courseID:  courseID,
					score:     score,
					priority:  pref.GetPriority(courseID),
				})
				proposed = true
			}
		}

		// Each course keeps the best proposers within its free slots.
		for _, courseID := range sortedCandidateKeys(tentative) {
			proposals := tentative[courseID]
			sort.SliceStable(proposals, func(i, j int) bool {
				return proposals[i].score > proposals[j].score
			})

			keep := slots[courseID]
			if keep > len(proposals) {
				keep = len(proposals)
			}
			tentative[courseID] = proposals[:keep]
			for _, loser := range proposals[keep:] {
				nextActive[loser.studentID] = struct{}{}
			}
		}

		// Drop students with no preferences left to propose to.
		for studentID := range nextActive {
			pref := prefs[studentID]
			if pref == nil || nextIdx[studentID] >= len(pref.CourseIDs) {
				delete(nextActive, studentID)
			}
		}
		active = nextActive
	}

	for _, courseID := range sortedCandidateKeys(tentative) {
		course := courseMap[courseID]
		for _, winner := range tentative[courseID] {
			if err := s.commitAllocation(ctx, winner.studentID, course); err != nil {
				return nil, err
			}
			results[winner.studentID] = append(results[winner.studentID], registeredResult(winner.studentID, courseID, winner.score, winner.priority))
		}
	}

	return results, nil
}

// courseOptimalAllocation is the course-proposing dual: courses offer
// seats down their waitlists in score order; a student holds the offer
// from the course they rank best and releases any previous hold, whose
// course then continues down its list.
func (s *AllocationService) courseOptimalAllocation(ctx context.Context, courses []*models.Course, prefs map[string]*models.StudentCoursePreferences) (map[string][]*models.AllocationResult, error) {
	results := make(map[string][]*models.AllocationResult)

	courseMap := make(map[string]*models.Course, len(courses))
	slots := make(map[string]int)
	queues := make(map[string][]batchCandidate)
	nextIdx := make(map[string]int)

	eligible := make([]string, 0, len(courses))
	for _, course := range sortCourses(courses) {
		courseMap[course.CourseID] = course
		if !batchEligible(course) {
			continue
		}

		free := course.EffectiveCapacity(s.cfg.AllowOversubscription) - s.CurrentEnrollment(course)
		if free <= 0 {
			continue
		}
		slots[course.CourseID] = free

		entries, err := s.allWaitlisted(ctx, course.CourseID)
		if err != nil {
			return nil, err
		}
		queue := make([]batchCandidate, 0, len(entries))
		for _, entry := range entries {
			queue = append(queue, batchCandidate{
				studentID: entry.StudentID,
				courseID:  course.CourseID,
				score:     entry.Score,
				priority:  prefs[entry.StudentID].GetPriority(course.CourseID),
			})
		}
		queues[course.CourseID] = queue
		eligible = append(eligible, course.CourseID)
	}

	held := make(map[string]batchCandidate)
	holdCount := make(map[string]int)

	for {
		progressed := false

		for _, courseID := range eligible {
			for holdCount[courseID] < slots[courseID] && nextIdx[courseID] < len(queues[courseID]) {
				offer := queues[courseID][nextIdx[courseID]]
				nextIdx[courseID]++
				progressed = true

				if s.IsEnrolled(offer.studentID, courseID) {
					if err := s.waitlist.Remove(ctx, courseID, offer.studentID); err != nil {
						return nil, err
					}
					continue
				}

				current, holding := held[offer.studentID]
				if !holding || prefersOffer(offer, current) {
					if holding {
						holdCount[current.courseID]--
					}
					held[offer.studentID] = offer
					holdCount[courseID]++
				}
			}
		}

		if !progressed {
			break
		}
	}

	for _, studentID := range sortedStudentKeys(held) {
		offer := held[studentID]
		if err := s.commitAllocation(ctx, studentID, courseMap[offer.courseID]); err != nil {
			return nil, err
		}
		results[studentID] = append(results[studentID], registeredResult(studentID, offer.courseID, offer.score, offer.priority))
	}

	return results, nil
}

// commitAllocation enrolls a student, bumps the counter and removes the
// waitlist entry.
func (s *AllocationService) commitAllocation(ctx context.Context, studentID string, course *models.Course) error {
	s.mu.Lock()
	s.enrollLocked(studentID, course.CourseID)
	course.CurrentEnrollment++
	if app := s.applications[course.CourseID][studentID]; app != nil {
		app.Status = models.StatusRegistered
	}
	s.mu.Unlock()

	return s.waitlist.Remove(ctx, course.CourseID, studentID)
}

// allWaitlisted reads the full waitlist for a course in rank order.
func (s *AllocationService) allWaitlisted(ctx context.Context, courseID string) ([]repository.WaitlistEntry, error) {
	size, err := s.waitlist.Size(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	return s.waitlist.TopK(ctx, courseID, size)
}

// prefersOffer reports whether the student ranks the new offer above the
// one currently held. Lower preference rank wins; ties go to the higher
// score, then the lexically smaller course for determinism.
func prefersOffer(offer, current batchCandidate) bool {
	if offer.priority != current.priority {
		return offer.priority < current.priority
	}
	if offer.score != current.score {
		return offer.score > current.score
	}
	return offer.courseID < current.courseID
}

func batchEligible(course *models.Course) bool {
	return course.BookingState == models.BookingOpen || course.BookingState == models.BookingClosed
}

func registeredResult(studentID, courseID string, score float64, priority int) *models.AllocationResult {
	return &models.AllocationResult{
		StudentID: studentID,
		CourseID:  courseID,
		Success:   true,
		Status:    models.StatusRegistered,
		Message:   fmt.Sprintf("Allocated to course (priority #%d)", priority),
		Score:     score,
	}
}

func sortCourses(courses []*models.Course) []*models.Course {
	sorted := make([]*models.Course, len(courses))
	copy(sorted, courses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CourseID < sorted[j].CourseID })
	return sorted
}

func sortedCandidateKeys(m map[string][]batchCandidate) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedStudentKeys(m map[string]batchCandidate) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
