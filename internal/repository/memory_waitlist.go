package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
	appErrors "github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/errors"
)

type memoryEntry struct {
	studentID string
	score     float64
	seq       uint64
}

// MemoryWaitlistStore is the in-process WaitlistStore used when Redis is
// not configured. Equal scores rank by insertion order, oldest first.
type MemoryWaitlistStore struct {
	mu           sync.Mutex
	entries      map[string][]memoryEntry
	applications map[string]models.CourseApplication
	locks        map[string]time.Time
	nextSeq      uint64
	now          func() time.Time
}

// NewMemoryWaitlistStore builds an empty in-memory store.
func NewMemoryWaitlistStore() *MemoryWaitlistStore {
	return &MemoryWaitlistStore{
		entries:      make(map[string][]memoryEntry),
		applications: make(map[string]models.CourseApplication),
		locks:        make(map[string]time.Time),
		now:          time.Now,
	}
}

func (s *MemoryWaitlistStore) Add(_ context.Context, courseID, studentID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[courseID]
	for i := range list {
		if list[i].studentID == studentID {
			list[i].score = score
			s.resort(courseID)
			return nil
		}
	}

	s.nextSeq++
	s.entries[courseID] = append(list, memoryEntry{studentID: studentID, score: score, seq: s.nextSeq})
	s.resort(courseID)
	return nil
}

func (s *MemoryWaitlistStore) Remove(_ context.Context, courseID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[courseID]
	for i := range list {
		if list[i].studentID == studentID {
			s.entries[courseID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryWaitlistStore) UpdateScore(_ context.Context, courseID, studentID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[courseID]
	for i := range list {
		if list[i].studentID == studentID {
			list[i].score = score
			s.resort(courseID)
			return nil
		}
	}
	return nil
}

func (s *MemoryWaitlistStore) Score(_ context.Context, courseID, studentID string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries[courseID] {
		if entry.studentID == studentID {
			return entry.score, true, nil
		}
	}
	return 0, false, nil
}

func (s *MemoryWaitlistStore) Position(_ context.Context, courseID, studentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.entries[courseID] {
		if entry.studentID == studentID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *MemoryWaitlistStore) TopK(_ context.Context, courseID string, k int) ([]WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[courseID]
	if k > len(list) {
		k = len(list)
	}
	if k <= 0 {
		return nil, nil
	}

	result := make([]WaitlistEntry, 0, k)
	for _, entry := range list[:k] {
		result = append(result, WaitlistEntry{StudentID: entry.studentID, Score: entry.score})
	}
	return result, nil
}

func (s *MemoryWaitlistStore) PopTop(_ context.Context, courseID string) (*WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[courseID]
	if len(list) == 0 {
		return nil, nil
	}

	top := list[0]
	s.entries[courseID] = list[1:]
	return &WaitlistEntry{StudentID: top.studentID, Score: top.score}, nil
}

func (s *MemoryWaitlistStore) Size(_ context.Context, courseID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[courseID]), nil
}

func (s *MemoryWaitlistStore) SaveApplication(_ context.Context, app *models.CourseApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications[app.ApplicationID] = *app
	return nil
}

func (s *MemoryWaitlistStore) Application(_ context.Context, applicationID string) (*models.CourseApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.applications[applicationID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return &app, nil
}

func (s *MemoryWaitlistStore) AcquireLock(_ context.Context, courseID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, held := s.locks[courseID]; held && now.Before(expiry) {
		return false, nil
	}
	s.locks[courseID] = now.Add(ttl)
	return true, nil
}

func (s *MemoryWaitlistStore) ReleaseLock(_ context.Context, courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, courseID)
	return nil
}

// resort orders a course list by descending score, ties by insertion order.
// Callers must hold s.mu.
func (s *MemoryWaitlistStore) resort(courseID string) {
	list := s.entries[courseID]
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].seq < list[j].seq
	})
}

var _ WaitlistStore = (*MemoryWaitlistStore)(nil)
