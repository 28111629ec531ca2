package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
	appErrors "github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/errors"
)

const (
	waitlistKeyPrefix    = "waitlist:"
	applicationKeyPrefix = "application:"
	courseLockKeyPrefix  = "lock:course:"
)

// RedisWaitlistStore keeps one sorted set per course plus one hash per
// application record. Positions come from reverse rank, so higher scores
// rank first. Redis breaks score ties by member name rather than insertion
// order.
type RedisWaitlistStore struct {
	client *redis.Client
}

// NewRedisWaitlistStore wraps an established Redis client.
func NewRedisWaitlistStore(client *redis.Client) *RedisWaitlistStore {
	return &RedisWaitlistStore{client: client}
}

func waitlistKey(courseID string) string   { return waitlistKeyPrefix + courseID }
func applicationKey(appID string) string   { return applicationKeyPrefix + appID }
func courseLockKey(courseID string) string { return courseLockKeyPrefix + courseID }

func (s *RedisWaitlistStore) Add(ctx context.Context, courseID, studentID string, score float64) error {
	return s.client.ZAdd(ctx, waitlistKey(courseID), redis.Z{Score: score, Member: studentID}).Err()
}

func (s *RedisWaitlistStore) Remove(ctx context.Context, courseID, studentID string) error {
	return s.client.ZRem(ctx, waitlistKey(courseID), studentID).Err()
}

func (s *RedisWaitlistStore) UpdateScore(ctx context.Context, courseID, studentID string, score float64) error {
	return s.client.ZAddXX(ctx, waitlistKey(courseID), redis.Z{Score: score, Member: studentID}).Err()
}

func (s *RedisWaitlistStore) Score(ctx context.Context, courseID, studentID string) (float64, bool, error) {
	score, err := s.client.ZScore(ctx, waitlistKey(courseID), studentID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

func (s *RedisWaitlistStore) Position(ctx context.Context, courseID, studentID string) (int, error) {
	rank, err := s.client.ZRevRank(ctx, waitlistKey(courseID), studentID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(rank) + 1, nil
}

func (s *RedisWaitlistStore) TopK(ctx context.Context, courseID string, k int) ([]WaitlistEntry, error) {
	if k <= 0 {
		return nil, nil
	}

	members, err := s.client.ZRevRangeWithScores(ctx, waitlistKey(courseID), 0, int64(k-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]WaitlistEntry, 0, len(members))
	for _, member := range members {
		studentID, ok := member.Member.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected waitlist member type %T", member.Member)
		}
		entries = append(entries, WaitlistEntry{StudentID: studentID, Score: member.Score})
	}
	return entries, nil
}

func (s *RedisWaitlistStore) PopTop(ctx context.Context, courseID string) (*WaitlistEntry, error) {
	members, err := s.client.ZPopMax(ctx, waitlistKey(courseID), 1).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	studentID, ok := members[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected waitlist member type %T", members[0].Member)
	}
	return &WaitlistEntry{StudentID: studentID, Score: members[0].Score}, nil
}

func (s *RedisWaitlistStore) Size(ctx context.Context, courseID string) (int, error) {
	size, err := s.client.ZCard(ctx, waitlistKey(courseID)).Result()
	if err != nil {
		return 0, err
	}
	return int(size), nil
}

func (s *RedisWaitlistStore) SaveApplication(ctx context.Context, app *models.CourseApplication) error {
	fields := map[string]interface{}{
		"application_id":  app.ApplicationID,
		"student_id":      app.StudentID,
		"course_id":       app.CourseID,
		"priority_rank":   app.PriorityRank,
		"applied_at":      app.AppliedAt.UTC().Format(time.RFC3339Nano),
		"gpa_score":       app.GPAScore,
		"interest_score":  app.InterestScore,
		"time_score":      app.TimeScore,
		"year_score":      app.YearScore,
		"prereq_score":    app.PrereqScore,
		"composite_score": app.CompositeScore,
		"status":          string(app.Status),
	}
	return s.client.HSet(ctx, applicationKey(app.ApplicationID), fields).Err()
}

func (s *RedisWaitlistStore) Application(ctx context.Context, applicationID string) (*models.CourseApplication, error) {
	fields, err := s.client.HGetAll(ctx, applicationKey(applicationID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}

	app := &models.CourseApplication{
		ApplicationID: fields["application_id"],
		StudentID:     fields["student_id"],
		CourseID:      fields["course_id"],
		Status:        models.RegistrationStatus(fields["status"]),
	}
	if v := fields["priority_rank"]; v != "" {
		app.PriorityRank, _ = strconv.Atoi(v)
	}
	if v := fields["applied_at"]; v != "" {
		app.AppliedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	app.GPAScore = parseFloatField(fields, "gpa_score")
	app.InterestScore = parseFloatField(fields, "interest_score")
	app.TimeScore = parseFloatField(fields, "time_score")
	app.YearScore = parseFloatField(fields, "year_score")
	app.PrereqScore = parseFloatField(fields, "prereq_score")
	app.CompositeScore = parseFloatField(fields, "composite_score")

	return app, nil
}

func (s *RedisWaitlistStore) AcquireLock(ctx context.Context, courseID string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, courseLockKey(courseID), "1", ttl).Result()
}

func (s *RedisWaitlistStore) ReleaseLock(ctx context.Context, courseID string) error {
	return s.client.Del(ctx, courseLockKey(courseID)).Err()
}

func parseFloatField(fields map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(fields[key], 64)
	if err != nil {
		return 0
	}
	return v
}

var _ WaitlistStore = (*RedisWaitlistStore)(nil)
