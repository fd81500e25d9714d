package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"pomobot/backend/internal/model"
	"pomobot/backend/internal/repository"
)

// StatsService is the session statistics store. Day buckets are cached
// with a short TTL to absorb read bursts; every write invalidates the
// touched date before returning, so a reader causally after a successful
// write never sees the stale bucket.
type StatsService struct {
	repo  *repository.StatsRepository
	cache *gocache.Cache
	ttl   time.Duration
}

func NewStatsService(repo *repository.StatsRepository, ttl time.Duration) *StatsService {
	return &StatsService{
		repo:  repo,
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

// RecordSession appends the record to its start-date bucket.
func (s *StatsService) RecordSession(ctx context.Context, record model.SessionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if err := s.repo.InsertSession(ctx, record); err != nil {
		return fmt.Errorf("record session: %w", err)
	}

	s.cache.Delete(model.DateKey(record.StartTime))
	log.Printf("recorded %s session: completed=%t duration=%dmin", record.Type, record.Completed, record.DurationMinutes)
	return nil
}

// GetStatsForDate returns the bucket for an exact YYYY-MM-DD date; a date
// with no sessions yields an empty bucket.
func (s *StatsService) GetStatsForDate(ctx context.Context, date string) (model.PomodoroStats, error) {
	if cached, found := s.cache.Get(date); found {
		if stats, ok := cached.(model.PomodoroStats); ok {
			return stats, nil
		}
	}

	stats, err := s.repo.GetStatsForDate(ctx, date)
	if err != nil {
		return model.PomodoroStats{}, err
	}

	s.cache.Set(date, stats, s.ttl)
	return stats, nil
}

func (s *StatsService) GetTodayStats(ctx context.Context) (model.PomodoroStats, error) {
	return s.GetStatsForDate(ctx, model.DateKey(time.Now()))
}

// GetTotalSessionsToday is the completed-work-session count for the
// current calendar day.
func (s *StatsService) GetTotalSessionsToday(ctx context.Context) (int, error) {
	stats, err := s.GetTodayStats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.SessionsCompleted, nil
}

// GetStatsForRange returns buckets for the inclusive date range in
// ascending order.
func (s *StatsService) GetStatsForRange(ctx context.Context, start, end string) ([]model.PomodoroStats, error) {
	return s.repo.GetStatsForRange(ctx, start, end)
}

func (s *StatsService) GetAllStats(ctx context.Context) (map[string]model.PomodoroStats, error) {
	return s.repo.GetAllStats(ctx)
}

// ClearStatsForDate irreversibly deletes one day's records.
func (s *StatsService) ClearStatsForDate(ctx context.Context, date string) error {
	if err := s.repo.ClearDate(ctx, date); err != nil {
		return err
	}
	s.cache.Delete(date)
	log.Printf("cleared pomodoro stats for %s", date)
	return nil
}

// ClearAllStats irreversibly deletes every record.
func (s *StatsService) ClearAllStats(ctx context.Context) error {
	if err := s.repo.ClearAll(ctx); err != nil {
		return err
	}
	s.cache.Flush()
	log.Printf("cleared all pomodoro stats")
	return nil
}
