package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pomobot/backend/internal/model"
)

// StatsRepository stores session records append-only and answers per-day
// bucket queries. Buckets are derived by aggregation at read time, so two
// sessions landing in the same second cannot lose each other's update.
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) InsertSession(ctx context.Context, record model.SessionRecord) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO pomodoro_sessions (
			id, date_key, start_time, end_time, type, duration_minutes, completed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		model.DateKey(record.StartTime),
		record.StartTime.UTC().Format(time.RFC3339Nano),
		record.EndTime.UTC().Format(time.RFC3339Nano),
		string(record.Type),
		record.DurationMinutes,
		boolToInt(record.Completed),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetStatsForDate returns the bucket for an exact date. A date with no
// sessions yields an empty bucket, not an error.
func (r *StatsRepository) GetStatsForDate(ctx context.Context, date string) (model.PomodoroStats, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, start_time, end_time, type, duration_minutes, completed
		 FROM pomodoro_sessions
		 WHERE date_key = ?
		 ORDER BY created_at, rowid`,
		date,
	)
	if err != nil {
		return model.PomodoroStats{}, fmt.Errorf("query sessions for %s: %w", date, err)
	}
	defer rows.Close()

	stats := model.EmptyStats(date)
	for rows.Next() {
		record, scanErr := scanSessionRecord(rows)
		if scanErr != nil {
			return model.PomodoroStats{}, scanErr
		}
		accumulate(&stats, record)
	}
	if err := rows.Err(); err != nil {
		return model.PomodoroStats{}, fmt.Errorf("iterate sessions for %s: %w", date, err)
	}
	return stats, nil
}

// GetStatsForRange returns buckets for dates in [start, end] that have at
// least one session, in ascending date order.
func (r *StatsRepository) GetStatsForRange(ctx context.Context, start, end string) ([]model.PomodoroStats, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT date_key, id, start_time, end_time, type, duration_minutes, completed
		 FROM pomodoro_sessions
		 WHERE date_key >= ? AND date_key <= ?
		 ORDER BY date_key, created_at, rowid`,
		start,
		end,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions in range: %w", err)
	}
	defer rows.Close()

	return groupBuckets(rows)
}

// GetAllStats returns every day bucket keyed by date.
func (r *StatsRepository) GetAllStats(ctx context.Context) (map[string]model.PomodoroStats, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT date_key, id, start_time, end_time, type, duration_minutes, completed
		 FROM pomodoro_sessions
		 ORDER BY date_key, created_at, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all sessions: %w", err)
	}
	defer rows.Close()

	buckets, err := groupBuckets(rows)
	if err != nil {
		return nil, err
	}

	all := make(map[string]model.PomodoroStats, len(buckets))
	for _, bucket := range buckets {
		all[bucket.Date] = bucket
	}
	return all, nil
}

func (r *StatsRepository) ClearDate(ctx context.Context, date string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pomodoro_sessions WHERE date_key = ?`, date); err != nil {
		return fmt.Errorf("clear sessions for %s: %w", date, err)
	}
	return nil
}

func (r *StatsRepository) ClearAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pomodoro_sessions`); err != nil {
		return fmt.Errorf("clear all sessions: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSessionRecord(s scanner) (model.SessionRecord, error) {
	var record model.SessionRecord
	var startTime, endTime, phase string
	var completed int
	if err := s.Scan(&record.ID, &startTime, &endTime, &phase, &record.DurationMinutes, &completed); err != nil {
		return model.SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}

	parsedStart, err := parseTime(startTime)
	if err != nil {
		return model.SessionRecord{}, fmt.Errorf("parse session start_time: %w", err)
	}
	parsedEnd, err := parseTime(endTime)
	if err != nil {
		return model.SessionRecord{}, fmt.Errorf("parse session end_time: %w", err)
	}

	record.StartTime = parsedStart
	record.EndTime = parsedEnd
	record.Type = model.TimerPhase(phase)
	record.Completed = completed != 0
	return record, nil
}

func groupBuckets(rows *sql.Rows) ([]model.PomodoroStats, error) {
	var buckets []model.PomodoroStats
	var current *model.PomodoroStats

	for rows.Next() {
		var dateKey string
		var record model.SessionRecord
		var startTime, endTime, phase string
		var completed int
		if err := rows.Scan(&dateKey, &record.ID, &startTime, &endTime, &phase, &record.DurationMinutes, &completed); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		parsedStart, err := parseTime(startTime)
		if err != nil {
			return nil, fmt.Errorf("parse session start_time: %w", err)
		}
		parsedEnd, err := parseTime(endTime)
		if err != nil {
			return nil, fmt.Errorf("parse session end_time: %w", err)
		}
		record.StartTime = parsedStart
		record.EndTime = parsedEnd
		record.Type = model.TimerPhase(phase)
		record.Completed = completed != 0

		if current == nil || current.Date != dateKey {
			buckets = append(buckets, model.EmptyStats(dateKey))
			current = &buckets[len(buckets)-1]
		}
		accumulate(current, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return buckets, nil
}

// accumulate appends the record and bumps the day's counters; only
// completed sessions count toward the aggregates.
func accumulate(stats *model.PomodoroStats, record model.SessionRecord) {
	stats.Sessions = append(stats.Sessions, record)
	if !record.Completed {
		return
	}
	switch record.Type {
	case model.PhaseWork:
		stats.SessionsCompleted++
		stats.TotalWorkTime += record.DurationMinutes
	case model.PhaseShortBreak:
		stats.ShortBreaksTaken++
	case model.PhaseLongBreak:
		stats.LongBreaksTaken++
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
