package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pomobot/backend/internal/model"
)

var ErrNotFound = errors.New("not found")

// ConfigRepository persists the singleton pomodoro configuration row.
type ConfigRepository struct {
	db *sql.DB
}

func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func (r *ConfigRepository) Get(ctx context.Context) (model.PomodoroConfig, error) {
	var cfg model.PomodoroConfig
	err := r.db.QueryRowContext(
		ctx,
		`SELECT work_duration, short_break_duration, long_break_duration, sessions_before_long_break
		 FROM pomodoro_config WHERE id = 1`,
	).Scan(
		&cfg.WorkDuration,
		&cfg.ShortBreakDuration,
		&cfg.LongBreakDuration,
		&cfg.SessionsBeforeLongBreak,
	)
	if err == sql.ErrNoRows {
		return model.PomodoroConfig{}, ErrNotFound
	}
	if err != nil {
		return model.PomodoroConfig{}, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

// Save upserts the whole config in a single statement, so readers never see
// a partially applied update.
func (r *ConfigRepository) Save(ctx context.Context, cfg model.PomodoroConfig) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO pomodoro_config (
			id, work_duration, short_break_duration, long_break_duration,
			sessions_before_long_break, updated_at
		) VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			work_duration = excluded.work_duration,
			short_break_duration = excluded.short_break_duration,
			long_break_duration = excluded.long_break_duration,
			sessions_before_long_break = excluded.sessions_before_long_break,
			updated_at = excluded.updated_at`,
		cfg.WorkDuration,
		cfg.ShortBreakDuration,
		cfg.LongBreakDuration,
		cfg.SessionsBeforeLongBreak,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
