package model

import (
	"fmt"
	"strings"
	"time"
)

// TimerPhase is the timer's current activity mode.
type TimerPhase string

const (
	PhaseWork       TimerPhase = "work"
	PhaseShortBreak TimerPhase = "shortBreak"
	PhaseLongBreak  TimerPhase = "longBreak"
)

func (p TimerPhase) Valid() bool {
	return p == PhaseWork || p == PhaseShortBreak || p == PhaseLongBreak
}

const (
	DefaultWorkDuration            = 80
	DefaultShortBreakDuration      = 10
	DefaultLongBreakDuration       = 20
	DefaultSessionsBeforeLongBreak = 5

	MaxWorkDuration            = 240
	MaxShortBreakDuration      = 60
	MaxLongBreakDuration       = 120
	MaxSessionsBeforeLongBreak = 10
)

// PomodoroConfig is the singleton duration configuration. Durations are
// minutes; SessionsBeforeLongBreak is work sessions per long-break cycle.
type PomodoroConfig struct {
	WorkDuration            int `json:"workDuration"`
	ShortBreakDuration      int `json:"shortBreakDuration"`
	LongBreakDuration       int `json:"longBreakDuration"`
	SessionsBeforeLongBreak int `json:"sessionsBeforeLongBreak"`
}

func DefaultConfig() PomodoroConfig {
	return PomodoroConfig{
		WorkDuration:            DefaultWorkDuration,
		ShortBreakDuration:      DefaultShortBreakDuration,
		LongBreakDuration:       DefaultLongBreakDuration,
		SessionsBeforeLongBreak: DefaultSessionsBeforeLongBreak,
	}
}

// ValidationError reports every field that violated its bound. A config
// update that produces one is rejected as a whole.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Fields, "; ")
}

// Validate checks all four fields as a unit and returns a *ValidationError
// naming each violation, or nil if the config is acceptable.
func (c PomodoroConfig) Validate() error {
	var fields []string
	if c.WorkDuration < 1 || c.WorkDuration > MaxWorkDuration {
		fields = append(fields, fmt.Sprintf("workDuration must be between 1 and %d minutes", MaxWorkDuration))
	}
	if c.ShortBreakDuration < 1 || c.ShortBreakDuration > MaxShortBreakDuration {
		fields = append(fields, fmt.Sprintf("shortBreakDuration must be between 1 and %d minutes", MaxShortBreakDuration))
	}
	if c.LongBreakDuration < 1 || c.LongBreakDuration > MaxLongBreakDuration {
		fields = append(fields, fmt.Sprintf("longBreakDuration must be between 1 and %d minutes", MaxLongBreakDuration))
	}
	if c.SessionsBeforeLongBreak < 1 || c.SessionsBeforeLongBreak > MaxSessionsBeforeLongBreak {
		fields = append(fields, fmt.Sprintf("sessionsBeforeLongBreak must be between 1 and %d", MaxSessionsBeforeLongBreak))
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ConfigUpdate is a partial configuration update. Nil fields keep the
// currently persisted value.
type ConfigUpdate struct {
	WorkDuration            *int `json:"workDuration"`
	ShortBreakDuration      *int `json:"shortBreakDuration"`
	LongBreakDuration       *int `json:"longBreakDuration"`
	SessionsBeforeLongBreak *int `json:"sessionsBeforeLongBreak"`
}

func (u ConfigUpdate) ApplyTo(c PomodoroConfig) PomodoroConfig {
	if u.WorkDuration != nil {
		c.WorkDuration = *u.WorkDuration
	}
	if u.ShortBreakDuration != nil {
		c.ShortBreakDuration = *u.ShortBreakDuration
	}
	if u.LongBreakDuration != nil {
		c.LongBreakDuration = *u.LongBreakDuration
	}
	if u.SessionsBeforeLongBreak != nil {
		c.SessionsBeforeLongBreak = *u.SessionsBeforeLongBreak
	}
	return c
}

// PomodoroState is the single in-memory timer snapshot. It is never
// persisted; durable facts are session records and the config.
type PomodoroState struct {
	Phase                   TimerPhase `json:"phase"`
	RemainingSeconds        int        `json:"remainingSeconds"`
	IsRunning               bool       `json:"isRunning"`
	SessionCount            int        `json:"sessionCount"`
	TotalSessionsToday      int        `json:"totalSessionsToday"`
	CurrentSessionStartTime *time.Time `json:"currentSessionStartTime,omitempty"`
}

// SessionRecord is an immutable fact about one phase activation, written
// when the phase ends by completion, pause, reset, or skip.
type SessionRecord struct {
	ID              string     `json:"id"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         time.Time  `json:"endTime"`
	Type            TimerPhase `json:"type"`
	DurationMinutes int        `json:"durationMinutes"`
	Completed       bool       `json:"completed"`
}

// SessionCompletion is the payload of a session-completed notification:
// the phase that ended and the cycle count as of that session.
type SessionCompletion struct {
	Phase        TimerPhase `json:"phase"`
	SessionCount int        `json:"sessionCount"`
}

// PomodoroStats is the per-calendar-day aggregate. Counters cover
// completed sessions only; Sessions holds every record in insertion order.
type PomodoroStats struct {
	Date              string          `json:"date"`
	SessionsCompleted int             `json:"sessionsCompleted"`
	ShortBreaksTaken  int             `json:"shortBreaksTaken"`
	LongBreaksTaken   int             `json:"longBreaksTaken"`
	TotalWorkTime     int             `json:"totalWorkTime"`
	Sessions          []SessionRecord `json:"sessions"`
}

func EmptyStats(date string) PomodoroStats {
	return PomodoroStats{Date: date, Sessions: []SessionRecord{}}
}

// DateKey formats a timestamp as the YYYY-MM-DD bucket key in
// process-local time.
func DateKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}
