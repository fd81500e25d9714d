package service

import (
	"context"
	"log"
	"sync"
	"time"

	"pomobot/backend/internal/model"
	"pomobot/backend/internal/pubsub"
)

// Notification types emitted by the timer engine.
const (
	EventTick             pubsub.EventType = "tick"
	EventPhaseChanged     pubsub.EventType = "phaseChanged"
	EventSessionCompleted pubsub.EventType = "sessionCompleted"
	EventPaused           pubsub.EventType = "paused"
	EventResumed          pubsub.EventType = "resumed"
	EventReset            pubsub.EventType = "reset"
)

// TimerEvent is the payload delivered to subscribers. State is the
// snapshot after the change; Completion is set only on sessionCompleted.
type TimerEvent struct {
	State      model.PomodoroState      `json:"state"`
	Completion *model.SessionCompletion `json:"completion,omitempty"`
}

// ConfigStore is the configuration collaborator the engine consumes.
type ConfigStore interface {
	GetConfig(ctx context.Context) model.PomodoroConfig
	UpdateConfig(ctx context.Context, update model.ConfigUpdate) (model.PomodoroConfig, error)
}

// SessionStore is the statistics collaborator the engine produces into.
type SessionStore interface {
	RecordSession(ctx context.Context, record model.SessionRecord) error
	GetTotalSessionsToday(ctx context.Context) (int, error)
}

// TimerService owns the single authoritative PomodoroState and is its only
// mutator. All operations serialize on one mutex; notifications are
// published while it is held, so subscribers observe events in the order
// the state changes happened.
type TimerService struct {
	configStore ConfigStore
	sessions    SessionStore
	broker      *pubsub.Broker[TimerEvent]

	mu           sync.Mutex
	cfg          model.PomodoroConfig
	state        model.PomodoroState
	sessionStart *time.Time
	stopTick     chan struct{}
	destroyed    bool

	// Seams for tests; real runs use time.Now and a 1s cadence.
	now          func() time.Time
	tickInterval time.Duration
}

func NewTimerService(configStore ConfigStore, sessions SessionStore) *TimerService {
	cfg := model.DefaultConfig()
	return &TimerService{
		configStore: configStore,
		sessions:    sessions,
		broker:      pubsub.NewBroker[TimerEvent](),
		cfg:         cfg,
		state: model.PomodoroState{
			Phase:            model.PhaseWork,
			RemainingSeconds: cfg.WorkDuration * 60,
		},
		now:          time.Now,
		tickInterval: time.Second,
	}
}

// Init seeds the engine from the configuration store and today's session
// count, then auto-starts. Persistence failures fall back to defaults; the
// engine never refuses to run because a store is unavailable.
func (s *TimerService) Init(ctx context.Context) {
	cfg := s.configStore.GetConfig(ctx)

	total, err := s.sessions.GetTotalSessionsToday(ctx)
	if err != nil {
		log.Printf("load today's session count: %v", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.state.RemainingSeconds = cfg.WorkDuration * 60
	if err == nil {
		s.state.TotalSessionsToday = total
	}
	s.mu.Unlock()

	log.Printf("pomodoro timer: auto-starting with loaded configuration")
	s.Start()
}

// Subscribe registers an observer for the engine's notifications. The
// channel closes when ctx is cancelled or the engine is destroyed.
func (s *TimerService) Subscribe(ctx context.Context) <-chan pubsub.Event[TimerEvent] {
	return s.broker.Subscribe(ctx)
}

// Start begins the 1-second countdown. Starting a running timer is a
// logged no-op.
func (s *TimerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	if s.state.IsRunning {
		log.Printf("timer is already running")
		return
	}

	now := s.now()
	s.state.IsRunning = true
	s.stampSessionStartLocked(now)

	stop := make(chan struct{})
	s.stopTick = stop
	go s.run(stop)

	log.Printf("timer started: phase=%s remaining=%ds", s.state.Phase, s.state.RemainingSeconds)
	s.publishLocked(EventResumed, nil)
}

// Pause stops the countdown and records the in-progress slice as not
// completed. Pausing a stopped timer is a logged no-op.
func (s *TimerService) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsRunning {
		log.Printf("timer is not running")
		return
	}

	s.state.IsRunning = false
	s.stopTickLocked()

	if s.sessionStart != nil {
		record := s.buildRecordLocked(false, s.now())
		s.recordSyncLocked(record)
	}

	log.Printf("timer paused")
	s.publishLocked(EventPaused, nil)
}

// Reset stops any countdown, records an in-progress session as abandoned,
// and returns to a fresh paused Work phase with sessionCount zero. The
// abandoned-session write completes before today's count is reloaded.
func (s *TimerService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}

	s.stopTickLocked()
	if s.sessionStart != nil {
		record := s.buildRecordLocked(false, s.now())
		s.recordSyncLocked(record)
	}

	total, err := s.sessions.GetTotalSessionsToday(context.Background())
	if err != nil {
		log.Printf("reload today's session count: %v", err)
		total = s.state.TotalSessionsToday
	}

	s.state = model.PomodoroState{
		Phase:              model.PhaseWork,
		RemainingSeconds:   s.cfg.WorkDuration * 60,
		IsRunning:          false,
		SessionCount:       0,
		TotalSessionsToday: total,
	}
	s.sessionStart = nil

	log.Printf("timer reset to work phase")
	s.publishLocked(EventReset, nil)
}

// Skip records the in-progress session as not completed and advances to
// the next phase immediately. A running timer keeps counting down in the
// new phase.
func (s *TimerService) Skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}

	wasRunning := s.state.IsRunning
	now := s.now()

	if s.sessionStart != nil {
		record := s.buildRecordLocked(false, now)
		s.recordSyncLocked(record)
	}

	endedPhase := s.state.Phase
	s.transitionLocked(now)

	if endedPhase == model.PhaseWork {
		if total, err := s.sessions.GetTotalSessionsToday(context.Background()); err == nil {
			s.state.TotalSessionsToday = total
		} else {
			log.Printf("refresh today's session count: %v", err)
		}
	}

	log.Printf("skipped to next phase: %s", s.state.Phase)
	if wasRunning {
		s.publishLocked(EventResumed, nil)
	}
}

// GetState returns a defensive copy of the current state. It never blocks
// on I/O and never fails.
func (s *TimerService) GetState() model.PomodoroState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// UpdateConfig merges the partial update over the persisted configuration
// via the config store's validated write, then re-applies the active
// phase's duration. Phase and running state are untouched.
func (s *TimerService) UpdateConfig(ctx context.Context, update model.ConfigUpdate) (model.PomodoroConfig, error) {
	cfg, err := s.configStore.UpdateConfig(ctx, update)
	if err != nil {
		return model.PomodoroConfig{}, err
	}

	s.mu.Lock()
	s.cfg = cfg
	s.applyConfigLocked()
	s.mu.Unlock()

	log.Printf("pomodoro configuration updated")
	return cfg, nil
}

// ReloadConfig re-reads the persisted configuration and re-applies the
// active phase's duration.
func (s *TimerService) ReloadConfig(ctx context.Context) {
	cfg := s.configStore.GetConfig(ctx)

	s.mu.Lock()
	s.cfg = cfg
	s.applyConfigLocked()
	s.mu.Unlock()

	log.Printf("pomodoro configuration reloaded")
}

// Destroy stops the countdown, records an in-flight session as abandoned,
// and releases all subscribers. Safe to call more than once.
func (s *TimerService) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true

	s.stopTickLocked()
	if s.sessionStart != nil {
		record := s.buildRecordLocked(false, s.now())
		s.recordSyncLocked(record)
	}
	s.state.IsRunning = false
	s.mu.Unlock()

	s.broker.Close()
	log.Printf("pomodoro timer destroyed")
}

func (s *TimerService) run(stop chan struct{}) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick advances the countdown by one second and handles a natural phase
// completion when it reaches zero. The countdown continues uninterrupted
// into the new phase.
func (s *TimerService) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsRunning {
		return
	}

	s.state.RemainingSeconds--
	if s.state.RemainingSeconds <= 0 {
		s.completePhaseLocked()
	}

	s.publishLocked(EventTick, nil)
}

func (s *TimerService) completePhaseLocked() {
	now := s.now()
	endedPhase := s.state.Phase
	cycleCount := s.state.SessionCount

	if s.sessionStart != nil {
		record := s.buildRecordLocked(true, now)
		// Stats writes never block the tick cadence; failures are logged.
		go s.persistAndRefresh(record, endedPhase)
		s.publishLocked(EventSessionCompleted, &model.SessionCompletion{
			Phase:        endedPhase,
			SessionCount: cycleCount,
		})
	}

	s.transitionLocked(now)
}

// transitionLocked applies the phase-transition table and stamps the new
// session start. Leaving Work always advances the cycle count, natural
// completion and skip alike.
func (s *TimerService) transitionLocked(now time.Time) {
	prev := s.state.Phase

	if prev == model.PhaseWork {
		s.state.SessionCount++
		if s.state.SessionCount%s.cfg.SessionsBeforeLongBreak == 0 {
			s.state.Phase = model.PhaseLongBreak
			s.state.RemainingSeconds = s.cfg.LongBreakDuration * 60
		} else {
			s.state.Phase = model.PhaseShortBreak
			s.state.RemainingSeconds = s.cfg.ShortBreakDuration * 60
		}
	} else {
		s.state.Phase = model.PhaseWork
		s.state.RemainingSeconds = s.cfg.WorkDuration * 60
		if prev == model.PhaseLongBreak {
			s.state.SessionCount = 0
		}
	}

	s.stampSessionStartLocked(now)

	log.Printf("phase transition: %s -> %s", prev, s.state.Phase)
	s.publishLocked(EventPhaseChanged, nil)
}

// buildRecordLocked turns the in-progress session into a record and clears
// the start marker, guaranteeing exactly one record per activation.
func (s *TimerService) buildRecordLocked(completed bool, now time.Time) model.SessionRecord {
	start := *s.sessionStart
	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	record := model.SessionRecord{
		StartTime:       start,
		EndTime:         now,
		Type:            s.state.Phase,
		DurationMinutes: int(elapsed / time.Minute),
		Completed:       completed,
	}

	s.sessionStart = nil
	s.state.CurrentSessionStartTime = nil
	return record
}

// recordSyncLocked writes a record before the caller proceeds, so a
// follow-up stats reload observes it. Failures are logged; the timer keeps
// going.
func (s *TimerService) recordSyncLocked(record model.SessionRecord) {
	if err := s.sessions.RecordSession(context.Background(), record); err != nil {
		log.Printf("record session statistics: %v", err)
	}
}

// persistAndRefresh is the fire-and-forget write path out of a tick: store
// the record, then refresh today's count once the write has landed.
func (s *TimerService) persistAndRefresh(record model.SessionRecord, endedPhase model.TimerPhase) {
	ctx := context.Background()
	if err := s.sessions.RecordSession(ctx, record); err != nil {
		log.Printf("record session statistics: %v", err)
	}
	if endedPhase != model.PhaseWork {
		return
	}
	total, err := s.sessions.GetTotalSessionsToday(ctx)
	if err != nil {
		log.Printf("refresh today's session count: %v", err)
		return
	}
	s.mu.Lock()
	s.state.TotalSessionsToday = total
	s.mu.Unlock()
}

func (s *TimerService) applyConfigLocked() {
	switch s.state.Phase {
	case model.PhaseShortBreak:
		s.state.RemainingSeconds = s.cfg.ShortBreakDuration * 60
	case model.PhaseLongBreak:
		s.state.RemainingSeconds = s.cfg.LongBreakDuration * 60
	default:
		s.state.RemainingSeconds = s.cfg.WorkDuration * 60
	}
}

func (s *TimerService) stampSessionStartLocked(now time.Time) {
	start := now
	s.sessionStart = &start
	s.state.CurrentSessionStartTime = &start
}

func (s *TimerService) stopTickLocked() {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

func (s *TimerService) snapshotLocked() model.PomodoroState {
	snapshot := s.state
	if s.state.CurrentSessionStartTime != nil {
		start := *s.state.CurrentSessionStartTime
		snapshot.CurrentSessionStartTime = &start
	}
	return snapshot
}

func (s *TimerService) publishLocked(eventType pubsub.EventType, completion *model.SessionCompletion) {
	s.broker.Publish(eventType, TimerEvent{
		State:      s.snapshotLocked(),
		Completion: completion,
	})
}
