package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pomobot/backend/internal/model"
	"pomobot/backend/internal/pubsub"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeConfigStore struct {
	mu  sync.Mutex
	cfg model.PomodoroConfig
}

func (f *fakeConfigStore) GetConfig(_ context.Context) model.PomodoroConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *fakeConfigStore) UpdateConfig(_ context.Context, update model.ConfigUpdate) (model.PomodoroConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	merged := update.ApplyTo(f.cfg)
	if err := merged.Validate(); err != nil {
		return model.PomodoroConfig{}, err
	}
	f.cfg = merged
	return merged, nil
}

type fakeSessionStore struct {
	mu      sync.Mutex
	records []model.SessionRecord
}

func (f *fakeSessionStore) RecordSession(_ context.Context, record model.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeSessionStore) GetTotalSessionsToday(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, record := range f.records {
		if record.Completed && record.Type == model.PhaseWork {
			count++
		}
	}
	return count, nil
}

func (f *fakeSessionStore) Records() []model.SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.SessionRecord, len(f.records))
	copy(out, f.records)
	return out
}

func newTestTimer(t *testing.T, cfg model.PomodoroConfig) (*TimerService, *fakeClock, *fakeSessionStore) {
	t.Helper()
	clock := newFakeClock()
	store := &fakeSessionStore{}
	svc := NewTimerService(&fakeConfigStore{cfg: cfg}, store)
	svc.now = clock.Now
	// Tests drive tick() directly; keep the real ticker out of the way.
	svc.tickInterval = time.Hour
	svc.cfg = cfg
	svc.state.RemainingSeconds = cfg.WorkDuration * 60
	t.Cleanup(svc.Destroy)
	return svc, clock, store
}

func advanceTicks(svc *TimerService, clock *fakeClock, n int) {
	for i := 0; i < n; i++ {
		clock.Advance(time.Second)
		svc.tick()
	}
}

func TestPhaseCycleLongBreakEveryN(t *testing.T) {
	cfg := model.PomodoroConfig{WorkDuration: 1, ShortBreakDuration: 1, LongBreakDuration: 2, SessionsBeforeLongBreak: 2}
	svc, clock, _ := newTestTimer(t, cfg)
	svc.Start()

	advanceTicks(svc, clock, 60) // first work session completes
	state := svc.GetState()
	require.Equal(t, model.PhaseShortBreak, state.Phase)
	require.Equal(t, 1, state.SessionCount)
	require.Equal(t, 60, state.RemainingSeconds)

	advanceTicks(svc, clock, 60) // short break completes
	state = svc.GetState()
	require.Equal(t, model.PhaseWork, state.Phase)
	require.Equal(t, 1, state.SessionCount)

	advanceTicks(svc, clock, 60) // second work session: N reached
	state = svc.GetState()
	require.Equal(t, model.PhaseLongBreak, state.Phase)
	require.Equal(t, 2, state.SessionCount)
	require.Equal(t, 120, state.RemainingSeconds)

	advanceTicks(svc, clock, 120) // long break ends, cycle resets
	state = svc.GetState()
	require.Equal(t, model.PhaseWork, state.Phase)
	require.Equal(t, 0, state.SessionCount)
	require.True(t, state.IsRunning)
}

func TestPauseRecordsAbandonedSlice(t *testing.T) {
	svc, clock, store := newTestTimer(t, model.DefaultConfig())
	svc.Start()

	advanceTicks(svc, clock, 185) // 3m05s into the work block
	svc.Pause()

	records := store.Records()
	require.Len(t, records, 1)
	require.False(t, records[0].Completed)
	require.Equal(t, model.PhaseWork, records[0].Type)
	require.Equal(t, 3, records[0].DurationMinutes)

	state := svc.GetState()
	require.False(t, state.IsRunning)
	require.Nil(t, state.CurrentSessionStartTime)

	// Pausing again is a no-op and must not double-record.
	svc.Pause()
	require.Len(t, store.Records(), 1)
}

func TestNaturalCompletionRecordsFullDuration(t *testing.T) {
	cfg := model.PomodoroConfig{WorkDuration: 2, ShortBreakDuration: 1, LongBreakDuration: 2, SessionsBeforeLongBreak: 4}
	svc, clock, store := newTestTimer(t, cfg)
	svc.Start()

	advanceTicks(svc, clock, 120)

	require.Eventually(t, func() bool {
		return len(store.Records()) == 1
	}, time.Second, 5*time.Millisecond)

	records := store.Records()
	require.True(t, records[0].Completed)
	require.Equal(t, model.PhaseWork, records[0].Type)
	require.Equal(t, 2, records[0].DurationMinutes)

	// The completed work session must show up in today's total.
	require.Eventually(t, func() bool {
		return svc.GetState().TotalSessionsToday == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSkipCyclesThroughDefaultConfig(t *testing.T) {
	svc, clock, store := newTestTimer(t, model.DefaultConfig())
	svc.Start()

	want := []struct {
		phase model.TimerPhase
		count int
	}{
		{model.PhaseShortBreak, 1},
		{model.PhaseWork, 1},
		{model.PhaseShortBreak, 2},
		{model.PhaseWork, 2},
		{model.PhaseShortBreak, 3},
		{model.PhaseWork, 3},
		{model.PhaseShortBreak, 4},
		{model.PhaseWork, 4},
		{model.PhaseLongBreak, 5},
		{model.PhaseWork, 0},
	}

	for i, step := range want {
		clock.Advance(time.Second)
		svc.Skip()
		state := svc.GetState()
		require.Equal(t, step.phase, state.Phase, "after skip %d", i+1)
		require.Equal(t, step.count, state.SessionCount, "after skip %d", i+1)
		require.True(t, state.IsRunning, "after skip %d", i+1)
	}

	records := store.Records()
	require.Len(t, records, 10)
	byType := map[model.TimerPhase]int{}
	for _, record := range records {
		require.False(t, record.Completed)
		byType[record.Type]++
	}
	require.Equal(t, 5, byType[model.PhaseWork])
	require.Equal(t, 4, byType[model.PhaseShortBreak])
	require.Equal(t, 1, byType[model.PhaseLongBreak])

	// Skipped sessions never count toward today's completed total.
	require.Equal(t, 0, svc.GetState().TotalSessionsToday)
}

func TestResetReturnsToFreshWorkPhase(t *testing.T) {
	svc, clock, store := newTestTimer(t, model.DefaultConfig())

	// Seed one completed work session so the reload is observable.
	seedStart := clock.Now().Add(-time.Hour)
	require.NoError(t, store.RecordSession(context.Background(), model.SessionRecord{
		StartTime: seedStart, EndTime: seedStart.Add(80 * time.Minute),
		Type: model.PhaseWork, DurationMinutes: 80, Completed: true,
	}))

	svc.Start()
	advanceTicks(svc, clock, 90)
	svc.Reset()

	state := svc.GetState()
	require.Equal(t, model.PhaseWork, state.Phase)
	require.Equal(t, model.DefaultWorkDuration*60, state.RemainingSeconds)
	require.False(t, state.IsRunning)
	require.Equal(t, 0, state.SessionCount)
	require.Equal(t, 1, state.TotalSessionsToday)
	require.Nil(t, state.CurrentSessionStartTime)

	// The interrupted slice was recorded exactly once, as not completed.
	records := store.Records()
	require.Len(t, records, 2)
	require.False(t, records[1].Completed)
	require.Equal(t, 1, records[1].DurationMinutes)
}

func TestDestroyIsIdempotent(t *testing.T) {
	svc, clock, store := newTestTimer(t, model.DefaultConfig())
	svc.Start()
	advanceTicks(svc, clock, 30)

	svc.Destroy()
	svc.Destroy()

	records := store.Records()
	require.Len(t, records, 1)
	require.False(t, records[0].Completed)

	// A destroyed engine ignores further control calls.
	svc.Start()
	require.False(t, svc.GetState().IsRunning)
}

func TestStartWhileRunningIsNoOp(t *testing.T) {
	svc, clock, store := newTestTimer(t, model.DefaultConfig())
	svc.Start()
	firstStart := svc.GetState().CurrentSessionStartTime
	require.NotNil(t, firstStart)

	advanceTicks(svc, clock, 5)
	svc.Start()
	require.Equal(t, *firstStart, *svc.GetState().CurrentSessionStartTime)

	svc.Pause()
	require.Len(t, store.Records(), 1)
}

func TestUpdateConfigReappliesActivePhase(t *testing.T) {
	svc, _, _ := newTestTimer(t, model.DefaultConfig())

	work := 50
	cfg, err := svc.UpdateConfig(context.Background(), model.ConfigUpdate{WorkDuration: &work})
	require.NoError(t, err)
	require.Equal(t, 50, cfg.WorkDuration)
	require.Equal(t, 50*60, svc.GetState().RemainingSeconds)

	// An out-of-bounds update is rejected whole and changes nothing.
	bad := 0
	_, err = svc.UpdateConfig(context.Background(), model.ConfigUpdate{WorkDuration: &bad})
	var vErr *model.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Fields, 1)
	require.Contains(t, vErr.Fields[0], "workDuration")
	require.Equal(t, 50*60, svc.GetState().RemainingSeconds)
}

func TestCompletionEventsArriveInOrder(t *testing.T) {
	cfg := model.PomodoroConfig{WorkDuration: 1, ShortBreakDuration: 1, LongBreakDuration: 1, SessionsBeforeLongBreak: 4}
	svc, clock, _ := newTestTimer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := svc.Subscribe(ctx)

	var mu sync.Mutex
	var seen []pubsub.EventType
	go func() {
		for event := range events {
			mu.Lock()
			seen = append(seen, event.Type)
			mu.Unlock()
		}
	}()

	svc.Start()
	advanceTicks(svc, clock, 60)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, et := range seen {
			if et == EventPhaseChanged {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	completedAt, changedAt := -1, -1
	for i, et := range seen {
		if et == EventSessionCompleted && completedAt == -1 {
			completedAt = i
		}
		if et == EventPhaseChanged && changedAt == -1 {
			changedAt = i
		}
	}
	require.Equal(t, EventResumed, seen[0])
	require.GreaterOrEqual(t, completedAt, 0, "expected a sessionCompleted event")
	require.Less(t, completedAt, changedAt, "sessionCompleted must precede phaseChanged")
}
