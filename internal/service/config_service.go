package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"pomobot/backend/internal/model"
	"pomobot/backend/internal/repository"
)

const configCacheKey = "pomodoro-config"

// ConfigService is the configuration store: a validated write path over the
// singleton row plus a short-TTL read cache. Reads never fail; on
// persistence trouble the last good value (or the defaults) is returned.
type ConfigService struct {
	repo  *repository.ConfigRepository
	cache *gocache.Cache
	ttl   time.Duration

	mu       sync.Mutex
	lastGood *model.PomodoroConfig
}

func NewConfigService(repo *repository.ConfigRepository, ttl time.Duration) *ConfigService {
	return &ConfigService{
		repo:  repo,
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

// GetConfig returns the persisted configuration, seeding the row with
// defaults the first time around. It never returns an error.
func (s *ConfigService) GetConfig(ctx context.Context) model.PomodoroConfig {
	if cached, found := s.cache.Get(configCacheKey); found {
		if cfg, ok := cached.(model.PomodoroConfig); ok {
			return cfg
		}
	}

	cfg, err := s.repo.Get(ctx)
	if err == repository.ErrNotFound {
		cfg = model.DefaultConfig()
		if saveErr := s.repo.Save(ctx, cfg); saveErr != nil {
			log.Printf("seed default pomodoro config: %v", saveErr)
		}
	} else if err != nil {
		log.Printf("load pomodoro config, falling back: %v", err)
		return s.fallback()
	}

	s.cache.Set(configCacheKey, cfg, s.ttl)
	s.remember(cfg)
	return cfg
}

// UpdateConfig merges the partial update over the persisted config,
// validates all four fields as a unit, and persists atomically. On any
// violation nothing is written and the error names the offending fields.
func (s *ConfigService) UpdateConfig(ctx context.Context, update model.ConfigUpdate) (model.PomodoroConfig, error) {
	current, err := s.repo.Get(ctx)
	if err == repository.ErrNotFound {
		current = model.DefaultConfig()
	} else if err != nil {
		return model.PomodoroConfig{}, fmt.Errorf("load config for update: %w", err)
	}

	merged := update.ApplyTo(current)
	if err := merged.Validate(); err != nil {
		return model.PomodoroConfig{}, err
	}

	if err := s.repo.Save(ctx, merged); err != nil {
		return model.PomodoroConfig{}, fmt.Errorf("persist config: %w", err)
	}

	s.cache.Delete(configCacheKey)
	s.remember(merged)
	log.Printf("pomodoro config updated: work=%dm short=%dm long=%dm sessions=%d",
		merged.WorkDuration, merged.ShortBreakDuration, merged.LongBreakDuration, merged.SessionsBeforeLongBreak)
	return merged, nil
}

// ResetToDefaults overwrites the persisted config with the defaults.
func (s *ConfigService) ResetToDefaults(ctx context.Context) (model.PomodoroConfig, error) {
	defaults := model.DefaultConfig()
	if err := s.repo.Save(ctx, defaults); err != nil {
		return model.PomodoroConfig{}, fmt.Errorf("reset config: %w", err)
	}
	s.cache.Delete(configCacheKey)
	s.remember(defaults)
	log.Printf("pomodoro config reset to defaults")
	return defaults, nil
}

func (s *ConfigService) remember(cfg model.PomodoroConfig) {
	s.mu.Lock()
	s.lastGood = &cfg
	s.mu.Unlock()
}

func (s *ConfigService) fallback() model.PomodoroConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastGood != nil {
		return *s.lastGood
	}
	return model.DefaultConfig()
}
