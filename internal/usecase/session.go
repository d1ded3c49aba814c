package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/flipfinder/backend/internal/domain"
)

// Keys under which the session is persisted
const (
	settingsKey = "settings"
	statsKey    = "stats"
)

// Session holds the scanner's settings and running stats. Settings are loaded once
// and only written back on an explicit save; stats are written after every result.
type Session struct {
	store    domain.KeyValueStore
	validate *validator.Validate
	now      func() time.Time

	mu       sync.RWMutex
	settings domain.Settings
	stats    domain.Stats

	// persistMu orders stats writes so the store never ends up with an older snapshot
	persistMu sync.Mutex
}

// NewSession creates a session backed by store. Call Load before use.
func NewSession(store domain.KeyValueStore) *Session {
	return &Session{
		store:    store,
		validate: validator.New(),
		now:      time.Now,
		settings: domain.DefaultSettings(),
	}
}

// Load reads settings and stats from the store. A fresh store gets the install
// defaults written to it.
func (s *Session) Load(ctx context.Context) error {
	settings := domain.DefaultSettings()
	found, err := s.read(ctx, settingsKey, &settings)
	if err != nil {
		return err
	}
	if !found {
		if err := s.write(ctx, settingsKey, settings); err != nil {
			return err
		}
	}

	var stats domain.Stats
	if _, err := s.read(ctx, statsKey, &stats); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	s.stats = stats
	s.mu.Unlock()
	return nil
}

// Settings returns a copy of the current settings
func (s *Session) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SaveSettings validates and persists settings
func (s *Session) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if err := s.validate.Struct(settings); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if settings.Credentials.ProxyToken != "" && settings.Credentials.ProxyURL == "" {
		return fmt.Errorf("%w: proxy URL is required with a proxy token", domain.ErrInvalidRequest)
	}

	if err := s.write(ctx, settingsKey, settings); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// Stats returns a copy of the running counters
func (s *Session) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// RecordResult folds one enrichment result into the stats and persists them.
// Remote calls count toward API usage whether or not the result succeeded.
func (s *Session) RecordResult(ctx context.Context, result domain.EnrichmentResult) (domain.Stats, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if result.RemoteCalls > 0 {
		s.stats.APIUsageCount += result.RemoteCalls
		s.stats.LastAPICall = s.now()
	}
	if result.OK() {
		s.stats.ListingsAnalyzed++
		if result.Profit > 0 && result.Profit >= s.settings.MinProfitThreshold {
			s.stats.ProfitableDeals++
			s.stats.TotalPotentialProfit += result.Profit
		}
	}
	stats := s.stats
	s.mu.Unlock()

	if err := s.write(ctx, statsKey, stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// ResetStats zeroes the counters
func (s *Session) ResetStats(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.stats = domain.Stats{}
	s.mu.Unlock()
	return s.write(ctx, statsKey, domain.Stats{})
}

func (s *Session) read(ctx context.Context, key string, into interface{}) (bool, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Session) write(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
