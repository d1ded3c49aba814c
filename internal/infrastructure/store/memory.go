package store

import (
	"context"
	"sync"

	"github.com/flipfinder/backend/internal/domain"
)

// MemoryStore is an in-process account and usage store for development and tests
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	byEmail  map[string]string
	usage    map[usageKey]map[string]int
}

type usageKey struct {
	accountID string
	period    string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]domain.Account),
		byEmail:  make(map[string]string),
		usage:    make(map[usageKey]map[string]int),
	}
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &account, nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	account := s.accounts[id]
	return &account, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.accounts[account.ID]; ok && previous.Email != account.Email {
		delete(s.byEmail, previous.Email)
	}
	s.accounts[account.ID] = *account
	s.byEmail[account.Email] = account.ID
	return nil
}

// GetUsage returns the total number of calls across operations in the period
func (s *MemoryStore) GetUsage(ctx context.Context, accountID, period string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, n := range s.usage[usageKey{accountID, period}] {
		total += n
	}
	return total, nil
}

// IncrementUsage adds one call and returns the new period total
func (s *MemoryStore) IncrementUsage(ctx context.Context, accountID, period, operation string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := usageKey{accountID, period}
	if s.usage[key] == nil {
		s.usage[key] = make(map[string]int)
	}
	s.usage[key][operation]++

	total := 0
	for _, n := range s.usage[key] {
		total += n
	}
	return total, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
