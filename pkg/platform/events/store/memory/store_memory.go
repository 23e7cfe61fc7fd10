package memory

import (
	"context"
	"sync"

	id "attestry/pkg/domain"
	"attestry/pkg/platform/events"
)

// InMemoryStore keeps the notification journal in process memory. Order is
// append order, which tests rely on to assert emission sequence.
type InMemoryStore struct {
	mu     sync.RWMutex
	byAcct map[id.AccountID][]events.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byAcct: make(map[id.AccountID][]events.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAcct[event.Account] = append(s.byAcct[event.Account], event)
	return nil
}

func (s *InMemoryStore) ListByAccount(_ context.Context, account id.AccountID) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.byAcct[account]...), nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAcct = make(map[id.AccountID][]events.Event)
}
