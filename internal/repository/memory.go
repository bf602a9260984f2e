package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
	"gopkg.in/guregu/null.v4"
)

// MemoryStore keeps tickets in insertion order behind a single RWMutex.
//
// Check-in and checkout take the write lock for their whole check-then-act
// sequence, so two racing check-ins cannot both take the last spot and two
// racing checkouts cannot both charge the same ticket. Readers take the read
// lock and receive copies; nothing outside the store ever holds a pointer
// into the slice.
type MemoryStore struct {
	mu       sync.RWMutex
	tickets  []model.Ticket
	index    map[string]int
	occupied int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Insert appends t if admit allows one more vehicle.
func (s *MemoryStore) Insert(_ context.Context, t model.Ticket, admit AdmitFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[t.ID]; ok {
		return ErrDuplicateID
	}
	if !admit(s.occupied) {
		return ErrCapacityExceeded
	}

	t.ExitTime = null.Time{}
	t.Fee = null.Int{}
	s.index[t.ID] = len(s.tickets)
	s.tickets = append(s.tickets, t)
	s.occupied++
	return nil
}

// Checkout closes the active ticket id at exitAt with the fee from price.
func (s *MemoryStore) Checkout(_ context.Context, id string, exitAt time.Time, price PriceFunc) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	t := s.tickets[i]
	if !t.Active() {
		return nil, ErrAlreadyCompleted
	}

	fee, err := price(t)
	if err != nil {
		return nil, fmt.Errorf("price ticket: %w", err)
	}

	t.ExitTime = null.TimeFrom(exitAt)
	t.Fee = null.IntFrom(fee)
	s.tickets[i] = t
	s.occupied--
	return &t, nil
}

// Get returns a copy of the ticket with the given id.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	t := s.tickets[i]
	return &t, nil
}

// Snapshot returns a copy of every ticket, most recent first.
func (s *MemoryStore) Snapshot(_ context.Context) ([]model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reverse(s.tickets), nil
}
