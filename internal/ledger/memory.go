package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store used by tests and local development.
type MemStore struct {
	mu     sync.Mutex
	byRef  map[string]*Transaction
	events []Event
}

// NewMemStore returns an empty in-memory ledger.
func NewMemStore() *MemStore {
	return &MemStore{byRef: map[string]*Transaction{}}
}

// Put inserts or replaces a transaction. Missing IDs and timestamps are filled in.
func (s *MemStore) Put(tx Transaction) Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	now := time.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	stored := tx
	s.byRef[tx.Reference] = &stored
	return stored
}

// FindByReference returns the transaction with the given reference.
func (s *MemStore) FindByReference(_ context.Context, reference string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byRef[reference]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return *tx, nil
}

// MarkPaid transitions the transaction to paid.
func (s *MemStore) MarkPaid(_ context.Context, reference, message string) error {
	return s.setStatus(reference, StatusPaid, message)
}

// MarkFailed transitions the transaction to failed.
func (s *MemStore) MarkFailed(_ context.Context, reference, message string) error {
	return s.setStatus(reference, StatusFailed, message)
}

// MarkCanceled transitions the transaction to canceled.
func (s *MemStore) MarkCanceled(_ context.Context, reference, message string) error {
	return s.setStatus(reference, StatusCanceled, message)
}

// Events returns a copy of the recorded transition events.
func (s *MemStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *MemStore) setStatus(reference string, status Status, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byRef[reference]
	if !ok {
		return ErrNotFound
	}
	if tx.Status == status {
		// Redelivered notification; nothing changed, no event.
		return nil
	}
	from := tx.Status
	tx.Status = status
	tx.StatusMessage = message
	tx.UpdatedAt = time.Now()
	s.events = append(s.events, Event{
		Reference:  reference,
		From:       from,
		To:         status,
		Message:    message,
		OccurredAt: tx.UpdatedAt,
	})
	return nil
}
