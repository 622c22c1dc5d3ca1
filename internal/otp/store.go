package otp

import (
	"context"
	"sync"
	"time"
)

// Record is a pending one-time code for a phone number.
type Record struct {
	Code      string
	ExpiresAt time.Time
}

// Store keeps pending codes keyed by normalized phone number. A record past
// its expiry must behave as absent whether or not it was physically removed.
type Store interface {
	// Put stores rec for phone, replacing any pending record.
	Put(ctx context.Context, phone string, rec Record) error
	// Consume checks code against the pending record for phone. On a match
	// the record is deleted (single use) and Consume reports true. An absent,
	// expired, or mismatched record reports false; a mismatch leaves the
	// record in place so the user may retry within the TTL.
	Consume(ctx context.Context, phone, code string) (bool, error)
}

// MemoryStore is the process-local Store. Codes are lost on restart, which is
// acceptable: the user simply requests a new one.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore creates an in-memory OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, phone string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[phone] = rec
	return nil
}

// Consume implements Store. Expired records are deleted lazily on lookup.
func (s *MemoryStore) Consume(_ context.Context, phone, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[phone]
	if !ok {
		return false, nil
	}
	if s.now().After(rec.ExpiresAt) {
		delete(s.records, phone)
		return false, nil
	}
	if rec.Code != code {
		return false, nil
	}
	delete(s.records, phone)
	return true, nil
}
