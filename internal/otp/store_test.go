package otp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*MemoryStore, *time.Time) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &MemoryStore{
		records: make(map[string]Record),
		now:     func() time.Time { return now },
	}
	return s, &now
}

func TestMemoryStore_consumeOnce(t *testing.T) {
	s, now := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "09120000000", Record{Code: "1234", ExpiresAt: now.Add(3 * time.Minute)}))

	ok, err := s.Consume(ctx, "09120000000", "1234")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, "09120000000", "1234")
	require.NoError(t, err)
	assert.False(t, ok, "a code is single use")
}

func TestMemoryStore_expiredBehavesAsAbsent(t *testing.T) {
	s, now := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "09120000000", Record{Code: "1234", ExpiresAt: now.Add(3 * time.Minute)}))

	*now = now.Add(3*time.Minute + time.Second)
	ok, err := s.Consume(ctx, "09120000000", "1234")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_mismatchKeepsRecord(t *testing.T) {
	s, now := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "09120000000", Record{Code: "1234", ExpiresAt: now.Add(3 * time.Minute)}))

	ok, err := s.Consume(ctx, "09120000000", "9999")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Consume(ctx, "09120000000", "1234")
	require.NoError(t, err)
	assert.True(t, ok, "a wrong guess must not consume the record")
}

func TestMemoryStore_putReplaces(t *testing.T) {
	s, now := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "09120000000", Record{Code: "1111", ExpiresAt: now.Add(3 * time.Minute)}))
	require.NoError(t, s.Put(ctx, "09120000000", Record{Code: "2222", ExpiresAt: now.Add(3 * time.Minute)}))

	ok, err := s.Consume(ctx, "09120000000", "1111")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Consume(ctx, "09120000000", "2222")
	require.NoError(t, err)
	assert.True(t, ok)
}
