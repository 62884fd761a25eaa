package nonce

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreFirstUseIsNotSeen(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	seen, err := s.SeenBefore(context.Background(), "n1", now)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryStoreReplayWithinWindowIsSeen(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	_, err := s.SeenBefore(context.Background(), "n1", now)
	require.NoError(t, err)

	seen, err := s.SeenBefore(context.Background(), "n1", now.Add(Window-time.Second))
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryStoreReplayAfterWindowIsNotSeen(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	_, err := s.SeenBefore(context.Background(), "n1", now)
	require.NoError(t, err)

	seen, err := s.SeenBefore(context.Background(), "n1", now.Add(Window+time.Second))
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryStoreTracksNoncesIndependently(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	_, err := s.SeenBefore(context.Background(), "n1", now)
	require.NoError(t, err)

	seen, err := s.SeenBefore(context.Background(), "n2", now)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = s.SeenBefore(context.Background(), "n1", now)
	require.NoError(t, err)
	assert.True(t, seen)
}
