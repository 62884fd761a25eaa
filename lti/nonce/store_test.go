package nonce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreDefaultsToMemory(t *testing.T) {
	for _, dsn := range []string{"", "mem://"} {
		store, err := NewStore(context.Background(), dsn)
		require.NoError(t, err, "dsn %q", dsn)
		assert.IsType(t, &MemoryStore{}, store)
	}
}

func TestNewStoreBuildsRedis(t *testing.T) {
	store, err := NewStore(context.Background(), "redis://localhost:6379/2")
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)
}

func TestNewStoreBuildsConsul(t *testing.T) {
	store, err := NewStore(context.Background(), "consul://localhost:8500")
	require.NoError(t, err)
	assert.IsType(t, &ConsulStore{}, store)
}

func TestNewStoreBuildsDynamo(t *testing.T) {
	store, err := NewStore(context.Background(), "dynamodb://lti-nonces")
	require.NoError(t, err)
	assert.IsType(t, &DynamoStore{}, store)
}

func TestNewStoreRejectsBadDSNs(t *testing.T) {
	_, err := NewStore(context.Background(), "dynamodb://")
	require.Error(t, err)

	_, err = NewStore(context.Background(), "postgres://localhost/nonces")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported nonce store scheme")
}

func TestNewStoreRejectsBadRedisURL(t *testing.T) {
	_, err := NewStore(context.Background(), "redis://localhost:notaport")
	require.Error(t, err)
}
