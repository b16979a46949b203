package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) ReleaseIfOwner(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	first, err := NewRedisLock(store, "sf:lock:cron", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "sf:lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(context.Background()))
	assert.Contains(t, store.values, "sf:lock:cron", "non-owner must not release")

	require.NoError(t, first.Release(context.Background()))
	assert.NotContains(t, store.values, "sf:lock:cron")
}

func TestRedisLockValidatesInput(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	assert.Error(t, err)
	_, err = NewRedisLock(&memoryLockStore{}, "", 0)
	assert.Error(t, err)

	lock, err := NewRedisLock(&memoryLockStore{values: map[string]string{}}, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)
}
