package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/angelmondragon/ttd-workflows/pkg/redis"
)

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := newFakeRedis()
	a, err := NewRedisLock(store, "ttd:lock:delta-sync", time.Minute)
	require.NoError(t, err)
	b, err := NewRedisLock(store, "ttd:lock:delta-sync", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, store.ttls["ttd:lock:delta-sync"])

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Release(ctx))
	_, held := store.values["ttd:lock:delta-sync"]
	assert.True(t, held, "non-owner must not release")

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockLeavesForeignOwner(t *testing.T) {
	store := newFakeRedis()
	lock, err := NewRedisLock(store, "k", 0)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, defaultLockTTL, store.ttls["k"])

	// The TTL expired and another replica took over.
	store.values["k"] = "someone-else"
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "someone-else", store.values["k"])
}

func TestRedisLockErrors(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Second)
	assert.Error(t, err)
	_, err = NewRedisLock(newFakeRedis(), "", time.Second)
	assert.Error(t, err)

	store := newFakeRedis()
	store.setErr = errors.New("connection refused")
	lock, err := NewRedisLock(store, "k", time.Second)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestLocalLock(t *testing.T) {
	var lock LocalLock
	ctx := context.Background()
	ok, _ := lock.Acquire(ctx)
	assert.True(t, ok)
	ok, _ = lock.Acquire(ctx)
	assert.False(t, ok)
	require.NoError(t, lock.Release(ctx))
	ok, _ = lock.Acquire(ctx)
	assert.True(t, ok)
}
