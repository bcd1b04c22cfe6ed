package rediscache_test

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis implements the SETNX and DEL subset of redis.Cmdable in memory.
// Any other command panics through the nil embedded interface.
type fakeRedis struct {
	redis.Cmdable

	mu      sync.Mutex
	keys    map[string]any
	deleted []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]any)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		f.deleted = append(f.deleted, k)
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keys[key]
	return ok
}

func (f *fakeRedis) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}
