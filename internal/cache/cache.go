package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// item is a cached value with its expiry in unix nanoseconds.
type item[V any] struct {
	value      V
	expiration int64
}

// Memo is an in-memory memoizer with per-entry expiry. Concurrent loads of the
// same key share one loader call. A load that overlaps Clear or ClearPrefix
// returns its value to its callers but does not store it.
type Memo[V any] struct {
	mu    sync.RWMutex
	items map[string]item[V]
	gen   uint64
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time
}

// New creates a Memo whose entries live for ttl.
func New[V any](ttl time.Duration) *Memo[V] {
	return &Memo[V]{
		items: make(map[string]item[V]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the cached value for key, calling load on a miss or after expiry.
// Loader errors are returned and not cached.
func (m *Memo[V]) Get(key string, load func() (V, error)) (V, error) {
	if v, ok := m.Peek(key); ok {
		return v, nil
	}
	gen := m.generation()
	// Loads started before a clear are not joined by callers arriving after it.
	flight := strconv.FormatUint(gen, 10) + "|" + key
	res, err, _ := m.group.Do(flight, func() (interface{}, error) {
		if v, ok := m.Peek(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return v, err
		}
		m.setIfGeneration(key, v, gen)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Peek returns a live entry without loading.
func (m *Memo[V]) Peek(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, found := m.items[key]
	if !found || m.now().UnixNano() > it.expiration {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Set stores value under key for the configured TTL.
func (m *Memo[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = item[V]{value: value, expiration: m.now().Add(m.ttl).UnixNano()}
}

func (m *Memo[V]) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

func (m *Memo[V]) setIfGeneration(key string, value V, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return
	}
	m.items[key] = item[V]{value: value, expiration: m.now().Add(m.ttl).UnixNano()}
}

// Delete removes one entry.
func (m *Memo[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
}

// Clear drops every entry and returns how many were removed.
func (m *Memo[V]) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.items)
	m.items = make(map[string]item[V])
	m.gen++
	return n
}

// ClearPrefix drops entries whose key starts with prefix and returns how many were removed.
func (m *Memo[V]) ClearPrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	n := 0
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

// Cleanup removes expired entries.
func (m *Memo[V]) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UnixNano()
	for k, v := range m.items {
		if now > v.expiration {
			delete(m.items, k)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
