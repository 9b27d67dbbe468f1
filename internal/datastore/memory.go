package datastore

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/UltraSive/ttlkv/internal/clock"
)

// DefaultShards is used when NewMemory is given a non-positive shard count.
const DefaultShards = 16

type shard struct {
	mu    sync.RWMutex
	items map[string]Record
}

// Memory is an in-memory Datastore. Keys are spread over shards by hash and
// each shard is guarded by its own RWMutex: reads of a shard run together,
// writes run alone.
type Memory struct {
	clock  clock.Clock
	shards []*shard
}

func NewMemory(c clock.Clock, shards int) *Memory {
	if shards <= 0 {
		shards = DefaultShards
	}
	m := &Memory{
		clock:  c,
		shards: make([]*shard, shards),
	}
	for i := range m.shards {
		m.shards[i] = &shard{items: make(map[string]Record)}
	}
	return m
}

func (m *Memory) shardFor(key string) *shard {
	return m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

func (m *Memory) Set(key, payload string, ttl int64) {
	rec := Record{Payload: payload, Expiry: m.clock.ToAbsoluteExpiry(ttl)}
	s := m.shardFor(key)
	s.mu.Lock()
	s.items[key] = rec
	s.mu.Unlock()
}

// Get returns the record for key. An expired record is removed and reported
// as missing.
func (m *Memory) Get(key string) (Record, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	rec, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false
	}
	if !m.clock.HasExpired(rec.Expiry) {
		return rec, true
	}

	s.mu.Lock()
	// Another writer may have replaced the record since the read lock was
	// released; only drop it if what is resident now is still expired.
	if cur, ok := s.items[key]; ok && m.clock.HasExpired(cur.Expiry) {
		delete(s.items, key)
	}
	s.mu.Unlock()
	return Record{}, false
}

func (m *Memory) Delete(key string) {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Stats lists every live record. Expired records are skipped, not removed.
func (m *Memory) Stats() []Entry {
	var out []Entry
	for _, s := range m.shards {
		s.mu.RLock()
		for k, rec := range s.items {
			if m.clock.HasExpired(rec.Expiry) {
				continue
			}
			out = append(out, Entry{Key: k, Record: rec})
		}
		s.mu.RUnlock()
	}
	return out
}

func (m *Memory) Ping() string { return Pong }

// Len counts resident records, including expired ones nobody has read yet.
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Sweep removes up to limit expired records and returns how many it removed.
// A limit <= 0 removes all of them.
func (m *Memory) Sweep(limit int) int {
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, rec := range s.items {
			if limit > 0 && removed >= limit {
				break
			}
			if m.clock.HasExpired(rec.Expiry) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
		if limit > 0 && removed >= limit {
			break
		}
	}
	return removed
}
