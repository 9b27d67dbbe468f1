package clock

import (
	"math"
	"sync"
	"time"
)

// NeverExpires is the stored expiry of a record without a TTL.
const NeverExpires int64 = -1

// Clock measures time in whole seconds since a fixed reference point and
// converts relative TTLs into absolute expiry values on that scale.
type Clock interface {
	NowOffset() int64
	ToAbsoluteExpiry(ttl int64) int64
	HasExpired(expiry int64) bool
}

// Process is a Clock anchored at the instant it was created.
// Expiry values are only meaningful within the process that produced them.
type Process struct {
	start time.Time
}

func NewProcess() *Process {
	return &Process{start: time.Now()}
}

// Started returns the reference instant.
func (p *Process) Started() time.Time { return p.start }

// NowOffset relies on the monotonic reading carried by start, so it never
// goes backwards when the wall clock is adjusted.
func (p *Process) NowOffset() int64 {
	return int64(time.Since(p.start) / time.Second)
}

func (p *Process) ToAbsoluteExpiry(ttl int64) int64 {
	return absolute(p.NowOffset(), ttl)
}

func (p *Process) HasExpired(expiry int64) bool {
	return expired(p.NowOffset(), expiry)
}

// Manual is a Clock whose offset only moves when told to.
type Manual struct {
	mu  sync.RWMutex
	now int64
}

func NewManual(offset int64) *Manual {
	return &Manual{now: offset}
}

func (m *Manual) NowOffset() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Advance moves the clock forward by d seconds. Negative values are ignored.
func (m *Manual) Advance(d int64) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}

// Set moves the clock to offset if that is not earlier than the current one.
func (m *Manual) Set(offset int64) {
	m.mu.Lock()
	if offset > m.now {
		m.now = offset
	}
	m.mu.Unlock()
}

func (m *Manual) ToAbsoluteExpiry(ttl int64) int64 {
	return absolute(m.NowOffset(), ttl)
}

func (m *Manual) HasExpired(expiry int64) bool {
	return expired(m.NowOffset(), expiry)
}

func absolute(now, ttl int64) int64 {
	if ttl < 0 {
		return NeverExpires
	}
	if ttl > math.MaxInt64-now {
		return math.MaxInt64
	}
	return now + ttl
}

// expired treats every negative expiry as "no expiry", not just the sentinel.
func expired(now, expiry int64) bool {
	if expiry < 0 {
		return false
	}
	return expiry < now
}
