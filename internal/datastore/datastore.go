package datastore

// Record is the value stored per key.
type Record struct {
	Payload string
	// Expiry is an absolute offset on the store's clock, or
	// clock.NeverExpires.
	Expiry int64
}

// Entry is one live record as reported by Stats.
type Entry struct {
	Key string
	Record
}

// Pong is the fixed reply to Ping.
const Pong = "PONG"

// Datastore defines the operations the command layer needs.
// Implementations must be safe for concurrent use and must never hand out
// references into their internal state.
type Datastore interface {
	Set(key, payload string, ttl int64)
	Get(key string) (Record, bool)
	Delete(key string)
	Stats() []Entry
	Ping() string
}

// Sweeper is implemented by stores that can drop expired records eagerly.
type Sweeper interface {
	Sweep(limit int) int
}
