package clock

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAbsoluteExpiry(t *testing.T) {
	var tests = []struct {
		name string
		now  int64
		ttl  int64
		want int64
	}{
		{"negative ttl never expires", 10, -1, NeverExpires},
		{"any negative ttl never expires", 10, -42, NeverExpires},
		{"zero ttl expires at now", 10, 0, 10},
		{"positive ttl is added to now", 10, 5, 15},
		{"huge ttl saturates", 10, math.MaxInt64, math.MaxInt64},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := NewManual(test.now)
			assert.Equal(t, test.want, c.ToAbsoluteExpiry(test.ttl))
		})
	}
}

func TestHasExpired(t *testing.T) {
	var tests = []struct {
		name   string
		now    int64
		expiry int64
		want   bool
	}{
		{"sentinel never expires", 1000, NeverExpires, false},
		{"other negatives never expire", 1000, -7, false},
		{"expiry equal to now is still live", 10, 10, false},
		{"expiry in the future is live", 10, 11, false},
		{"expiry in the past has expired", 10, 9, true},
		{"zero expiry after start has expired", 1, 0, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := NewManual(test.now)
			assert.Equal(t, test.want, c.HasExpired(test.expiry))
		})
	}
}

func TestManualOnlyMovesForward(t *testing.T) {
	c := NewManual(5)

	c.Advance(3)
	require.Equal(t, int64(8), c.NowOffset())

	c.Advance(-10)
	require.Equal(t, int64(8), c.NowOffset())

	c.Set(2)
	require.Equal(t, int64(8), c.NowOffset())

	c.Set(20)
	require.Equal(t, int64(20), c.NowOffset())
}

func TestProcessClock(t *testing.T) {
	c := NewProcess()

	first := c.NowOffset()
	assert.Equal(t, int64(0), first)
	assert.WithinDuration(t, time.Now(), c.Started(), time.Second)
	assert.GreaterOrEqual(t, c.NowOffset(), first)

	assert.Equal(t, NeverExpires, c.ToAbsoluteExpiry(-1))
	assert.Equal(t, int64(100), c.ToAbsoluteExpiry(100)-c.NowOffset())
	assert.False(t, c.HasExpired(c.ToAbsoluteExpiry(0)))
	assert.False(t, c.HasExpired(NeverExpires))
}
