package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiter_RefillsEvenly(t *testing.T) {
	t.Parallel()
	l := NewIPLimiter(30, 10*time.Minute)
	now := time.Unix(1_700_000_000, 0)

	for i := range 30 {
		assert.True(t, l.Allow("203.0.113.7", now), "request %d", i)
	}
	assert.False(t, l.Allow("203.0.113.7", now))
	assert.True(t, l.Allow("198.51.100.1", now))

	// 30 per 10 minutes is one token every 20s.
	assert.False(t, l.Allow("203.0.113.7", now.Add(19*time.Second)))
	assert.True(t, l.Allow("203.0.113.7", now.Add(21*time.Second)))
}

func TestIPLimiter_Disabled(t *testing.T) {
	t.Parallel()
	l := NewIPLimiter(0, time.Minute)
	assert.Nil(t, l)
	assert.True(t, l.Allow("203.0.113.7", time.Now()))
	assert.Zero(t, l.Len())
}

func TestIPLimiter_EvictsIdleBuckets(t *testing.T) {
	t.Parallel()
	l := NewIPLimiter(5, time.Minute)
	start := time.Unix(1_700_000_000, 0)
	l.Allow("192.0.2.1", start)

	later := start.Add(2 * time.Minute)
	for i := 1; i < limiterSweepEvery; i++ {
		l.Allow("192.0.2.2", later)
	}
	assert.Equal(t, 1, l.Len())
}
