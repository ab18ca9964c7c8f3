package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	c.RecordHit()
	c.RecordHit()
	c.RecordHit()
	c.RecordMiss()
	c.RecordBypass()
	c.RecordStale()
	c.RecordPrewarm(true)
	c.RecordPrewarm(true)
	c.RecordPrewarm(false)

	s := c.GetSnapshot()
	assert.Equal(t, int64(3), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, int64(1), s.Bypassed)
	assert.Equal(t, int64(1), s.StaleServed)
	assert.Equal(t, int64(2), s.Prewarmed)
	assert.Equal(t, int64(1), s.PrewarmFailed)
	assert.InDelta(t, 0.75, s.HitRate, 0.0001)
	assert.GreaterOrEqual(t, s.Uptime.Nanoseconds(), int64(0))
}

func TestCollector_HitRateWithoutTraffic(t *testing.T) {
	c := NewCollector()
	assert.Equal(t, 0.0, c.GetSnapshot().HitRate)

	// Bypasses alone never contribute to the hit rate.
	c.RecordBypass()
	assert.Equal(t, 0.0, c.GetSnapshot().HitRate)
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector()
	c.RecordHit()
	c.RecordMiss()
	c.Reset()

	s := c.GetSnapshot()
	assert.Equal(t, int64(0), s.Hits)
	assert.Equal(t, int64(0), s.Misses)
	assert.Equal(t, 0.0, s.HitRate)
}
