package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatency_Summary(t *testing.T) {
	l := NewLatency()
	for i := 1; i <= 100; i++ {
		l.Record(time.Duration(i) * time.Millisecond)
	}
	l.RecordFailure()

	s := l.Summary()
	assert.Equal(t, int64(100), s.Count)
	assert.Equal(t, int64(1), s.Failures)
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(s.P95), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(s.P99), float64(time.Millisecond))
	assert.InDelta(t, float64(time.Millisecond), float64(s.Min), float64(10*time.Microsecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Max), float64(time.Millisecond))
	assert.True(t, s.P50 <= s.P95 && s.P95 <= s.P99)
}

func TestLatency_Empty(t *testing.T) {
	s := NewLatency().Summary()
	assert.Equal(t, Summary{}, s)
}

func TestLatency_ClampsRange(t *testing.T) {
	l := NewLatency()
	l.Record(0)
	l.Record(2 * time.Minute)

	s := l.Summary()
	assert.Equal(t, int64(2), s.Count)
	assert.Equal(t, time.Microsecond, s.Min)
	assert.InDelta(t, float64(60*time.Second), float64(s.Max), float64(100*time.Millisecond))
}

func TestLatency_Merge(t *testing.T) {
	a := NewLatency()
	b := NewLatency()
	a.Record(10 * time.Millisecond)
	b.Record(20 * time.Millisecond)
	b.Record(30 * time.Millisecond)
	b.RecordFailure()

	a.Merge(b)
	a.Merge(nil)
	a.Merge(a)

	s := a.Summary()
	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, int64(2), b.Summary().Count)
}
