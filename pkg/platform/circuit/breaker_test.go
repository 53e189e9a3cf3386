package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newBreaker(clock *fakeClock) *Breaker {
	return New("kafka:certtrace.events",
		WithFailureThreshold(2),
		WithCooldown(time.Minute),
		WithClock(clock.now),
	)
}

func TestBreaker_StartsClosed(t *testing.T) {
	b := New("sink")
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
	assert.Equal(t, "sink", b.Name())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := newBreaker(&fakeClock{t: time.Unix(0, 0)})

	assert.Equal(t, Change{}, b.RecordFailure())
	assert.Equal(t, Change{Opened: true}, b.RecordFailure())
	assert.True(t, b.IsOpen())
	assert.False(t, b.Allow())

	assert.Equal(t, Change{}, b.RecordFailure(), "already open")
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	b := newBreaker(&fakeClock{t: time.Unix(0, 0)})

	b.RecordFailure()
	assert.Equal(t, Change{}, b.RecordSuccess())
	b.RecordFailure()
	assert.False(t, b.IsOpen())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBreaker(clock)
	b.RecordFailure()
	b.RecordFailure()

	clock.advance(59 * time.Second)
	assert.False(t, b.Allow())

	clock.advance(time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "one probe at a time")

	assert.Equal(t, Change{Opened: true}, b.RecordFailure(), "failed probe reopens")
	assert.False(t, b.Allow())

	clock.advance(time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, Change{Closed: true}, b.RecordSuccess())
	assert.True(t, b.Allow())
}

func TestBreaker_Reset(t *testing.T) {
	b := newBreaker(&fakeClock{t: time.Unix(0, 0)})
	b.RecordFailure()
	b.RecordFailure()

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
