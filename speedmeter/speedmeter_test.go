package speedmeter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestSpeedAccumulatesWithinOneSlot(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := newWithClock(clock.now)

	m.Add(1000)
	clock.advance(500 * time.Millisecond)
	m.Add(1000)

	speed := m.Speed()
	assert.InDelta(t, 4000, speed, 1) // 2000 bytes over 0.5s
}

func TestSpeedDecaysAfterIdleSlots(t *testing.T) {
	clock := &fakeClock{t: time.Unix(2000, 0)}
	m := newWithClock(clock.now)

	m.Add(3100) // 31 slots worth at 100B/s if spread, but all in one burst
	clock.advance(32 * time.Second)

	// Every originally-written slot has scrolled out of the 31-slot window.
	assert.Equal(t, float64(0), m.Speed())
}

func TestJustConnectedResetsRing(t *testing.T) {
	clock := &fakeClock{t: time.Unix(3000, 0)}
	m := newWithClock(clock.now)

	m.Add(5000)
	clock.advance(5 * time.Second)

	m.JustConnected()
	assert.Equal(t, float64(0), m.Speed())
}

func TestLastActivityTracksMostRecentAdd(t *testing.T) {
	clock := &fakeClock{t: time.Unix(4000, 0)}
	m := newWithClock(clock.now)

	m.Add(1)
	clock.advance(2 * time.Second)
	m.Add(1)

	assert.Equal(t, clock.now(), m.LastActivity())
}
